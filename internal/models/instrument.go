package models

// InstrumentMeta — шаги цены/лота инструмента.
type InstrumentMeta struct {
	TickSize float64
	QtyStep  float64
	MinQty   float64
}
