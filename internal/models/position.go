package models

// Position — снимок позиции с биржи. Ядро её никогда не мутирует,
// только перечитывает: источник истины — биржа.
type Position struct {
	Symbol    string
	Side      Side
	Account   Account
	Approach  Approach
	Size      float64
	AvgEntry  float64
	MarkPrice float64
	Leverage  int
}

func (p Position) IsOpen() bool { return p.Size > 0 }
