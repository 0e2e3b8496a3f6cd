package helper

import (
	"math"
	"strconv"
	"strings"
)

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}

// RoundToStep — количество вниз до шага лота.
func RoundToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	steps := math.Floor(qty/step + 1e-9)
	return steps * step
}

// WithinTolerance — |a-b| <= rel*max(|a|,|b|). Нужен, чтобы не перезаказывать
// ордера из-за округления до шага лота.
func WithinTolerance(a, b, rel float64) bool {
	if a == b {
		return true
	}
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return true
	}
	return math.Abs(a-b) <= rel*m
}

func FormatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
