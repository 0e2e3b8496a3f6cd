package models

// ApproachPolicy — статическая конфигурация подхода.
// Инвариант: сумма долей тейков по ещё не снятым уровням всегда равна 100%
// от текущего заполненного размера; стоп — всегда 100%.
type ApproachPolicy struct {
	Approach   Approach
	MaxEntries int
	TPSplit    []float64 // доли по уровням, в сумме 1.0
}

var (
	fastPolicy = ApproachPolicy{
		Approach:   ApproachFast,
		MaxEntries: 1,
		TPSplit:    []float64{1.0},
	}
	conservativePolicy = ApproachPolicy{
		Approach:   ApproachConservative,
		MaxEntries: 3,
		TPSplit:    []float64{0.85, 0.05, 0.05, 0.05},
	}
)

func PolicyFor(a Approach) ApproachPolicy {
	if a == ApproachFast {
		return fastPolicy
	}
	return conservativePolicy
}

func (p ApproachPolicy) Tiers() int { return len(p.TPSplit) }

// SplitFor — целевые доли для набора ещё открытых уровней.
// Пока ни один уровень не снят (открыт префикс 1..n) — исходные проценты,
// перенормированные на имеющиеся уровни: основной тейк держит доминирующую
// долю и у заявки с неполной лесенкой (2 тейка — не 50/50, а 94/6).
// Как только часть тейков снята — остаток делится ПОРОВНУ между
// оставшимися уровнями (принятое продуктовое решение, не сохранение
// исходных пропорций).
func (p ApproachPolicy) SplitFor(openTiers []int) map[int]float64 {
	out := make(map[int]float64, len(openTiers))
	if len(openTiers) == 0 {
		return out
	}
	if tiersArePrefix(openTiers, len(p.TPSplit)) {
		total := 0.0
		for _, t := range openTiers {
			total += p.TPSplit[t-1]
		}
		for _, t := range openTiers {
			out[t] = p.TPSplit[t-1] / total
		}
		return out
	}
	eq := 1.0 / float64(len(openTiers))
	for _, t := range openTiers {
		out[t] = eq
	}
	return out
}

// tiersArePrefix — true для отсортированного набора вида 1..n: уровень 1 жив,
// дыр нет, значит ни один тейк ещё не снимался.
func tiersArePrefix(tiers []int, max int) bool {
	if len(tiers) > max {
		return false
	}
	for i, t := range tiers {
		if t != i+1 {
			return false
		}
	}
	return true
}

// PrimaryTier — основной уровень (по нему двигаем стоп в безубыток).
func (p ApproachPolicy) PrimaryTier() int { return 1 }
