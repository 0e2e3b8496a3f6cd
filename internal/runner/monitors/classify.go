package monitors

import (
	"math"
	"sort"
	"strings"

	"bybit_bot/internal/models"
)

// Классификатор ролей. Роль ордера на бирже нигде не хранится авторитетно:
// метки orderLinkId бывают легаси или вовсе чужие, поэтому роли выводятся
// заново на каждом цикле цепочкой стратегий, от самой надёжной к эвристикам.
// Первый уверенный матч побеждает; ниже порога — RoleUnknown, такой ордер
// не трогаем.
const (
	confLabel      = 0.95
	confStopType   = 0.90
	confStructSL   = 0.75
	confStructTP   = 0.60
	confEntryGuess = 0.55

	confThreshold = 0.5

	// Допуск по количеству при структурном опознании стопа: стоп закрывает
	// всю позицию, расхождение только из-за округления до шага лота.
	slQtyTolerance = 0.05
)

// Classification — результат одной стратегии. Tier == 0 у тейка означает
// «уровень пока не определён», его назначает ClassifyOrders по удалённости
// от средней цены входа.
type Classification struct {
	Role       models.OrderRole
	Confidence float64
	tpNoTier   bool
}

func (c Classification) Confident() bool { return c.Confidence >= confThreshold }

// Classify прогоняет одиночный ордер по цепочке стратегий. Тейк без явного
// уровня в метке получает уровень 1; точная раскладка уровней по набору
// ордеров — задача ClassifyOrders.
func Classify(o models.OrderRecord, pos models.Position) Classification {
	c := classifyInChain(o, pos)
	if !c.Confident() {
		return Classification{Role: models.RoleUnknown}
	}
	if c.tpNoTier {
		c.Role = models.TPRole(1)
	}
	return c
}

// ClassifyOrders классифицирует весь набор живых ордеров позиции и
// возвращает копию с заполненными ролями. Уровни тейков, не зашитые в метку,
// раздаются по удалённости от средней цены входа: ближайший — tp1.
func ClassifyOrders(orders []models.OrderRecord, pos models.Position) []models.OrderRecord {
	out := make([]models.OrderRecord, len(orders))
	copy(out, orders)

	takenTiers := map[int]bool{}
	var loose []int // индексы тейков без уровня

	for i := range out {
		if !out[i].Status.IsLive() {
			out[i].Role = models.RoleUnknown
			continue
		}
		c := classifyInChain(out[i], pos)
		if !c.Confident() {
			out[i].Role = models.RoleUnknown
			continue
		}
		if c.tpNoTier {
			loose = append(loose, i)
			continue
		}
		out[i].Role = c.Role
		if t, ok := c.Role.TPTier(); ok {
			takenTiers[t] = true
		}
	}

	ref := pos.AvgEntry
	if ref <= 0 {
		ref = pos.MarkPrice
	}
	sort.SliceStable(loose, func(a, b int) bool {
		return math.Abs(out[loose[a]].ExitPrice()-ref) < math.Abs(out[loose[b]].ExitPrice()-ref)
	})

	next := 1
	for _, i := range loose {
		for next <= models.MaxTPTiers && takenTiers[next] {
			next++
		}
		if next > models.MaxTPTiers {
			out[i].Role = models.RoleUnknown
			continue
		}
		out[i].Role = models.TPRole(next)
		takenTiers[next] = true
	}
	return out
}

func classifyInChain(o models.OrderRecord, pos models.Position) Classification {
	for _, strategy := range []func(models.OrderRecord, models.Position) (Classification, bool){
		classifyByLabel,
		classifyByStopType,
		classifyStructural,
		classifyEntryGuess,
	} {
		if c, ok := strategy(o, pos); ok {
			return c
		}
	}
	return Classification{Role: models.RoleUnknown}
}

// classifyByLabel — разбор orderLinkId. Понимает и свежую схему
// (bb-SYMBOL-tp1-...), и легаси (TAKE_PROFIT_1_..., STOPLOSS_...).
func classifyByLabel(o models.OrderRecord, _ models.Position) (Classification, bool) {
	toks := tokenizeLink(o.LinkID)
	for i, t := range toks {
		switch {
		case t == "sl" || t == "stoploss":
			return Classification{Role: models.RoleSL, Confidence: confLabel}, true
		case t == "stop" && i+1 < len(toks) && toks[i+1] == "loss":
			return Classification{Role: models.RoleSL, Confidence: confLabel}, true
		case t == "entry" || t == "open":
			return Classification{Role: models.RoleEntry, Confidence: confLabel}, true
		case len(t) == 2 && t[0] == 'e' && t[1] >= '1' && t[1] <= '9':
			return Classification{Role: models.RoleEntry, Confidence: confLabel}, true
		case t == "take" && i+1 < len(toks) && toks[i+1] == "profit":
			tier := 0
			if i+2 < len(toks) {
				tier = digitTier(toks[i+2])
			}
			if tier >= 1 && tier <= models.MaxTPTiers {
				return Classification{Role: models.TPRole(tier), Confidence: confLabel}, true
			}
			return Classification{Confidence: confLabel, tpNoTier: true}, true
		}
		if tier, bare, ok := tpToken(t); ok {
			if tier == 0 && i+1 < len(toks) {
				tier = digitTier(toks[i+1])
			}
			if tier >= 1 && tier <= models.MaxTPTiers {
				return Classification{Role: models.TPRole(tier), Confidence: confLabel}, true
			}
			if bare {
				return Classification{Confidence: confLabel, tpNoTier: true}, true
			}
		}
	}
	return Classification{}, false
}

func tokenizeLink(link string) []string {
	return strings.FieldsFunc(strings.ToLower(link), func(r rune) bool {
		return r == '-' || r == '_' || r == ':' || r == '.' || r == ' '
	})
}

// tpToken распознаёт "tp", "tp1".."tp4", "takeprofit", "takeprofit2".
func tpToken(t string) (tier int, bare, ok bool) {
	for _, prefix := range []string{"tp", "takeprofit"} {
		if !strings.HasPrefix(t, prefix) {
			continue
		}
		rest := t[len(prefix):]
		if rest == "" {
			return 0, true, true
		}
		if tier = digitTier(rest); tier > 0 {
			return tier, false, true
		}
	}
	return 0, false, false
}

func digitTier(s string) int {
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return int(s[0] - '0')
	}
	return 0
}

// classifyByStopType — явное поле stopOrderType из ответа биржи. Уровень
// тейка оно не несёт, только сам факт «это тейк».
func classifyByStopType(o models.OrderRecord, _ models.Position) (Classification, bool) {
	switch o.StopOrderType {
	case "StopLoss", "PartialStopLoss":
		return Classification{Role: models.RoleSL, Confidence: confStopType}, true
	case "TakeProfit", "PartialTakeProfit":
		return Classification{Confidence: confStopType, tpNoTier: true}, true
	}
	return Classification{}, false
}

// classifyStructural — вывод роли из геометрии: закрывающий ордер в
// прибыльной стороне от средней цены — тейк, в убыточной и на весь
// размер позиции — стоп. Работает для легаси-ордеров типа "Stop" без меток.
func classifyStructural(o models.OrderRecord, pos models.Position) (Classification, bool) {
	if !pos.IsOpen() || o.Side != pos.Side.Opposite() {
		return Classification{}, false
	}
	if !o.ReduceOnly && !o.IsConditional() {
		return Classification{}, false
	}
	exit := o.ExitPrice()
	if exit <= 0 {
		return Classification{}, false
	}

	dir := 1.0
	if pos.Side == models.SideShort {
		dir = -1.0
	}
	if (exit-pos.AvgEntry)*dir > 0 {
		return Classification{Confidence: confStructTP, tpNoTier: true}, true
	}
	if o.IsConditional() && withinRel(o.Qty, pos.Size, slQtyTolerance) {
		return Classification{Role: models.RoleSL, Confidence: confStructSL}, true
	}
	return Classification{}, false
}

// classifyEntryGuess — лимитка в сторону позиции без reduceOnly: почти
// наверняка ещё не налитый вход усредняющей лесенки.
func classifyEntryGuess(o models.OrderRecord, pos models.Position) (Classification, bool) {
	if o.Side != pos.Side || o.ReduceOnly || o.IsConditional() || o.Type != "Limit" {
		return Classification{}, false
	}
	return Classification{Role: models.RoleEntry, Confidence: confEntryGuess}, true
}

func withinRel(a, b, rel float64) bool {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return true
	}
	return math.Abs(a-b) <= rel*m
}
