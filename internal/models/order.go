package models

import "fmt"

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusTriggered       OrderStatus = "Triggered"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
)

func (s OrderStatus) IsLive() bool {
	switch s {
	case OrderStatusNew, OrderStatusUntriggered, OrderStatusTriggered, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// OrderRole — производная роль ордера. Не авторитетна: метки на бирже
// бывают легаси и неоднозначные, поэтому роль пересчитывается на каждом цикле.
type OrderRole string

const (
	RoleUnknown OrderRole = "unknown"
	RoleEntry   OrderRole = "entry"
	RoleTP1     OrderRole = "tp1"
	RoleTP2     OrderRole = "tp2"
	RoleTP3     OrderRole = "tp3"
	RoleTP4     OrderRole = "tp4"
	RoleSL      OrderRole = "sl"
)

const MaxTPTiers = 4

// TPRole — роль тейка по номеру уровня (1..4).
func TPRole(tier int) OrderRole {
	return OrderRole(fmt.Sprintf("tp%d", tier))
}

// TPTier возвращает номер уровня, если роль — тейк.
func (r OrderRole) TPTier() (int, bool) {
	if len(r) == 3 && r[0] == 't' && r[1] == 'p' && r[2] >= '1' && r[2] <= '4' {
		return int(r[2] - '0'), true
	}
	return 0, false
}

func (r OrderRole) IsTP() bool { _, ok := r.TPTier(); return ok }

// OrderRecord — сырой ордер с биржи + производная роль.
type OrderRecord struct {
	OrderID string
	LinkID  string // orderLinkId
	Symbol  string
	Side    Side // сторона ордера, не позиции

	Type          string // Limit | Market
	StopOrderType string // TakeProfit | StopLoss | Stop | PartialTakeProfit | PartialStopLoss | ""
	ReduceOnly    bool

	Qty          float64
	Price        float64
	TriggerPrice float64

	Status OrderStatus
	Role   OrderRole
}

// ExitPrice — цена, по которой ордер реально сработает.
func (o OrderRecord) ExitPrice() float64 {
	if o.TriggerPrice > 0 {
		return o.TriggerPrice
	}
	return o.Price
}

func (o OrderRecord) IsConditional() bool {
	return o.StopOrderType != "" || o.TriggerPrice > 0
}

// OrderSpec — заявка на размещение ордера.
type OrderSpec struct {
	Symbol       string
	Side         Side
	OrderType    string // Limit | Market
	Qty          float64
	Price        float64
	TriggerPrice float64
	ReduceOnly   bool
	LinkID       string
	Role         OrderRole
}

type TriggerReason string

const (
	TriggerEntryFilled    TriggerReason = "entry_filled"
	TriggerTPHit          TriggerReason = "tp_hit"
	TriggerPositionMerged TriggerReason = "position_merged"
)

// RebalancePlan — cancel/replace план ребалансировщика.
// Cancel и Place сопоставляются по Role: отмена уровня обязана
// подтвердиться до размещения замены.
type RebalancePlan struct {
	Cancel []OrderRecord
	Place  []OrderSpec
}

func (p RebalancePlan) Empty() bool { return len(p.Cancel) == 0 && len(p.Place) == 0 }
