package model

import "time"

type UpdateKind string

const (
	UpdateKindPosition    UpdateKind = "position"
	UpdateKindOrder       UpdateKind = "order"
	UpdateKindOrderAction UpdateKind = "order_action"
	UpdateKindTrade       UpdateKind = "trade"
	UpdateKindAccountInfo UpdateKind = "account_info"
	UpdateKindBuyingPower UpdateKind = "buying_power"
	UpdateKindQuote       UpdateKind = "quote"
)

// UpdateEvent is the envelope published to the update topic for every
// record applied to an account store, whether it arrived as a push line or
// through a periodic refresh. Exactly one payload pointer is set per event.
type UpdateEvent struct {
	AccountID string     `json:"account_id"`
	Kind      UpdateKind `json:"kind"`
	Time      time.Time  `json:"time"`

	Position    *Position    `json:"position,omitempty"`
	Order       *Order       `json:"order,omitempty"`
	OrderAction *OrderAction `json:"order_action,omitempty"`
	Trade       *Trade       `json:"trade,omitempty"`
	AccountInfo *AccountInfo `json:"account_info,omitempty"`
	BuyingPower *BuyingPower `json:"buying_power,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
}
