package model

import "fmt"

type PositionType string

const (
	PositionTypeCash   PositionType = "cash"
	PositionTypeMargin PositionType = "margin"
	PositionTypeShort  PositionType = "short"
)

// PositionTypeFromCode maps the wire type code to a PositionType. Unknown
// codes are kept verbatim, matching what the terminal sent.
func PositionTypeFromCode(code string) PositionType {
	switch code {
	case "1":
		return PositionTypeCash
	case "2":
		return PositionTypeMargin
	case "3":
		return PositionTypeShort
	}
	return PositionType(code)
}

type OrderSide string

const (
	OrderSideBuy   OrderSide = "Buy"
	OrderSideSell  OrderSide = "Sell"
	OrderSideShort OrderSide = "Short"
)

// OrderSideFromCode maps the wire side code (B/S/SS) to an OrderSide.
// Unknown codes are kept verbatim.
func OrderSideFromCode(code string) OrderSide {
	switch code {
	case "B":
		return OrderSideBuy
	case "S":
		return OrderSideSell
	case "SS":
		return OrderSideShort
	}
	return OrderSide(code)
}

// Credential is the connection identity of one terminal login. Immutable
// once a session has been created from it.
type Credential struct {
	Host     string
	Port     int
	Username string
	Password string
	Account  string
}

func (c Credential) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Position mirrors one %POS line. Keyed by symbol within an account.
type Position struct {
	Symbol        string       `json:"symbol"`
	Type          PositionType `json:"type"`
	Quantity      int          `json:"quantity"`
	AvgCost       float64      `json:"avg_cost"`
	InitQuantity  int          `json:"init_quantity"`
	InitPrice     float64      `json:"init_price"`
	RealizedPNL   float64      `json:"realized_pnl"`
	CreateTime    string       `json:"create_time"`
	UnrealizedPNL float64      `json:"unrealized_pnl"`

	// MarkPrice is filled by the store when a quote for the symbol is
	// known; zero until then.
	MarkPrice float64 `json:"mark_price,omitempty"`
}

// Order mirrors one %ORDER line. Keyed by OrderID within an account.
// Price is nil for market orders (the wire literal "MKT").
type Order struct {
	OrderID          string    `json:"order_id"`
	Token            string    `json:"token"`
	Symbol           string    `json:"symbol"`
	Side             OrderSide `json:"side"`
	OrderType        string    `json:"order_type"`
	Quantity         int       `json:"quantity"`
	LeftQuantity     int       `json:"left_quantity"`
	CanceledQuantity int       `json:"canceled_quantity"`
	Price            *float64  `json:"price"`
	Route            string    `json:"route"`
	Status           string    `json:"status"`
	Time             string    `json:"time"`
	OriginalOrderID  string    `json:"original_order_id"`
	Account          string    `json:"account"`
	Trader           string    `json:"trader"`
	OrderSource      string    `json:"order_source"`
}

// Trade mirrors one %TRADE line. Deduplicated by TradeID.
type Trade struct {
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Route      string    `json:"route"`
	Time       string    `json:"time"`
	OrderID    string    `json:"order_id"`
	Liquidity  string    `json:"liquidity"`
	ECNFee     float64   `json:"ecn_fee"`
	RealizedPL float64   `json:"realized_pl"`
}

// AccountInfo is the latest $AccountInfo snapshot for an account.
type AccountInfo struct {
	OpenEquity    float64 `json:"open_equity"`
	CurrentEquity float64 `json:"current_equity"`
	RealizedPL    float64 `json:"realized_pl"`
	UnrealizedPL  float64 `json:"unrealized_pl"`
	NetPL         float64 `json:"net_pl"`
	HTBCost       float64 `json:"htb_cost"`
	SecFee        float64 `json:"sec_fee"`
	FinraFee      float64 `json:"finra_fee"`
	ECNFee        float64 `json:"ecn_fee"`
	Commission    float64 `json:"commission"`
}

// BuyingPower is the latest BP snapshot for an account.
type BuyingPower struct {
	CurrentBP   float64 `json:"current_bp"`
	OvernightBP float64 `json:"overnight_bp"`
}

// Quote is one $Quote line. The field schema is open-ended on the wire, so
// this is the one record kind that keeps an extension map: known numeric
// keys are coerced, everything else stays a string, keys are lower-cased.
type Quote struct {
	Symbol string         `json:"symbol"`
	Fields map[string]any `json:"fields"`
}

// Float returns the named quote field as a float64 when it carries one.
func (q *Quote) Float(key string) (float64, bool) {
	v, ok := q.Fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// OrderAction is one %OrderAct line: an event, never stored.
type OrderAction struct {
	OrderID    string    `json:"order_id"`
	ActionType string    `json:"action_type"`
	Side       OrderSide `json:"side"`
	Symbol     string    `json:"symbol"`
	Quantity   int       `json:"quantity"`
	Price      *float64  `json:"price"`
	Route      string    `json:"route"`
	Time       string    `json:"time"`
	Notes      string    `json:"notes"`
	Token      string    `json:"token"`
}
