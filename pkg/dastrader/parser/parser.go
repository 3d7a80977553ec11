// Package parser decodes DAS CMD API response text into typed records.
// All functions are stateless and never fail a whole block because of one
// malformed line: bad lines are logged and skipped.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	"go.uber.org/zap"
)

// Line sigils the terminal prefixes records with.
const (
	SigilPosition    = "%POS"
	SigilOrder       = "%ORDER"
	SigilOrderAction = "%OrderAct"
	SigilTrade       = "%TRADE"
	SigilAccountInfo = "$AccountInfo"
	SigilBuyingPower = "BP"
	SigilQuote       = "$Quote"
)

// Section markers. The terminal emits these around list responses but not
// reliably, so they are treated as advisory: a begin marker opens a
// section, a well-formed record line opens it just as well, and an end
// marker never stops the scan.
const (
	MarkerPosBegin   = "#POS-BEGIN"
	MarkerPosEnd     = "#POS-END"
	MarkerOrderBegin = "#ORDER-BEGIN"
	MarkerOrderEnd   = "#ORDER-END"
	MarkerTradeBegin = "#TRADE-BEGIN"
	MarkerTradeEnd   = "#TRADE-END"
)

const commentSigil = "#"

// quote fields coerced to float64 / int; everything else stays a string.
var quoteFloatKeys = map[string]bool{
	"A": true, "B": true, "L": true, "Hi": true, "Lo": true,
	"op": true, "ycl": true, "tcl": true, "VWAP": true,
}

var quoteIntKeys = map[string]bool{
	"Asz": true, "Bsz": true, "V": true,
}

// ParsePositions scans a GET POSITIONS response. The section opens on the
// begin marker or, when the marker is missing, on the first %POS line; the
// end marker does not close it, so trailing position lines still parse.
func ParsePositions(block string) []model.Position {
	var out []model.Position
	inSection := false
	for _, line := range splitLines(block) {
		switch {
		case line == MarkerPosBegin:
			inSection = true
		case line == MarkerPosEnd:
			// advisory only, keep scanning
		case strings.HasPrefix(line, SigilPosition):
			if !inSection {
				inSection = true
			}
			pos, err := ParsePositionLine(line)
			if err != nil {
				zap.S().Warnw("skipping position line", "line", line, "error", err)
				continue
			}
			out = append(out, *pos)
		}
	}
	return out
}

// ParsePositionLine decodes a single %POS line.
func ParsePositionLine(line string) (*model.Position, error) {
	parts := strings.Fields(line)
	if len(parts) < 10 {
		return nil, fmt.Errorf("%w: position line has %d tokens, want >= 10", ErrMalformedLine, len(parts))
	}
	qty, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrMalformedLine, parts[3])
	}
	avgCost, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: avg_cost %q", ErrMalformedLine, parts[4])
	}
	initQty, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: init_quantity %q", ErrMalformedLine, parts[5])
	}
	initPrice, err := strconv.ParseFloat(parts[6], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: init_price %q", ErrMalformedLine, parts[6])
	}
	realized, err := strconv.ParseFloat(parts[7], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: realized_pnl %q", ErrMalformedLine, parts[7])
	}
	unrealized := 0.0
	if len(parts) > 9 {
		unrealized, err = strconv.ParseFloat(parts[9], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: unrealized_pnl %q", ErrMalformedLine, parts[9])
		}
	}
	return &model.Position{
		Symbol:        parts[1],
		Type:          model.PositionTypeFromCode(parts[2]),
		Quantity:      qty,
		AvgCost:       avgCost,
		InitQuantity:  initQty,
		InitPrice:     initPrice,
		RealizedPNL:   realized,
		CreateTime:    parts[8],
		UnrealizedPNL: unrealized,
	}, nil
}

// ParseOrders scans a GET ORDERS response with the same permissive section
// policy as ParsePositions.
func ParseOrders(block string) []model.Order {
	var out []model.Order
	inSection := false
	for _, line := range splitLines(block) {
		switch {
		case line == MarkerOrderBegin:
			inSection = true
		case line == MarkerOrderEnd:
			// advisory only
		case strings.HasPrefix(line, SigilOrder):
			if !inSection {
				inSection = true
			}
			order, err := ParseOrderLine(line)
			if err != nil {
				zap.S().Warnw("skipping order line", "line", line, "error", err)
				continue
			}
			out = append(out, *order)
		}
	}
	return out
}

// ParseOrderLine decodes a single %ORDER line.
// Layout: %ORDER id token symb b/s type qty lvqty cxlqty price route status
// time origoid account trader orderSrc — fields from route on may be absent.
func ParseOrderLine(line string) (*model.Order, error) {
	parts := strings.Fields(line)
	if len(parts) < 10 {
		return nil, fmt.Errorf("%w: order line has %d tokens, want >= 10", ErrMalformedLine, len(parts))
	}
	qty, err := strconv.Atoi(parts[6])
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrMalformedLine, parts[6])
	}
	leftQty, err := strconv.Atoi(parts[7])
	if err != nil {
		return nil, fmt.Errorf("%w: left_quantity %q", ErrMalformedLine, parts[7])
	}
	cxlQty, err := strconv.Atoi(parts[8])
	if err != nil {
		return nil, fmt.Errorf("%w: canceled_quantity %q", ErrMalformedLine, parts[8])
	}
	price, err := parsePrice(parts[9])
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrMalformedLine, parts[9])
	}
	order := &model.Order{
		OrderID:          parts[1],
		Token:            parts[2],
		Symbol:           parts[3],
		Side:             model.OrderSideFromCode(parts[4]),
		OrderType:        parts[5],
		Quantity:         qty,
		LeftQuantity:     leftQty,
		CanceledQuantity: cxlQty,
		Price:            price,
	}
	order.Route = tokenAt(parts, 10)
	order.Status = tokenAt(parts, 11)
	order.Time = tokenAt(parts, 12)
	order.OriginalOrderID = tokenAt(parts, 13)
	order.Account = tokenAt(parts, 14)
	order.Trader = tokenAt(parts, 15)
	order.OrderSource = tokenAt(parts, 16)
	return order, nil
}

// ParseTrades scans a GET TRADES response.
func ParseTrades(block string) []model.Trade {
	var out []model.Trade
	inSection := false
	for _, line := range splitLines(block) {
		switch {
		case line == MarkerTradeBegin:
			inSection = true
		case line == MarkerTradeEnd:
			// advisory only
		case strings.HasPrefix(line, SigilTrade):
			if !inSection {
				inSection = true
			}
			trade, err := ParseTradeLine(line)
			if err != nil {
				zap.S().Warnw("skipping trade line", "line", line, "error", err)
				continue
			}
			out = append(out, *trade)
		}
	}
	return out
}

// ParseTradeLine decodes a single %TRADE line.
// Layout: %TRADE id symb B/S qty price route time orderid liq ecnFee pl.
func ParseTradeLine(line string) (*model.Trade, error) {
	parts := strings.Fields(line)
	if len(parts) < 8 {
		return nil, fmt.Errorf("%w: trade line has %d tokens, want >= 8", ErrMalformedLine, len(parts))
	}
	qty, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrMalformedLine, parts[4])
	}
	price, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrMalformedLine, parts[5])
	}
	trade := &model.Trade{
		TradeID:  parts[1],
		Symbol:   parts[2],
		Side:     model.OrderSideFromCode(parts[3]),
		Quantity: qty,
		Price:    price,
		Route:    parts[6],
		Time:     parts[7],
	}
	trade.OrderID = tokenAt(parts, 8)
	trade.Liquidity = tokenAt(parts, 9)
	if raw := tokenAt(parts, 10); raw != "" {
		trade.ECNFee, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ecn_fee %q", ErrMalformedLine, raw)
		}
	}
	if raw := tokenAt(parts, 11); raw != "" {
		trade.RealizedPL, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: realized_pl %q", ErrMalformedLine, raw)
		}
	}
	return trade, nil
}

// ParseAccountInfo locates the $AccountInfo data line anywhere in the
// block. The terminal sometimes sends a header-only line carrying the sigil
// and nothing useful; it is skipped. Returns nil when no data line exists.
func ParseAccountInfo(block string) *model.AccountInfo {
	sawHeader := false
	for _, line := range splitLines(block) {
		if !strings.HasPrefix(line, SigilAccountInfo) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 11 {
			sawHeader = true
			continue
		}
		vals := make([]float64, 10)
		ok := true
		for i := 0; i < 10; i++ {
			v, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				zap.S().Warnw("skipping account info line", "line", line, "error", err)
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		return &model.AccountInfo{
			OpenEquity:    vals[0],
			CurrentEquity: vals[1],
			RealizedPL:    vals[2],
			UnrealizedPL:  vals[3],
			NetPL:         vals[4],
			HTBCost:       vals[5],
			SecFee:        vals[6],
			FinraFee:      vals[7],
			ECNFee:        vals[8],
			Commission:    vals[9],
		}
	}
	if sawHeader {
		zap.S().Debugw("account info header seen but no data line")
	} else {
		zap.S().Debugw("no account info marker in block")
	}
	return nil
}

// ParseBuyingPower locates the BP line in a block. Comment lines that
// happen to start with the same letters are ignored.
func ParseBuyingPower(block string) *model.BuyingPower {
	for _, line := range splitLines(block) {
		if !strings.HasPrefix(line, SigilBuyingPower) || strings.HasPrefix(line, commentSigil) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		current, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			zap.S().Warnw("skipping buying power line", "line", line, "error", err)
			continue
		}
		overnight, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			zap.S().Warnw("skipping buying power line", "line", line, "error", err)
			continue
		}
		return &model.BuyingPower{CurrentBP: current, OvernightBP: overnight}
	}
	return nil
}

// ParseQuote decodes a $Quote line. Remaining tokens are key:value pairs;
// known numeric keys are coerced and a coercion failure falls back to the
// raw string for that key only.
func ParseQuote(block string) *model.Quote {
	data := strings.TrimSpace(block)
	if !strings.HasPrefix(data, SigilQuote) {
		return nil
	}
	parts := strings.Fields(data)
	if len(parts) < 2 {
		return nil
	}
	quote := &model.Quote{Symbol: parts[1], Fields: make(map[string]any)}
	for _, part := range parts[2:] {
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		lower := strings.ToLower(key)
		switch {
		case quoteFloatKeys[key]:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				quote.Fields[lower] = f
			} else {
				quote.Fields[lower] = value
			}
		case quoteIntKeys[key]:
			if n, err := strconv.Atoi(value); err == nil {
				quote.Fields[lower] = n
			} else {
				quote.Fields[lower] = value
			}
		default:
			quote.Fields[lower] = value
		}
	}
	return quote
}

// ParseOrderAction decodes a single %OrderAct line.
// Layout: %OrderAct id actionType B/S symbol qty price route time notes token.
func ParseOrderAction(line string) (*model.OrderAction, error) {
	parts := strings.Fields(line)
	if len(parts) < 8 {
		return nil, fmt.Errorf("%w: order action line has %d tokens, want >= 8", ErrMalformedLine, len(parts))
	}
	qty, err := strconv.Atoi(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrMalformedLine, parts[5])
	}
	price, err := parsePrice(parts[6])
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrMalformedLine, parts[6])
	}
	action := &model.OrderAction{
		OrderID:    parts[1],
		ActionType: parts[2],
		Side:       model.OrderSideFromCode(parts[3]),
		Symbol:     parts[4],
		Quantity:   qty,
		Price:      price,
		Route:      parts[7],
	}
	action.Time = tokenAt(parts, 8)
	action.Notes = tokenAt(parts, 9)
	action.Token = tokenAt(parts, 10)
	return action, nil
}

// parsePrice handles the market-order literal: "MKT" means no price.
func parsePrice(token string) (*float64, error) {
	if token == "MKT" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func tokenAt(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func splitLines(block string) []string {
	raw := strings.Split(block, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
