package core

import (
	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

type OrderStatus string

type PositionSide string

type MarginType string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

const (
	MarginIsolated MarginType = "ISOLATED"
	MarginCrossed  MarginType = "CROSSED"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// SymbolFilter is a point-in-time snapshot of a symbol's trading rules.
// It is fetched fresh per call and never cached: the exchange is the only
// authority on filters and may change them between calls.
type SymbolFilter struct {
	Symbol            string
	BaseAsset         string
	QuoteAsset        string
	Status            string
	MinQty            decimal.Decimal
	MaxQty            decimal.Decimal
	StepSize          decimal.Decimal
	MinNotional       decimal.Decimal
	PricePrecision    int
	QuantityPrecision int
}

type MarketPrice struct {
	Symbol string
	Price  decimal.Decimal
}

type AssetBalance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

type AccountSnapshot struct {
	CanTrade    bool
	CanWithdraw bool
	Balances    []AssetBalance
}

// Balance returns the account's entry for asset, or a zero entry if the
// account holds none.
func (s AccountSnapshot) Balance(asset string) AssetBalance {
	for _, b := range s.Balances {
		if b.Asset == asset {
			return b
		}
	}
	return AssetBalance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}
}

type FuturesAccountSnapshot struct {
	TotalWalletBalance decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	TotalMarginBalance decimal.Decimal
	AvailableBalance   decimal.Decimal
	MaxWithdrawAmount  decimal.Decimal
}

// Position is a point-in-time futures position read. Amount is signed:
// positive long, negative short, zero flat.
type Position struct {
	Symbol        string
	Amount        decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	PnLPercent    decimal.Decimal
	Side          PositionSide
	Leverage      int
}

func (p Position) Flat() bool {
	return p.Amount.IsZero()
}

// OrderResult is terminal: built once from the exchange response and never
// mutated afterwards. Ownership belongs to the caller that requested the
// order.
type OrderResult struct {
	Symbol        string
	OrderID       string
	ClientOrderID string
	Side          Side
	PositionSide  PositionSide
	Type          OrderType
	Status        OrderStatus
	ExecutedQty   decimal.Decimal
	ExecutedPrice decimal.Decimal
	ReduceOnly    bool
}
