// Package exchange defines the operation surface the rest of the program
// trades through, independent of any venue implementation.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"binance-trader/internal/core"
)

// AccountReader exposes fresh reads of market and account state. Every call
// is a round trip; nothing is cached.
type AccountReader interface {
	Ping(ctx context.Context) error
	CheckPermissions(ctx context.Context) error
	Account(ctx context.Context) (core.AccountSnapshot, error)
	TickerPrice(ctx context.Context, symbol string) (core.MarketPrice, error)
	MinOrderQty(ctx context.Context, symbol string) (decimal.Decimal, error)

	FuturesAccount(ctx context.Context) (core.FuturesAccountSnapshot, error)
	Positions(ctx context.Context) ([]core.Position, error)
	Position(ctx context.Context, symbol string) (core.Position, error)
	FuturesSymbols(ctx context.Context) ([]core.SymbolFilter, error)
}

// OrderExecutor places and manages orders. Quantity-bearing operations
// validate against exchange filters before submitting.
type OrderExecutor interface {
	MarketBuy(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error)
	MarketSell(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error)
	TestOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) error

	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginType(ctx context.Context, symbol string, marginType core.MarginType) error
	FuturesMarketOrder(ctx context.Context, symbol string, side core.Side, positionSide core.PositionSide, qty decimal.Decimal, reduceOnly bool) (core.OrderResult, error)
	FuturesLimitOrder(ctx context.Context, symbol string, side core.Side, positionSide core.PositionSide, qty, price decimal.Decimal) (core.OrderResult, error)
	OpenLong(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error)
	OpenShort(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error)
	ClosePosition(ctx context.Context, symbol string) (core.OrderResult, error)

	ValidateQuantity(ctx context.Context, symbol string, qty decimal.Decimal) (core.ValidationOutcome, error)
}

// Exchange is the full venue surface.
type Exchange interface {
	AccountReader
	OrderExecutor
}
