package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"binance-trader/internal/core"
	"binance-trader/internal/jsonscan"
)

// defaultMinQty stands in when a symbol carries no LOT_SIZE filter.
var defaultMinQty = decimal.RequireFromString("0.00001")

// Ping checks connectivity by reading the server clock.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.spotRequest(ctx, http.MethodGet, "/api/v3/time", url.Values{}, AuthNone)
	if err != nil {
		return err
	}
	if _, ok := jsonscan.Int(string(body), "serverTime"); !ok {
		return &TransportError{Kind: TransportEmptyResponse}
	}
	return nil
}

// CheckPermissions verifies the credentials can trade. A reachable account
// with trading disabled fails with ErrTradingDisabled.
func (c *Client) CheckPermissions(ctx context.Context) error {
	acct, err := c.Account(ctx)
	if err != nil {
		return err
	}
	if !acct.CanTrade {
		return core.ErrTradingDisabled
	}
	return nil
}

// Account reads a fresh spot account snapshot. Only assets with a non-zero
// balance are listed.
func (c *Client) Account(ctx context.Context) (core.AccountSnapshot, error) {
	body, err := c.spotRequest(ctx, http.MethodGet, "/api/v3/account", url.Values{}, AuthSigned)
	if err != nil {
		return core.AccountSnapshot{}, err
	}
	text := string(body)
	snap := core.AccountSnapshot{
		CanTrade:    jsonscan.Bool(text, "canTrade"),
		CanWithdraw: jsonscan.Bool(text, "canWithdraw"),
	}
	for _, obj := range jsonscan.Objects(text, "balances") {
		free := jsonscan.DecimalOr(obj, "free", decimal.Zero)
		locked := jsonscan.DecimalOr(obj, "locked", decimal.Zero)
		if free.IsZero() && locked.IsZero() {
			continue
		}
		snap.Balances = append(snap.Balances, core.AssetBalance{
			Asset:  jsonscan.String(obj, "asset"),
			Free:   free,
			Locked: locked,
		})
	}
	return snap, nil
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (core.MarketPrice, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.spotRequest(ctx, http.MethodGet, "/api/v3/ticker/price", params, AuthNone)
	if err != nil {
		return core.MarketPrice{}, err
	}
	text := string(body)
	price, ok := jsonscan.Decimal(text, "price")
	if !ok {
		return core.MarketPrice{}, fmt.Errorf("ticker response for %s carries no price", symbol)
	}
	return core.MarketPrice{Symbol: symbol, Price: price}, nil
}

// MinOrderQty returns the spot LOT_SIZE minimum for symbol, or the default
// when the symbol carries no LOT_SIZE filter.
func (c *Client) MinOrderQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := c.spotSymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return info.minQty, nil
}

// AdjustSpotQuantity rounds qty down to the symbol's step size. A step of
// zero leaves qty untouched.
func (c *Client) AdjustSpotQuantity(ctx context.Context, symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	info, err := c.spotSymbolInfo(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if info.stepSize.IsZero() {
		return qty, nil
	}
	return core.RoundDownToStep(qty, info.stepSize), nil
}
