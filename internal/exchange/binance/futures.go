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

var hundred = decimal.NewFromInt(100)

func (c *Client) FuturesAccount(ctx context.Context) (core.FuturesAccountSnapshot, error) {
	body, err := c.futuresRequest(ctx, http.MethodGet, "/fapi/v2/account", url.Values{}, AuthSigned)
	if err != nil {
		return core.FuturesAccountSnapshot{}, err
	}
	text := string(body)
	return core.FuturesAccountSnapshot{
		TotalWalletBalance: jsonscan.DecimalOr(text, "totalWalletBalance", decimal.Zero),
		TotalUnrealizedPnL: jsonscan.DecimalOr(text, "totalUnrealizedProfit", decimal.Zero),
		TotalMarginBalance: jsonscan.DecimalOr(text, "totalMarginBalance", decimal.Zero),
		AvailableBalance:   jsonscan.DecimalOr(text, "availableBalance", decimal.Zero),
		MaxWithdrawAmount:  jsonscan.DecimalOr(text, "maxWithdrawAmount", decimal.Zero),
	}, nil
}

// Positions lists every open futures position. Flat entries are filtered
// out; use Position for a per-symbol read that includes flat.
func (c *Client) Positions(ctx context.Context) ([]core.Position, error) {
	body, err := c.futuresRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", url.Values{}, AuthSigned)
	if err != nil {
		return nil, err
	}
	var positions []core.Position
	for _, obj := range jsonscan.TopLevelObjects(string(body)) {
		p := parsePosition(obj)
		if p.Flat() {
			continue
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// Position reads the position for one symbol. A flat position is returned
// as-is, not an error.
func (c *Client) Position(ctx context.Context, symbol string) (core.Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.futuresRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, AuthSigned)
	if err != nil {
		return core.Position{}, err
	}
	objs := jsonscan.TopLevelObjects(string(body))
	if len(objs) == 0 {
		return core.Position{}, core.ErrSymbolNotFound
	}
	return parsePosition(objs[0]), nil
}

func parsePosition(obj string) core.Position {
	p := core.Position{
		Symbol:        jsonscan.String(obj, "symbol"),
		Amount:        jsonscan.DecimalOr(obj, "positionAmt", decimal.Zero),
		EntryPrice:    jsonscan.DecimalOr(obj, "entryPrice", decimal.Zero),
		MarkPrice:     jsonscan.DecimalOr(obj, "markPrice", decimal.Zero),
		UnrealizedPnL: jsonscan.DecimalOr(obj, "unRealizedProfit", decimal.Zero),
	}
	if lev, ok := jsonscan.Int(obj, "leverage"); ok {
		p.Leverage = lev
	}
	switch {
	case p.Amount.IsPositive():
		p.Side = core.PositionLong
	case p.Amount.IsNegative():
		p.Side = core.PositionShort
	default:
		p.Side = core.PositionBoth
	}
	p.PnLPercent = pnlPercent(p)
	return p
}

// pnlPercent is the leveraged return on entry. Shorts profit when the mark
// falls, so the sign flips.
func pnlPercent(p core.Position) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	pct := p.MarkPrice.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(hundred)
	if p.Leverage > 1 {
		pct = pct.Mul(decimal.NewFromInt(int64(p.Leverage)))
	}
	if p.Side == core.PositionShort {
		pct = pct.Neg()
	}
	return pct
}

// FuturesSymbols lists tradeable USDT-quoted symbols with their filters.
func (c *Client) FuturesSymbols(ctx context.Context) ([]core.SymbolFilter, error) {
	body, err := c.futuresRequest(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", url.Values{}, AuthNone)
	if err != nil {
		return nil, err
	}
	var filters []core.SymbolFilter
	for _, obj := range jsonscan.Objects(string(body), "symbols") {
		if jsonscan.String(obj, "quoteAsset") != "USDT" {
			continue
		}
		if jsonscan.String(obj, "status") != "TRADING" {
			continue
		}
		filters = append(filters, parseSymbolFilter(obj))
	}
	return filters, nil
}

func parseSymbolFilter(obj string) core.SymbolFilter {
	f := core.SymbolFilter{
		Symbol:     jsonscan.String(obj, "symbol"),
		BaseAsset:  jsonscan.String(obj, "baseAsset"),
		QuoteAsset: jsonscan.String(obj, "quoteAsset"),
		Status:     jsonscan.String(obj, "status"),
	}
	if p, ok := jsonscan.Int(obj, "pricePrecision"); ok {
		f.PricePrecision = p
	}
	if q, ok := jsonscan.Int(obj, "quantityPrecision"); ok {
		f.QuantityPrecision = q
	}
	for _, flt := range jsonscan.Objects(obj, "filters") {
		switch jsonscan.String(flt, "filterType") {
		case "LOT_SIZE":
			f.MinQty = jsonscan.DecimalOr(flt, "minQty", decimal.Zero)
			f.MaxQty = jsonscan.DecimalOr(flt, "maxQty", decimal.Zero)
			f.StepSize = jsonscan.DecimalOr(flt, "stepSize", decimal.Zero)
		case "MIN_NOTIONAL":
			f.MinNotional = jsonscan.DecimalOr(flt, "notional", decimal.Zero)
		}
	}
	return f
}

// ValidateQuantity checks and, when possible, adjusts qty against the
// symbol's live filters. The price and filter fetches fail closed: no
// validation happens on stale or missing data.
func (c *Client) ValidateQuantity(ctx context.Context, symbol string, qty decimal.Decimal) (core.ValidationOutcome, error) {
	ticker, err := c.TickerPrice(ctx, symbol)
	if err != nil {
		return core.ValidationOutcome{}, fmt.Errorf("fetch price: %w", err)
	}
	filter, err := c.futuresSymbolFilter(ctx, symbol)
	if err != nil {
		return core.ValidationOutcome{}, fmt.Errorf("fetch symbols: %w", err)
	}
	return core.ReconcileQuantity(qty, ticker.Price, filter), nil
}

func (c *Client) futuresSymbolFilter(ctx context.Context, symbol string) (core.SymbolFilter, error) {
	filters, err := c.FuturesSymbols(ctx)
	if err != nil {
		return core.SymbolFilter{}, err
	}
	for _, f := range filters {
		if f.Symbol == symbol {
			return f, nil
		}
	}
	return core.SymbolFilter{}, core.ErrSymbolNotFound
}
