package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"binance-trader/internal/core"
	"binance-trader/internal/journal"
	"binance-trader/internal/jsonscan"
)

// Quantity and price formatting widths. Futures endpoints reject excess
// precision outright, so values are truncated before formatting.
const (
	spotQtyScale      = 8
	futuresQtyScale   = 3
	futuresPriceScale = 2
)

const apiCodeNoNeedToChangeMargin = -4046

type spotSymbol struct {
	baseAsset  string
	quoteAsset string
	minQty     decimal.Decimal
	stepSize   decimal.Decimal
}

// MarketBuy places a spot market buy after checking the quote balance can
// cover the order at the current price. The checks run in order: price,
// account, sufficiency; the first failure aborts.
func (c *Client) MarketBuy(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error) {
	ticker, err := c.TickerPrice(ctx, symbol)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch price: %w", err)
	}
	info, err := c.spotSymbolInfo(ctx, symbol)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch symbol: %w", err)
	}
	acct, err := c.Account(ctx)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch account: %w", err)
	}
	cost := qty.Mul(ticker.Price)
	if err := c.checkNotionalCap(cost); err != nil {
		return core.OrderResult{}, err
	}
	free := acct.Balance(info.quoteAsset).Free
	if free.Cmp(cost) < 0 {
		return core.OrderResult{}, fmt.Errorf("%w: need %s %s, have %s",
			core.ErrInsufficientBalance, cost.String(), info.quoteAsset, free.String())
	}
	return c.submitSpotOrder(ctx, symbol, core.Buy, qty, ticker.Price, singleAttempt)
}

// MarketSell places a spot market sell. The quantity is rounded down to the
// lot step first, and submission retries once on a transport timeout with
// the same client order ID so the exchange deduplicates.
func (c *Client) MarketSell(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error) {
	info, err := c.spotSymbolInfo(ctx, symbol)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch symbol: %w", err)
	}
	if !info.stepSize.IsZero() {
		qty = core.RoundDownToStep(qty, info.stepSize)
	}
	if qty.Cmp(info.minQty) < 0 {
		return core.OrderResult{}, fmt.Errorf("%w: %s below lot minimum %s",
			core.ErrInvalidQuantity, qty.String(), info.minQty.String())
	}
	acct, err := c.Account(ctx)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch account: %w", err)
	}
	free := acct.Balance(info.baseAsset).Free
	if free.Cmp(qty) < 0 {
		return core.OrderResult{}, fmt.Errorf("%w: need %s %s, have %s",
			core.ErrInsufficientBalance, qty.String(), info.baseAsset, free.String())
	}
	return c.submitSpotOrder(ctx, symbol, core.Sell, qty, decimal.Zero, c.sellRetry)
}

// TestOrder runs the exchange-side dry run; nothing executes.
func (c *Client) TestOrder(ctx context.Context, symbol string, side core.Side, qty decimal.Decimal) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(core.Market))
	params.Set("quantity", qty.Truncate(spotQtyScale).String())
	_, err := c.spotOrderRequest(ctx, http.MethodPost, "/api/v3/order/test", params, singleAttempt)
	return err
}

func (c *Client) submitSpotOrder(ctx context.Context, symbol string, side core.Side, qty, refPrice decimal.Decimal, policy RetryPolicy) (core.OrderResult, error) {
	clientID := newClientOrderID()
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(core.Market))
	params.Set("quantity", qty.Truncate(spotQtyScale).String())
	params.Set("newClientOrderId", clientID)

	body, err := c.spotOrderRequest(ctx, http.MethodPost, "/api/v3/order", params, policy)
	if err != nil {
		c.reportOrder(journal.Entry{
			Market: "spot", Symbol: symbol, Side: side, Type: core.Market,
			ClientOrderID: clientID, Qty: qty, Price: refPrice, Error: err.Error(),
		})
		return core.OrderResult{}, err
	}
	result := parseOrderResult(string(body), symbol, side, core.Market)
	result.ClientOrderID = clientID
	c.reportOrder(journal.Entry{
		Market: "spot", Symbol: symbol, Side: side, Type: core.Market,
		OrderID: result.OrderID, ClientOrderID: clientID, Status: string(result.Status),
		Qty: result.ExecutedQty, Price: result.ExecutedPrice,
	})
	return result, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return fmt.Errorf("leverage %d out of range 1..125", leverage)
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", fmt.Sprintf("%d", leverage))
	_, err := c.futuresOrderRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

func (c *Client) SetMarginType(ctx context.Context, symbol string, marginType core.MarginType) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", string(marginType))
	_, err := c.futuresOrderRequest(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	if err != nil && IsAPIErrorCode(err, apiCodeNoNeedToChangeMargin) {
		return nil
	}
	return err
}

// FuturesMarketOrder submits a market order. An empty positionSide means a
// one-way-mode account and is sent as BOTH; LONG or SHORT selects a hedge-mode
// leg, where the exchange rejects reduceOnly and the close intent travels in
// positionSide instead.
func (c *Client) FuturesMarketOrder(ctx context.Context, symbol string, side core.Side, positionSide core.PositionSide, qty decimal.Decimal, reduceOnly bool) (core.OrderResult, error) {
	if positionSide == "" {
		positionSide = core.PositionBoth
	}
	if positionSide != core.PositionBoth {
		reduceOnly = false
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(core.Market))
	params.Set("quantity", qty.Truncate(futuresQtyScale).String())
	params.Set("positionSide", string(positionSide))
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	return c.submitFuturesOrder(ctx, params, symbol, side, positionSide, core.Market, qty, decimal.Zero, reduceOnly)
}

// FuturesLimitOrder places a GTC limit order, validating the quantity
// against live filters first.
func (c *Client) FuturesLimitOrder(ctx context.Context, symbol string, side core.Side, positionSide core.PositionSide, qty, price decimal.Decimal) (core.OrderResult, error) {
	finalQty, err := c.validateForOrder(ctx, symbol, qty)
	if err != nil {
		return core.OrderResult{}, err
	}
	if positionSide == "" {
		positionSide = core.PositionBoth
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(core.Limit))
	params.Set("timeInForce", "GTC")
	params.Set("quantity", finalQty.Truncate(futuresQtyScale).String())
	params.Set("price", price.Truncate(futuresPriceScale).String())
	params.Set("positionSide", string(positionSide))
	return c.submitFuturesOrder(ctx, params, symbol, side, positionSide, core.Limit, finalQty, price, false)
}

func (c *Client) OpenLong(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error) {
	finalQty, err := c.validateForOrder(ctx, symbol, qty)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.FuturesMarketOrder(ctx, symbol, core.Buy, core.PositionBoth, finalQty, false)
}

func (c *Client) OpenShort(ctx context.Context, symbol string, qty decimal.Decimal) (core.OrderResult, error) {
	finalQty, err := c.validateForOrder(ctx, symbol, qty)
	if err != nil {
		return core.OrderResult{}, err
	}
	return c.FuturesMarketOrder(ctx, symbol, core.Sell, core.PositionBoth, finalQty, false)
}

// ClosePosition reads the live position and closes it with a reduce-only
// market order on the opposite side.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (core.OrderResult, error) {
	pos, err := c.Position(ctx, symbol)
	if err != nil {
		return core.OrderResult{}, fmt.Errorf("fetch position: %w", err)
	}
	if pos.Flat() {
		return core.OrderResult{}, core.ErrNoPosition
	}
	side := core.Sell
	if pos.Amount.IsNegative() {
		side = core.Buy
	}
	return c.FuturesMarketOrder(ctx, symbol, side, core.PositionBoth, pos.Amount.Abs(), true)
}

// checkNotionalCap rejects orders whose quote value exceeds the configured
// cap. A zero cap disables the check.
func (c *Client) checkNotionalCap(notional decimal.Decimal) error {
	if c.notionalCap.IsZero() || notional.Cmp(c.notionalCap) <= 0 {
		return nil
	}
	return fmt.Errorf("%w: %s over %s", core.ErrOrderTooLarge, notional.String(), c.notionalCap.String())
}

// validateForOrder runs filter validation and resolves warnings. A terminal
// validation error or a declined adjustment aborts with no submission.
func (c *Client) validateForOrder(ctx context.Context, symbol string, qty decimal.Decimal) (decimal.Decimal, error) {
	outcome, err := c.ValidateQuantity(ctx, symbol, qty)
	if err != nil {
		return decimal.Zero, err
	}
	if outcome.Err != nil {
		return decimal.Zero, outcome.Err
	}
	if err := c.checkNotionalCap(outcome.AdjustedQty.Mul(outcome.Price)); err != nil {
		return decimal.Zero, err
	}
	if outcome.Warning == "" {
		return outcome.AdjustedQty, nil
	}
	if outcome.IsValid {
		// Allowed auto-adjustment, applied without asking.
		c.log.WithFields(logrus.Fields{
			"symbol":   symbol,
			"adjusted": outcome.AdjustedQty.String(),
		}).Info(outcome.Warning)
		return outcome.AdjustedQty, nil
	}
	confirm := c.confirmer()
	if confirm == nil || !confirm.ConfirmAdjustment(outcome) {
		return decimal.Zero, core.ErrOrderDeclined
	}
	return outcome.AdjustedQty, nil
}

func (c *Client) submitFuturesOrder(ctx context.Context, params url.Values, symbol string, side core.Side, positionSide core.PositionSide, orderType core.OrderType, qty, price decimal.Decimal, reduceOnly bool) (core.OrderResult, error) {
	clientID := newClientOrderID()
	params.Set("newClientOrderId", clientID)

	body, err := c.futuresOrderRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		c.reportOrder(journal.Entry{
			Market: "futures", Symbol: symbol, Side: side, Type: orderType,
			ClientOrderID: clientID, Qty: qty, Price: price, Error: err.Error(),
		})
		return core.OrderResult{}, err
	}
	result := parseOrderResult(string(body), symbol, side, orderType)
	result.ClientOrderID = clientID
	result.PositionSide = positionSide
	result.ReduceOnly = reduceOnly
	c.reportOrder(journal.Entry{
		Market: "futures", Symbol: symbol, Side: side, Type: orderType,
		OrderID: result.OrderID, ClientOrderID: clientID, Status: string(result.Status),
		Qty: result.ExecutedQty, Price: result.ExecutedPrice,
	})
	return result, nil
}

// parseOrderResult builds the terminal result from the raw response.
// Executed price falls back to cumulative quote over executed quantity when
// no avgPrice is present (spot market fills).
func parseOrderResult(text, symbol string, side core.Side, orderType core.OrderType) core.OrderResult {
	result := core.OrderResult{
		Symbol:      symbol,
		Side:        side,
		Type:        orderType,
		Status:      core.OrderStatus(jsonscan.String(text, "status")),
		ExecutedQty: jsonscan.DecimalOr(text, "executedQty", decimal.Zero),
	}
	if id, ok := jsonscan.Value(text, "orderId"); ok {
		result.OrderID = id
	}
	if avg, ok := jsonscan.Decimal(text, "avgPrice"); ok && !avg.IsZero() {
		result.ExecutedPrice = avg
	} else if quote, ok := jsonscan.Decimal(text, "cummulativeQuoteQty"); ok && !result.ExecutedQty.IsZero() {
		result.ExecutedPrice = quote.Div(result.ExecutedQty)
	}
	return result
}

// reportOrder fans an order outcome out to the journal and the alerter.
func (c *Client) reportOrder(e journal.Entry) {
	c.record(e)
	fields := map[string]string{
		"market": e.Market,
		"symbol": e.Symbol,
		"side":   string(e.Side),
		"qty":    e.Qty.String(),
	}
	event := "order_submitted"
	if e.Error != "" {
		event = "order_failed"
		fields["error"] = e.Error
	} else {
		fields["order_id"] = e.OrderID
		fields["status"] = e.Status
	}
	c.orderEvent(event, fields)
}

func (c *Client) spotSymbolInfo(ctx context.Context, symbol string) (spotSymbol, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.spotRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, AuthNone)
	if err != nil {
		return spotSymbol{}, err
	}
	symbols := jsonscan.Objects(string(body), "symbols")
	if len(symbols) == 0 {
		return spotSymbol{}, core.ErrSymbolNotFound
	}
	obj := symbols[0]
	info := spotSymbol{
		baseAsset:  jsonscan.String(obj, "baseAsset"),
		quoteAsset: jsonscan.String(obj, "quoteAsset"),
		minQty:     defaultMinQty,
	}
	for _, f := range jsonscan.Objects(obj, "filters") {
		if jsonscan.String(f, "filterType") != "LOT_SIZE" {
			continue
		}
		info.minQty = jsonscan.DecimalOr(f, "minQty", defaultMinQty)
		info.stepSize = jsonscan.DecimalOr(f, "stepSize", decimal.Zero)
	}
	return info, nil
}

// newClientOrderID tags a submission so a retried request is deduplicated
// server-side rather than double-executed.
func newClientOrderID() string {
	return "bt-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
