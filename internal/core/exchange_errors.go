package core

import "errors"

var (
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient funds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateOrder indicates the client order id has already been accepted before.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by exchange.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderExpired indicates the order has expired on exchange.
	ErrOrderExpired = errors.New("order expired")
	// ErrSymbolNotFound indicates the symbol is absent from the fetched exchange metadata.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrNoPosition indicates a close was requested while the account holds no position.
	ErrNoPosition = errors.New("no position to close")
	// ErrOrderDeclined indicates the caller declined to proceed with an adjusted quantity.
	ErrOrderDeclined = errors.New("order declined by caller")
	// ErrTradingDisabled indicates the API key lacks trading permission.
	ErrTradingDisabled = errors.New("trading permission disabled")
	// ErrOrderTooLarge indicates the order notional exceeds the configured cap.
	ErrOrderTooLarge = errors.New("order notional above configured cap")
)
