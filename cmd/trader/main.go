package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"binance-trader/internal/alert"
	"binance-trader/internal/config"
	"binance-trader/internal/core"
	"binance-trader/internal/exchange/binance"
	"binance-trader/internal/journal"
	"binance-trader/internal/logger"
	"binance-trader/internal/vault"
)

const usageText = `usage: trader [flags] <command> [args]

market data
  check                      connectivity and permission checks
  price <symbol>             spot ticker price
  min-qty <symbol>           spot LOT_SIZE minimum
  symbols                    tradeable USDT futures symbols
  validate <symbol> <qty>    check a quantity against live filters

spot
  account                    spot balances
  buy <symbol> <qty>         market buy
  sell <symbol> <qty>        market sell (retries once on timeout)
  test-order <symbol> <side> <qty>   exchange-side dry run

futures
  futures-account            futures balance summary
  positions                  open positions
  open-long <symbol> <qty>   market open long
  open-short <symbol> <qty>  market open short
  close <symbol>             close position reduce-only
  limit-order <symbol> <side> <qty> <price> [position-side]   GTC limit order
  market-order <symbol> <side> <qty> [position-side]          plain market order
  leverage <symbol> <n>      set leverage
  margin-type <symbol> <ISOLATED|CROSSED>     set margin type

other
  history [date]             order journal for a day (YYYY-MM-DD)
`

// publicCommands run without credentials.
var publicCommands = map[string]bool{
	"price":    true,
	"min-qty":  true,
	"symbols":  true,
	"validate": true,
	"history":  true,
}

func main() {
	var (
		configPath string
		password   string
		yes        bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.StringVar(&password, "password", "", "vault password (prompted when empty)")
	flag.BoolVar(&yes, "yes", false, "auto-confirm quantity adjustments")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]
	args = args[1:]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Console:    cfg.Logging.Console,
	})

	app := &app{cfg: cfg, log: log, autoConfirm: yes}
	if err := app.run(command, args, password); err != nil {
		log.WithFields(logrus.Fields{"command": command, "error": err.Error()}).Error("command failed")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg         config.Config
	log         *logrus.Logger
	autoConfirm bool
	client      *binance.Client
	alerts      *alert.Manager
}

func (a *app) run(command string, args []string, password string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if command == "history" {
		return a.cmdHistory(args)
	}

	var session *vault.Session
	if !publicCommands[command] {
		var err error
		session, err = a.unlock(password)
		if err != nil {
			return err
		}
	}
	a.client = binance.NewClient(a.cfg.Exchange, session, a.log)
	a.client.SetConfirmer(a.confirmer())
	if j, err := journal.New(a.cfg.Journal.Dir); err == nil {
		a.client.SetJournal(j)
	} else {
		a.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("journal disabled")
	}
	if tg := a.cfg.Observability.Telegram; tg.Enabled {
		notifier := alert.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBaseURL,
			time.Duration(tg.TimeoutSec)*time.Second)
		a.alerts = alert.NewManager(string(a.cfg.Mode), notifier, a.log)
		a.client.SetAlerter(a.alerts)
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := a.alerts.Close(closeCtx); err != nil {
				a.log.WithFields(logrus.Fields{"error": err.Error()}).Warn("alert drain incomplete")
			}
		}()
	}

	switch command {
	case "check":
		return a.cmdCheck(ctx)
	case "price":
		return a.cmdPrice(ctx, args)
	case "min-qty":
		return a.cmdMinQty(ctx, args)
	case "symbols":
		return a.cmdSymbols(ctx)
	case "validate":
		return a.cmdValidate(ctx, args)
	case "account":
		return a.cmdAccount(ctx)
	case "buy", "sell":
		return a.cmdSpotOrder(ctx, command, args)
	case "test-order":
		return a.cmdTestOrder(ctx, args)
	case "futures-account":
		return a.cmdFuturesAccount(ctx)
	case "positions":
		return a.cmdPositions(ctx)
	case "open-long", "open-short":
		return a.cmdOpenPosition(ctx, command, args)
	case "close":
		return a.cmdClose(ctx, args)
	case "limit-order":
		return a.cmdLimitOrder(ctx, args)
	case "market-order":
		return a.cmdMarketOrder(ctx, args)
	case "leverage":
		return a.cmdLeverage(ctx, args)
	case "margin-type":
		return a.cmdMarginType(ctx, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) unlock(password string) (*vault.Session, error) {
	v, err := vault.NewEnvVault(a.cfg.Vault.EnvFile,
		vault.WithTTL(time.Duration(a.cfg.Vault.SessionTTLHours)*time.Hour))
	if err != nil {
		return nil, err
	}
	if !v.HasStoredCredentials() {
		return nil, vault.ErrNoCredentials
	}
	if password == "" {
		fmt.Print("vault password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, err
		}
		password = strings.TrimSpace(line)
	}
	return v.Unlock(password)
}

func (a *app) confirmer() binance.Confirmer {
	if a.autoConfirm {
		return autoConfirmer{}
	}
	return &promptConfirmer{in: bufio.NewReader(os.Stdin)}
}

type autoConfirmer struct{}

func (autoConfirmer) ConfirmAdjustment(core.ValidationOutcome) bool { return true }

type promptConfirmer struct {
	in *bufio.Reader
}

func (p *promptConfirmer) ConfirmAdjustment(outcome core.ValidationOutcome) bool {
	fmt.Println(outcome.Warning)
	fmt.Printf("proceed with adjusted quantity %s? [y/N]: ", outcome.AdjustedQty.String())
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (a *app) cmdCheck(ctx context.Context) error {
	start := time.Now()
	if err := a.client.Ping(ctx); err != nil {
		return fmt.Errorf("connectivity: %w", err)
	}
	fmt.Printf("connectivity ok (%s)\n", time.Since(start).Round(time.Millisecond))
	if err := a.client.CheckPermissions(ctx); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	fmt.Println("trading permission ok")
	return nil
}

func (a *app) cmdPrice(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	ticker, err := a.client.TickerPrice(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", ticker.Symbol, ticker.Price.String())
	return nil
}

func (a *app) cmdMinQty(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	minQty, err := a.client.MinOrderQty(ctx, symbol)
	if err != nil {
		return err
	}
	fmt.Printf("%s min quantity %s\n", symbol, minQty.String())
	return nil
}

func (a *app) cmdSymbols(ctx context.Context) error {
	symbols, err := a.client.FuturesSymbols(ctx)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Min Qty", "Step", "Min Notional", "Qty Prec", "Price Prec"})
	for _, s := range symbols {
		t.AppendRow(table.Row{
			s.Symbol, s.MinQty.String(), s.StepSize.String(),
			s.MinNotional.String(), s.QuantityPrecision, s.PricePrecision,
		})
	}
	t.Render()
	return nil
}

func (a *app) cmdValidate(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 1, "quantity")
	if err != nil {
		return err
	}
	outcome, err := a.client.ValidateQuantity(ctx, symbol, qty)
	if err != nil {
		return err
	}
	if outcome.Err != nil {
		return outcome.Err
	}
	if outcome.Warning != "" {
		fmt.Println(outcome.Warning)
	}
	if outcome.IsValid {
		fmt.Printf("quantity %s ok\n", outcome.AdjustedQty.String())
	} else {
		fmt.Printf("quantity needs confirmation, suggested %s\n", outcome.AdjustedQty.String())
	}
	return nil
}

func (a *app) cmdAccount(ctx context.Context) error {
	acct, err := a.client.Account(ctx)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("spot account (trade %v, withdraw %v)", acct.CanTrade, acct.CanWithdraw))
	t.AppendHeader(table.Row{"Asset", "Free", "Locked"})
	for _, b := range acct.Balances {
		t.AppendRow(table.Row{b.Asset, b.Free.String(), b.Locked.String()})
	}
	t.Render()
	return nil
}

func (a *app) cmdSpotOrder(ctx context.Context, command string, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 1, "quantity")
	if err != nil {
		return err
	}
	var result core.OrderResult
	if command == "buy" {
		result, err = a.client.MarketBuy(ctx, symbol, qty)
	} else {
		result, err = a.client.MarketSell(ctx, symbol, qty)
	}
	if err != nil {
		return err
	}
	printOrderResult(result)
	return nil
}

func (a *app) cmdTestOrder(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	side, err := sideArg(args, 1)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 2, "quantity")
	if err != nil {
		return err
	}
	if err := a.client.TestOrder(ctx, symbol, side, qty); err != nil {
		return err
	}
	fmt.Println("test order accepted")
	return nil
}

func (a *app) cmdFuturesAccount(ctx context.Context) error {
	acct, err := a.client.FuturesAccount(ctx)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("futures account")
	t.AppendRows([]table.Row{
		{"Wallet balance", acct.TotalWalletBalance.String()},
		{"Unrealized PnL", acct.TotalUnrealizedPnL.String()},
		{"Margin balance", acct.TotalMarginBalance.String()},
		{"Available", acct.AvailableBalance.String()},
		{"Max withdraw", acct.MaxWithdrawAmount.String()},
	})
	t.Render()
	return nil
}

func (a *app) cmdPositions(ctx context.Context) error {
	positions, err := a.client.Positions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Side", "Amount", "Entry", "Mark", "PnL", "PnL %", "Lev"})
	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Symbol, p.Side, p.Amount.String(), p.EntryPrice.String(),
			p.MarkPrice.String(), p.UnrealizedPnL.String(),
			p.PnLPercent.StringFixed(2), p.Leverage,
		})
	}
	t.Render()
	return nil
}

func (a *app) cmdOpenPosition(ctx context.Context, command string, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 1, "quantity")
	if err != nil {
		return err
	}
	var result core.OrderResult
	if command == "open-long" {
		result, err = a.client.OpenLong(ctx, symbol, qty)
	} else {
		result, err = a.client.OpenShort(ctx, symbol, qty)
	}
	if err != nil {
		return err
	}
	printOrderResult(result)
	return nil
}

func (a *app) cmdClose(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	result, err := a.client.ClosePosition(ctx, symbol)
	if errors.Is(err, core.ErrNoPosition) {
		fmt.Printf("no position to close on %s\n", symbol)
		return nil
	}
	if err != nil {
		return err
	}
	printOrderResult(result)
	return nil
}

func (a *app) cmdLimitOrder(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	side, err := sideArg(args, 1)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 2, "quantity")
	if err != nil {
		return err
	}
	price, err := decimalArg(args, 3, "price")
	if err != nil {
		return err
	}
	positionSide, err := positionSideArg(args, 4)
	if err != nil {
		return err
	}
	result, err := a.client.FuturesLimitOrder(ctx, symbol, side, positionSide, qty, price)
	if err != nil {
		return err
	}
	printOrderResult(result)
	return nil
}

func (a *app) cmdMarketOrder(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	side, err := sideArg(args, 1)
	if err != nil {
		return err
	}
	qty, err := decimalArg(args, 2, "quantity")
	if err != nil {
		return err
	}
	positionSide, err := positionSideArg(args, 3)
	if err != nil {
		return err
	}
	result, err := a.client.FuturesMarketOrder(ctx, symbol, side, positionSide, qty, false)
	if err != nil {
		return err
	}
	printOrderResult(result)
	return nil
}

func (a *app) cmdLeverage(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("leverage value required")
	}
	leverage, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("leverage %q: %w", args[1], err)
	}
	if err := a.client.SetLeverage(ctx, symbol, leverage); err != nil {
		return err
	}
	fmt.Printf("%s leverage set to %dx\n", symbol, leverage)
	return nil
}

func (a *app) cmdMarginType(ctx context.Context, args []string) error {
	symbol, err := symbolArg(args, 0)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("margin type required (ISOLATED or CROSSED)")
	}
	marginType := core.MarginType(strings.ToUpper(args[1]))
	if marginType != core.MarginIsolated && marginType != core.MarginCrossed {
		return fmt.Errorf("margin type %q, want ISOLATED or CROSSED", args[1])
	}
	if err := a.client.SetMarginType(ctx, symbol, marginType); err != nil {
		return err
	}
	fmt.Printf("%s margin type set to %s\n", symbol, marginType)
	return nil
}

func (a *app) cmdHistory(args []string) error {
	day := time.Now().UTC()
	if len(args) > 0 {
		parsed, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("date %q: %w", args[0], err)
		}
		day = parsed
	}
	j, err := journal.New(a.cfg.Journal.Dir)
	if err != nil {
		return err
	}
	entries, err := j.ReadDay(day)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("no orders on %s\n", day.Format("2006-01-02"))
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Market", "Symbol", "Side", "Type", "Qty", "Price", "Status", "Error"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Time.Format("15:04:05"), e.Market, e.Symbol, e.Side, e.Type,
			e.Qty.String(), e.Price.String(), e.Status, e.Error,
		})
	}
	t.Render()
	return nil
}

func printOrderResult(r core.OrderResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Symbol", r.Symbol},
		{"Order ID", r.OrderID},
		{"Client ID", r.ClientOrderID},
		{"Side", string(r.Side)},
		{"Type", string(r.Type)},
		{"Status", string(r.Status)},
		{"Executed qty", r.ExecutedQty.String()},
		{"Executed price", r.ExecutedPrice.String()},
	})
	t.Render()
}

func symbolArg(args []string, idx int) (string, error) {
	if len(args) <= idx {
		return "", errors.New("symbol required")
	}
	return strings.ToUpper(args[idx]), nil
}

func sideArg(args []string, idx int) (core.Side, error) {
	if len(args) <= idx {
		return "", errors.New("side required (BUY or SELL)")
	}
	switch strings.ToUpper(args[idx]) {
	case "BUY":
		return core.Buy, nil
	case "SELL":
		return core.Sell, nil
	default:
		return "", fmt.Errorf("side %q, want BUY or SELL", args[idx])
	}
}

// positionSideArg is optional; absent means a one-way-mode account.
func positionSideArg(args []string, idx int) (core.PositionSide, error) {
	if len(args) <= idx {
		return core.PositionBoth, nil
	}
	switch strings.ToUpper(args[idx]) {
	case "BOTH":
		return core.PositionBoth, nil
	case "LONG":
		return core.PositionLong, nil
	case "SHORT":
		return core.PositionShort, nil
	default:
		return "", fmt.Errorf("position side %q, want LONG, SHORT or BOTH", args[idx])
	}
}

func decimalArg(args []string, idx int, name string) (decimal.Decimal, error) {
	if len(args) <= idx {
		return decimal.Zero, fmt.Errorf("%s required", name)
	}
	d, err := decimal.NewFromString(args[idx])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", name, args[idx], err)
	}
	if d.Cmp(decimal.Zero) <= 0 && name == "quantity" {
		return decimal.Zero, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
