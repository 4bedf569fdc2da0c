// Package executor runs one strategy execution cycle across all of its
// subscribers. Market data is fetched once and signals are generated once;
// order placement then fans out per subscriber with isolated credentials,
// bounded parallelism and full failure isolation.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"copyTradeEngine/internal/audit"
	"copyTradeEngine/internal/domain"
	"copyTradeEngine/internal/ports"
	"copyTradeEngine/internal/risk"
	"copyTradeEngine/internal/strategy"
)

const (
	defaultMaxParallel       = 10
	defaultSubscriberTimeout = 30 * time.Second
)

// Config holds the executor's operational parameters.
type Config struct {
	// MaxParallel bounds concurrent subscriber processing. Defaults to 10.
	MaxParallel int
	// SubscriberTimeout bounds one subscriber's slice of the cycle.
	// Defaults to 30s.
	SubscriberTimeout time.Duration
	// Risk carries the shared cost and floor parameters for sizing.
	Risk risk.Config
}

// Executor fans one signal set out to many subscriber accounts.
type Executor struct {
	cfg         Config
	newExchange ports.ExchangeFactory
	reporter    ports.TradeReporter // may be nil, disables trade events
	trades      ports.TradeRepository
	logger      ports.Logger
}

// New creates an executor. The exchange factory and logger are required; the
// reporter and trade repository are optional side channels.
func New(cfg Config, newExchange ports.ExchangeFactory, reporter ports.TradeReporter, trades ports.TradeRepository, logger ports.Logger) (*Executor, error) {
	if newExchange == nil {
		return nil, fmt.Errorf("executor: exchange factory is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("executor: logger is required")
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if cfg.SubscriberTimeout <= 0 {
		cfg.SubscriberTimeout = defaultSubscriberTimeout
	}
	return &Executor{
		cfg:         cfg,
		newExchange: newExchange,
		reporter:    reporter,
		trades:      trades,
		logger:      logger,
	}, nil
}

// Execute runs one cycle of the given strategy for all subscribers. It
// returns an error only for fatal cycle-level failures (no subscribers, data
// fetch failure, signal generation failure); per-subscriber failures are
// isolated into the result's error map.
func (e *Executor) Execute(ctx context.Context, module *strategy.Module, settings *domain.Settings, subscribers []*domain.Subscriber) (*domain.ExecutionResult, error) {
	if err := module.RequireLive(); err != nil {
		return nil, err
	}
	if len(subscribers) == 0 {
		return nil, ports.ErrNoSubscribers
	}

	frame, err := e.fetchOnce(ctx, module, settings, subscribers[0])
	if err != nil {
		return nil, err
	}
	frame, err = e.generateSignals(ctx, module, frame, settings)
	if err != nil {
		return nil, fmt.Errorf("executor: signal generation failed: %w", err)
	}

	e.logger.Info(ctx, "fanning out execution", map[string]interface{}{
		"strategy":    module.Strategy.Name(),
		"pair":        settings.Pair,
		"subscribers": len(subscribers),
		"candles":     frame.Len(),
	})

	type outcome struct {
		userID string
		trades int
		err    error
	}
	outcomes := make([]outcome, len(subscribers))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.MaxParallel)
	for i, sub := range subscribers {
		wg.Add(1)
		go func(i int, sub *domain.Subscriber) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			subCtx, cancel := context.WithTimeout(ctx, e.cfg.SubscriberTimeout)
			defer cancel()

			trades, err := e.processSafely(subCtx, module, settings, sub, frame)
			outcomes[i] = outcome{userID: sub.UserID, trades: trades, err: err}
		}(i, sub)
	}
	wg.Wait()

	result := &domain.ExecutionResult{Success: true}
	for _, o := range outcomes {
		if o.err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[o.userID] = o.err.Error()
			e.logger.Error(ctx, o.err, "subscriber execution failed", map[string]interface{}{
				"user_id": o.userID, "pair": settings.Pair,
			})
			continue
		}
		result.SubscribersProcessed++
		result.TradesAttempted += o.trades
	}
	return result, nil
}

// fetchOnce retrieves market data using the first subscriber's credentials.
// A fetch failure or an empty series fails the whole cycle.
func (e *Executor) fetchOnce(ctx context.Context, module *strategy.Module, settings *domain.Settings, first *domain.Subscriber) (*domain.Frame, error) {
	client, err := e.newExchange(first.APIKey, first.APISecret)
	if err != nil {
		return nil, fmt.Errorf("executor: building exchange client for data fetch: %w", err)
	}
	trader, err := module.LiveFactory.NewLiveTrader(settings.ForSubscriber(first), client, e.logger)
	if err != nil {
		return nil, fmt.Errorf("executor: building trader for data fetch: %w", err)
	}
	frame, err := trader.GetLatestData(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: market data fetch failed: %w", err)
	}
	if frame == nil || frame.Len() == 0 {
		return nil, ports.ErrNoMarketData
	}
	return frame, nil
}

// generateSignals annotates the frame once for the whole cycle. For
// multi-resolution strategies the base series is resampled to the signal
// resolution, signals are generated there, and only the signal columns are
// forward-filled back onto the base resolution.
func (e *Executor) generateSignals(ctx context.Context, module *strategy.Module, frame *domain.Frame, settings *domain.Settings) (*domain.Frame, error) {
	if module.SignalResolution == "" || module.SignalResolution == settings.Resolution {
		return module.Strategy.GenerateSignals(ctx, frame, settings)
	}

	target, err := domain.ParseResolution(module.SignalResolution)
	if err != nil {
		return nil, err
	}
	coarse, err := frame.Resample(target)
	if err != nil {
		return nil, err
	}
	coarse, err = module.Strategy.GenerateSignals(ctx, coarse, settings)
	if err != nil {
		return nil, err
	}

	columns := coarse.Columns()
	for _, c := range domain.EntryColumns() {
		if !coarse.HasColumn(c) {
			columns = append(columns, c)
		}
	}
	missing := frame.MergeSignals(coarse, columns)
	if len(missing) > 0 {
		e.logger.Warn(ctx, "signal columns missing after resolution merge, treated as no-signal", map[string]interface{}{
			"strategy": module.Strategy.Name(),
			"columns":  missing,
		})
	}
	return frame, nil
}

// processSafely isolates one subscriber: a panic inside strategy or adapter
// code becomes that subscriber's error, never the cycle's.
func (e *Executor) processSafely(ctx context.Context, module *strategy.Module, settings *domain.Settings, sub *domain.Subscriber, frame *domain.Frame) (trades int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: subscriber processing panicked: %v", r)
		}
	}()
	return e.processSubscriber(ctx, module, settings, sub, frame)
}

func (e *Executor) processSubscriber(ctx context.Context, module *strategy.Module, settings *domain.Settings, sub *domain.Subscriber, frame *domain.Frame) (int, error) {
	raw, err := e.newExchange(sub.APIKey, sub.APISecret)
	if err != nil {
		return 0, fmt.Errorf("building exchange client: %w", err)
	}
	client := audit.WrapExchange(raw, e.reporter, audit.TradeContext{
		SubscriptionID: settings.SubscriptionID,
		StrategyID:     settings.StrategyID,
		UserID:         sub.UserID,
		Leverage:       sub.Leverage,
	}, e.logger)

	subSettings := settings.ForSubscriber(sub)
	trader, err := module.LiveFactory.NewLiveTrader(subSettings, client, e.logger)
	if err != nil {
		return 0, fmt.Errorf("building live trader: %w", err)
	}

	// The exchange is the source of truth for position state. A trader that
	// believes it holds a position the exchange no longer reports is reset to
	// flat and skipped for this cycle.
	pos, err := client.GetPositionRisk(ctx, settings.Pair)
	if err != nil {
		return 0, fmt.Errorf("verifying position state: %w", err)
	}
	if trader.InPosition() && pos == nil {
		e.logger.Warn(ctx, "tracked position no longer open on exchange, resetting to flat", map[string]interface{}{
			"user_id": sub.UserID, "pair": settings.Pair,
		})
		return 0, nil
	}

	if pos != nil {
		return e.manageOpenPosition(ctx, module, trader, client, subSettings, sub, pos, frame)
	}
	return e.tryEnter(ctx, trader, client, subSettings, sub, frame)
}

// manageOpenPosition handles a subscriber whose exchange position is open:
// strategy-specific management first, then the engine-level exit signal.
func (e *Executor) manageOpenPosition(ctx context.Context, module *strategy.Module, trader ports.LiveTrader, client ports.ExchangeClient, settings *domain.Settings, sub *domain.Subscriber, pos *ports.PositionRisk, frame *domain.Frame) (int, error) {
	if pm, ok := trader.(ports.PositionManager); ok {
		if err := pm.CheckAndManagePosition(ctx, frame); err != nil {
			return 0, fmt.Errorf("managing open position: %w", err)
		}
	}

	sig, err := trader.CheckForNewSignal(ctx, frame)
	if err != nil {
		return 0, fmt.Errorf("checking exit signal: %w", err)
	}

	side := domain.Long
	if pos.PositionAmt < 0 {
		side = domain.Short
	}
	// A reverse-direction entry against the open side counts as an exit;
	// crossover strategies flag the opposite entry, not the exit column, on
	// the reversal candle.
	if !sig.Action.Closes(side) {
		return 0, nil
	}

	qty := pos.PositionAmt
	if qty < 0 {
		qty = -qty
	}
	closeSide := domain.Short
	if side == domain.Short {
		closeSide = domain.Long
	}
	orderCtx := audit.WithExitReason(ctx, domain.ReasonSignal)
	order, err := client.PlaceMarketOrder(orderCtx, settings.Pair, closeSide, qty, newClientOrderID())
	if err != nil {
		return 0, fmt.Errorf("closing position on exit signal: %w", err)
	}
	e.logger.Info(ctx, "position closed on exit signal", map[string]interface{}{
		"user_id": sub.UserID, "pair": settings.Pair, "side": side, "quantity": qty, "order_id": order.OrderID,
	})
	e.journalClose(ctx, settings, sub, side, pos, order, qty)
	return 1, nil
}

// journalClose records a completed round trip best-effort. The exchange
// position snapshot does not carry the entry time, so the record's entry
// time is left zero-valued.
func (e *Executor) journalClose(ctx context.Context, settings *domain.Settings, sub *domain.Subscriber, side domain.Side, pos *ports.PositionRisk, order *ports.OrderResponse, qty float64) {
	if e.trades == nil {
		return
	}
	exitPrice := order.AvgPrice
	if exitPrice == 0 {
		exitPrice = pos.MarkPrice
	}
	gross := (exitPrice - pos.EntryPrice) * qty
	if side == domain.Short {
		gross = (pos.EntryPrice - exitPrice) * qty
	}
	commission := (pos.EntryPrice + exitPrice) * qty * e.cfg.Risk.CommissionRate
	commission += commission * e.cfg.Risk.GSTRate
	net := gross - commission
	trade := &domain.Trade{
		UserID:     sub.UserID,
		StrategyID: settings.StrategyID,
		Symbol:     settings.Pair,
		Side:       side,
		ExitTime:   time.Now().UTC(),
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   qty,
		Leverage:   sub.Leverage,
		PNL:        net,
		Commission: commission,
		Reason:     domain.ReasonSignal,
	}
	if notional := pos.EntryPrice * qty; notional > 0 {
		trade.PNLPct = net / notional * 100
	}
	if _, err := e.trades.CreateTrade(ctx, trade); err != nil {
		e.logger.Warn(ctx, "failed to journal closed trade", map[string]interface{}{
			"user_id": sub.UserID, "error": err.Error(),
		})
	}
}

// tryEnter handles a flat subscriber: evaluate the entry signal, size the
// position with the subscriber's own capital, and place the entry plus
// protective orders.
func (e *Executor) tryEnter(ctx context.Context, trader ports.LiveTrader, client ports.ExchangeClient, settings *domain.Settings, sub *domain.Subscriber, frame *domain.Frame) (int, error) {
	sig, err := trader.CheckForNewSignal(ctx, frame)
	if err != nil {
		return 0, fmt.Errorf("checking entry signal: %w", err)
	}
	if !sig.Action.IsEntry() {
		return 0, nil
	}

	// Daily trade cap, counted from the journal.
	if limit := int(settings.Param("max_daily_trades", 0)); limit > 0 && e.trades != nil {
		done, err := e.trades.CountTodayByUser(ctx, sub.UserID)
		if err != nil {
			e.logger.Warn(ctx, "cannot count today's trades, cap not enforced", map[string]interface{}{
				"user_id": sub.UserID, "error": err.Error(),
			})
		} else if done >= limit {
			e.logger.Info(ctx, "daily trade limit reached, skipping entry", map[string]interface{}{
				"user_id": sub.UserID, "limit": limit, "trades_today": done,
			})
			return 0, nil
		}
	}

	mgr, err := risk.NewManager(e.cfg.Risk, e.logger)
	if err != nil {
		return 0, err
	}
	entryPrice := sig.Price
	if entryPrice <= 0 {
		if mark, err := client.GetMarkPrice(ctx, settings.Pair); err == nil && mark > 0 {
			entryPrice = mark
		} else {
			entryPrice = frame.Last().Close
		}
	}

	// Size from the smaller of the configured capital and what the account
	// actually holds; a deposit withdrawn since configuration must not
	// inflate the position.
	capital := sub.Capital
	asset := settings.MarginCurrency
	if asset == "" {
		asset = "USDT"
	}
	if balance, err := client.GetAccountBalance(ctx, asset); err != nil {
		e.logger.Warn(ctx, "cannot read account balance, sizing from configured capital", map[string]interface{}{
			"user_id": sub.UserID, "asset": asset, "error": err.Error(),
		})
	} else if balance < capital {
		e.logger.Warn(ctx, "available balance below configured capital, sizing from balance", map[string]interface{}{
			"user_id": sub.UserID, "capital": capital, "balance": balance,
		})
		capital = balance
	}

	qty, err := mgr.PositionSize(capital, sub.RiskPerTrade, float64(sub.Leverage), entryPrice, sig.StopLoss)
	if err != nil {
		return 0, fmt.Errorf("sizing position: %w", err)
	}
	qty = mgr.EnforceMinQuantity(ctx, qty)

	if err := client.SetLeverage(ctx, settings.Pair, sub.Leverage); err != nil {
		e.logger.Warn(ctx, "failed to set leverage, continuing with account default", map[string]interface{}{
			"user_id": sub.UserID, "leverage": sub.Leverage, "error": err.Error(),
		})
	}

	side := domain.Long
	if sig.Action == domain.SignalShort {
		side = domain.Short
	}
	order, err := client.PlaceMarketOrder(ctx, settings.Pair, side, qty, newClientOrderID())
	if err != nil {
		return 0, fmt.Errorf("placing entry order: %w", err)
	}
	e.logger.Info(ctx, "entry order placed", map[string]interface{}{
		"user_id": sub.UserID, "pair": settings.Pair, "side": side,
		"quantity": qty, "order_id": order.OrderID,
	})

	// Protective orders sit on the opposite side of the entry. Their failure
	// is logged but does not undo the filled entry.
	protectSide := domain.Short
	if side == domain.Short {
		protectSide = domain.Long
	}
	if sig.StopLoss > 0 {
		if _, err := client.PlaceStopMarketOrder(ctx, settings.Pair, protectSide, qty, sig.StopLoss, newClientOrderID()); err != nil {
			e.logger.Error(ctx, err, "failed to place stop-loss order", map[string]interface{}{
				"user_id": sub.UserID, "stop_price": sig.StopLoss,
			})
		}
	}
	if sig.TakeProfit > 0 {
		if _, err := client.PlaceTakeProfitMarketOrder(ctx, settings.Pair, protectSide, qty, sig.TakeProfit, newClientOrderID()); err != nil {
			e.logger.Error(ctx, err, "failed to place take-profit order", map[string]interface{}{
				"user_id": sub.UserID, "take_profit": sig.TakeProfit,
			})
		}
	}
	return 1, nil
}

func newClientOrderID() string {
	return "cte-" + uuid.NewString()
}

// SortedUserIDs returns the error map's keys in a stable order, used by
// callers that render results.
func SortedUserIDs(errs map[string]string) []string {
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
