package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"updown/exchange"
	"updown/interfaces"
	"updown/model"
	"updown/simulator"
	"updown/utils/log"
	"updown/utils/tools"
)

var (
	ErrNoPrice       = errors.New("no price available")
	ErrTradePending  = errors.New("a trade is already pending")
	ErrInvalidSymbol = errors.New("invalid symbol")

	ErrInsufficientBalance = simulator.ErrInsufficientBalance
	ErrInvalidAmount       = simulator.ErrInvalidAmount
	ErrInvalidDuration     = simulator.ErrInvalidDuration
	ErrInvalidDirection    = simulator.ErrInvalidDirection
)

type SessionConfig struct {
	TickInterval    time.Duration
	RefreshInterval time.Duration
	// RefreshMinGap : 강제 refresh 직후 정기 refresh 가 겹치지 않도록 하는 최소 간격
	RefreshMinGap   time.Duration
	MaxTickFailures int
	SeriesLimit     int

	TradeAmount   float64
	TradeDuration time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TickInterval:    3 * time.Second,
		RefreshInterval: 30 * time.Second,
		RefreshMinGap:   25 * time.Second,
		MaxTickFailures: 3,
		SeriesLimit:     100,
		TradeAmount:     1000,
		TradeDuration:   5 * time.Minute,
	}
}

// Session : 하나의 계좌에 대한 polling + 정산 orchestrator.
// symbol/interval 이 바뀔 때마다 generation 이 올라가고, 이전 generation 으로 시작된 fetch 결과는 버려진다.
type Session struct {
	market  interfaces.MarketData
	engine  *simulator.Engine
	account *simulator.Account
	trades  *TradeFeedSubscription
	cfg     SessionConfig

	ctx    context.Context
	cancel context.CancelFunc

	trackMu sync.Mutex // Track / Stop 직렬화
	runMu   sync.Mutex // tick / refresh 콜백 직렬화

	mu               sync.RWMutex
	symbol           string
	interval         string
	providerInterval string
	generation       uint64
	series           model.PriceSeries
	price            float64
	hasPrice         bool
	priceAt          time.Time // price 를 실제로 관측한 시각. 정산은 만기 이후 관측값으로만
	pending          *model.Trade
	tickFailures     int
	lastFullRefresh  time.Time
	loading          bool
	loadingHistory   bool
	tradeAmount      float64
	tradeDuration    time.Duration

	tickTask    *Task
	refreshTask *Task
}

type SessionOption func(*Session)

// WithTradeFeed : 정산된 trade 를 퍼블리시할 feed
func WithTradeFeed(trades *TradeFeedSubscription) SessionOption {
	return func(s *Session) {
		s.trades = trades
	}
}

func NewSession(market interfaces.MarketData, engine *simulator.Engine, account *simulator.Account,
	cfg SessionConfig, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		market:        market,
		engine:        engine,
		account:       account,
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
		tradeAmount:   cfg.TradeAmount,
		tradeDuration: cfg.TradeDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------
// 추적 대상 변경 / 종료
// -----------------------------------------------------------------------------

// Track : 기존 타이머를 모두 취소하고 즉시 한 번 full refresh 한 뒤 tick/refresh 타이머를 새로 건다
func (s *Session) Track(ctx context.Context, symbol, interval string) error {
	if symbol == "" {
		return ErrInvalidSymbol
	}
	providerInterval, err := tools.MapInterval(interval)
	if err != nil {
		return err
	}

	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	s.mu.Lock()
	tick, refresh := s.tickTask, s.refreshTask
	s.tickTask, s.refreshTask = nil, nil
	s.generation++
	s.symbol = symbol
	s.interval = interval
	s.providerInterval = providerInterval
	s.series = nil
	s.price, s.hasPrice, s.priceAt = 0, false, time.Time{}
	s.tickFailures = 0
	s.lastFullRefresh = time.Time{}
	gen := s.generation
	s.mu.Unlock()

	tick.Stop()
	refresh.Stop()

	log.Infof("[SESSION] tracking %s %s (provider=%s, generation=%d)", symbol, interval, providerInterval, gen)
	s.Refresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	s.tickTask = StartTask(s.ctx, s.cfg.TickInterval, s.Tick)
	s.refreshTask = StartTask(s.ctx, s.cfg.RefreshInterval, s.ScheduledRefresh)
	return nil
}

func (s *Session) Stop() {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	s.mu.Lock()
	tick, refresh := s.tickTask, s.refreshTask
	s.tickTask, s.refreshTask = nil, nil
	s.mu.Unlock()

	s.cancel()
	tick.Stop()
	refresh.Stop()
	log.Info("[SESSION] stopped")
}

// -----------------------------------------------------------------------------
// 타이머 콜백
// -----------------------------------------------------------------------------

// Tick : 현재가만 갱신. 가격이 없거나 오래된 캐시 값이면 실패로 센다.
// 연속 실패가 MaxTickFailures 에 도달하면 full refresh 로 대체한다
func (s *Session) Tick(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	gen, symbol, _ := s.target()
	if symbol == "" {
		return
	}
	quote, ok := s.market.FetchPrice(ctx, symbol)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("[SESSION] discard tick for %s (generation %d)", symbol, gen)
		return
	}
	if ok {
		s.price, s.hasPrice, s.priceAt = quote.Value, true, quote.At
	}
	if !ok || quote.Stale {
		s.tickFailures++
		failures := s.tickFailures
		s.mu.Unlock()

		log.Warnf("[SESSION] no fresh price for %s (%d consecutive failures)", symbol, failures)
		if failures >= s.cfg.MaxTickFailures {
			log.Warnf("[SESSION] too many consecutive failures, forcing full refresh")
			s.refresh(ctx)
		}
		return
	}
	s.series = exchange.MergeLivePrice(s.series, quote.Value)
	s.tickFailures = 0
	s.mu.Unlock()

	s.settleIfExpired(ctx)
}

// ScheduledRefresh : 마지막 full refresh 후 RefreshMinGap 이 지나지 않았으면 건너뛴다
func (s *Session) ScheduledRefresh(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.RLock()
	last := s.lastFullRefresh
	s.mu.RUnlock()

	if since := s.engine.Now().Sub(last); since < s.cfg.RefreshMinGap {
		log.Debugf("[SESSION] skip scheduled refresh, last full refresh %s ago", since)
		return
	}
	s.refresh(ctx)
}

// Refresh : 캔들과 현재가를 다시 받아 상태를 통째로 교체
func (s *Session) Refresh(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) {
	gen, symbol, providerInterval := s.target()
	if symbol == "" {
		return
	}

	s.mu.Lock()
	if gen == s.generation {
		s.loading = true
	}
	s.mu.Unlock()

	series := s.market.FetchSeries(ctx, symbol, providerInterval, s.cfg.SeriesLimit, time.Time{})
	quote, ok := s.market.FetchPrice(ctx, symbol)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		log.Debugf("[SESSION] discard refresh for %s (generation %d)", symbol, gen)
		return
	}
	s.loading = false
	s.lastFullRefresh = s.engine.Now()
	// 성공 여부와 관계없이 시도마다 초기화
	s.tickFailures = 0
	// 빈 응답으로 차트를 지우지 않는다
	if len(series) > 0 {
		s.series = series
	}
	switch {
	case ok:
		s.price, s.hasPrice, s.priceAt = quote.Value, true, quote.At
	case len(series) > 0:
		// 종가는 관측 시각을 알 수 없어 표시용으로만 쓴다
		last, _ := series.Last()
		s.price, s.hasPrice, s.priceAt = last.Close, true, time.Time{}
	}
	candles := len(s.series)
	s.mu.Unlock()

	log.Debugf("[SESSION] refreshed %s: %d candles, price ok=%v stale=%v", symbol, candles, ok, quote.Stale)
	s.settleIfExpired(ctx)
}

// settleIfExpired : 만기가 지난 pending trade 를 만기 이후에 관측한 가격으로 정산.
// 그런 가격이 아직 없으면 pending 으로 남는다.
func (s *Session) settleIfExpired(ctx context.Context) {
	s.mu.RLock()
	if s.pending == nil || !s.pending.Expired(s.engine.Now()) {
		s.mu.RUnlock()
		return
	}
	trade := *s.pending
	price, observedAt, ok := s.price, s.priceAt, s.hasPrice
	sameSymbol := trade.Symbol == s.symbol
	s.mu.RUnlock()

	// 진입 후 다른 종목으로 바꿨다면 그 trade 의 종목 가격으로 정산
	if !sameSymbol {
		quote, found := s.market.FetchPrice(ctx, trade.Symbol)
		price, observedAt, ok = quote.Value, quote.At, found
	}
	if !ok || observedAt.Before(trade.ExpiryTime) {
		log.Warnf("[SESSION] trade %s expired but no %s price observed since expiry yet", trade.ID, trade.Symbol)
		return
	}

	settled := simulator.Settle(trade, price)

	s.mu.Lock()
	if s.pending == nil || s.pending.ID != trade.ID {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	if !s.account.Record(settled) {
		log.Warnf("[SESSION] trade %s already recorded", settled.ID)
		return
	}
	log.Infof("[SESSION] settled %s %s %s entry=%.8f exit=%.8f result=%s profit=%.2f",
		settled.ID, settled.Symbol, settled.Direction, settled.EntryPrice, settled.ExitPrice, settled.Result, settled.Profit)

	if s.trades != nil {
		s.trades.Publish(settled)
	}
}

// -----------------------------------------------------------------------------
// 사용자 동작
// -----------------------------------------------------------------------------

// PlaceTrade : 거절 사유는 에러로 돌려준다 (ErrNoPrice, ErrTradePending, ErrInsufficientBalance, ...)
func (s *Session) PlaceTrade(direction model.Direction) (model.Trade, error) {
	if !direction.Valid() {
		return model.Trade{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPrice {
		return model.Trade{}, ErrNoPrice
	}
	if s.pending != nil {
		return model.Trade{}, fmt.Errorf("%w: %s", ErrTradePending, s.pending.ID)
	}

	trade, err := s.engine.Create(s.symbol, direction, s.tradeAmount, s.price, s.tradeDuration)
	if err != nil {
		return model.Trade{}, err
	}
	if err := s.account.Reserve(trade.Amount); err != nil {
		return model.Trade{}, err
	}
	s.pending = &trade

	log.Infof("[SESSION] placed %s %s %s amount=%.2f entry=%.8f expiry=%s",
		trade.ID, trade.Symbol, trade.Direction, trade.Amount, trade.EntryPrice, trade.ExpiryTime.Format(time.RFC3339))
	return trade, nil
}

func (s *Session) SetTradeAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeAmount = amount
	return nil
}

func (s *Session) SetTradeDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeDuration = duration
	return nil
}

// LoadMoreHistory : 가장 오래된 캔들 이전 페이지를 앞에 붙인다.
// 새로 붙은 캔들이 없거나 이미 로딩 중이면 false
func (s *Session) LoadMoreHistory(ctx context.Context) bool {
	s.mu.Lock()
	if s.symbol == "" || s.loading || s.loadingHistory {
		s.mu.Unlock()
		return false
	}
	s.loadingHistory = true
	gen, symbol, providerInterval := s.generation, s.symbol, s.providerInterval
	end := s.engine.Now()
	if first, ok := s.series.First(); ok {
		end = first.Time
	}
	s.mu.Unlock()

	older := s.market.FetchSeries(ctx, symbol, providerInterval, s.cfg.SeriesLimit, end)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingHistory = false

	if gen != s.generation {
		log.Debugf("[SESSION] discard history page for %s (generation %d)", symbol, gen)
		return false
	}
	merged := s.series.PrependOlder(older)
	added := len(merged) - len(s.series)
	if added == 0 {
		return false
	}
	s.series = merged
	log.Infof("[SESSION] loaded %d older candles for %s", added, symbol)
	return true
}

// -----------------------------------------------------------------------------
// 조회
// -----------------------------------------------------------------------------

type State struct {
	Symbol         string                `json:"symbol"`
	Interval       string                `json:"interval"`
	Series         model.PriceSeries     `json:"-"`
	Price          float64               `json:"price"`
	HasPrice       bool                  `json:"has_price"`
	PriceAt        time.Time             `json:"price_at"`
	Balance        float64               `json:"balance"`
	Pending        *model.Trade          `json:"pending,omitempty"`
	Projection     *simulator.Projection `json:"projection,omitempty"`
	TradeAmount    float64               `json:"trade_amount"`
	TradeDuration  time.Duration         `json:"trade_duration"`
	ExpectedReturn simulator.Quote       `json:"expected_return"`
	Loading        bool                  `json:"loading"`
	TradeCount     int                   `json:"trade_count"`
	Generation     uint64                `json:"generation"`
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{
		Symbol:         s.symbol,
		Interval:       s.interval,
		Series:         s.series.Clone(),
		Price:          s.price,
		HasPrice:       s.hasPrice,
		PriceAt:        s.priceAt,
		Balance:        s.account.Balance(),
		TradeAmount:    s.tradeAmount,
		TradeDuration:  s.tradeDuration,
		ExpectedReturn: simulator.ExpectedReturn(s.tradeAmount),
		Loading:        s.loading,
		TradeCount:     len(s.account.History()),
		Generation:     s.generation,
	}
	if s.pending != nil {
		pending := *s.pending
		state.Pending = &pending
		if s.hasPrice && pending.Symbol == s.symbol {
			projection := s.engine.Project(pending, s.price)
			state.Projection = &projection
		}
	}
	return state
}

func (s *Session) Account() *simulator.Account {
	return s.account
}

func (s *Session) target() (uint64, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, s.symbol, s.providerInterval
}
