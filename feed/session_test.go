package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"updown/mocks"
	"updown/model"
	"updown/simulator"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var sessionStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func candles(start time.Time, step time.Duration, closes ...float64) model.PriceSeries {
	series := make(model.PriceSeries, 0, len(closes))
	for i, c := range closes {
		series = append(series, model.Candle{
			Time:  start.Add(time.Duration(i) * step),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		})
	}
	return series
}

type sessionFixture struct {
	session *Session
	market  *mocks.MockMarketData
	account *simulator.Account
	clock   *testClock
	settled chan model.Trade
}

func newSessionFixture(t *testing.T, series model.PriceSeries, price float64) *sessionFixture {
	t.Helper()

	clock := &testClock{now: sessionStart}
	market := mocks.NewMockMarketData(series, price)
	market.Clock = clock.Now
	engine := simulator.NewEngine(simulator.WithEngineClock(clock.Now))
	account := simulator.NewAccount(10000)

	trades := NewTradeFeed(8)
	settled := make(chan model.Trade, 8)
	trades.Subscribe(func(trade model.Trade) { settled <- trade })
	trades.Start()

	cfg := DefaultSessionConfig()
	// 타이머는 테스트에서 직접 호출
	cfg.TickInterval = time.Hour
	cfg.RefreshInterval = time.Hour

	s := NewSession(market, engine, account, cfg, WithTradeFeed(trades))
	t.Cleanup(func() {
		s.Stop()
		trades.Stop()
	})

	return &sessionFixture{session: s, market: market, account: account, clock: clock, settled: settled}
}

func TestTrack_RefreshesImmediately(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101, 102), 103)

	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "ALL"))

	calls, priceCalls := f.market.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "BTCUSDT", calls[0].Symbol)
	require.Equal(t, "1w", calls[0].Interval)
	require.Equal(t, 100, calls[0].Limit)
	require.True(t, calls[0].EndTime.IsZero())
	require.Equal(t, 1, priceCalls)

	state := f.session.Snapshot()
	require.Equal(t, "ALL", state.Interval)
	require.Len(t, state.Series, 3)
	require.True(t, state.HasPrice)
	require.Equal(t, 103.0, state.Price)
	require.False(t, state.Loading)
}

func TestTrack_RejectsUnknownInterval(t *testing.T) {
	f := newSessionFixture(t, nil, 100)

	require.Error(t, f.session.Track(context.Background(), "BTCUSDT", "2h"))
	require.ErrorIs(t, f.session.Track(context.Background(), "", "1h"), ErrInvalidSymbol)

	calls, _ := f.market.Calls()
	require.Empty(t, calls)
}

func TestRefresh_FallsBackToLastClose(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 99), 0)
	f.market.SetPrice(0, false)

	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	state := f.session.Snapshot()
	require.True(t, state.HasPrice)
	require.Equal(t, 99.0, state.Price)
}

func TestRefresh_KeepsSeriesWhenGatewayReturnsEmpty(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101), 101)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	f.market.SetSeries(nil)
	f.session.Refresh(context.Background())

	require.Len(t, f.session.Snapshot().Series, 2)
}

func TestTick_MergesLivePrice(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101), 101)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	f.market.SetPrice(110, true)
	f.session.Tick(context.Background())

	state := f.session.Snapshot()
	require.Equal(t, 110.0, state.Price)
	last, ok := state.Series.Last()
	require.True(t, ok)
	require.Equal(t, 110.0, last.Close)
	require.Equal(t, 110.0, last.High)
	require.Len(t, state.Series, 2)
}

func TestTick_ForcesRefreshAfterConsecutiveFailures(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100), 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	f.market.SetPrice(0, false)
	f.session.Tick(context.Background())
	f.session.Tick(context.Background())

	calls, _ := f.market.Calls()
	require.Len(t, calls, 1)

	f.session.Tick(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 2)

	// refresh 의 가격 조회가 실패해도 카운터는 초기화, 다시 3번 실패해야 refresh
	f.session.Tick(context.Background())
	f.session.Tick(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 2)

	f.session.Tick(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 3)

	// 가격이 돌아오면 카운터 초기화
	f.market.SetPrice(100, true)
	f.session.Tick(context.Background())
	f.market.SetPrice(0, false)
	f.session.Tick(context.Background())
	f.session.Tick(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 3)
}

func TestTick_StalePriceCountsAsFailure(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101), 101)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	// 게이트웨이가 조회에 실패하고 캐시에 남은 값으로 응답
	f.market.SetStalePrice(105, sessionStart)
	for i := 0; i < 2; i++ {
		f.clock.Advance(3 * time.Second)
		f.session.Tick(context.Background())
	}

	state := f.session.Snapshot()
	require.True(t, state.HasPrice)
	require.Equal(t, 105.0, state.Price)
	require.Equal(t, sessionStart, state.PriceAt)
	last, ok := state.Series.Last()
	require.True(t, ok)
	require.Equal(t, 101.0, last.Close, "stale price is not merged into the series")

	calls, _ := f.market.Calls()
	require.Len(t, calls, 1)

	f.clock.Advance(3 * time.Second)
	f.session.Tick(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 2)
}

func TestScheduledRefresh_RespectsMinGap(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100), 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	f.clock.Advance(10 * time.Second)
	f.session.ScheduledRefresh(context.Background())
	calls, _ := f.market.Calls()
	require.Len(t, calls, 1)

	f.clock.Advance(20 * time.Second)
	f.session.ScheduledRefresh(context.Background())
	calls, _ = f.market.Calls()
	require.Len(t, calls, 2)
}

func TestPlaceTrade_RejectsWithoutPrice(t *testing.T) {
	f := newSessionFixture(t, nil, 0)
	f.market.SetPrice(0, false)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.ErrorIs(t, err, ErrNoPrice)
	require.Equal(t, 10000.0, f.account.Balance())
}

func TestPlaceTrade_RejectsInvalidDirection(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	_, err := f.session.PlaceTrade(model.Direction("sideways"))
	require.ErrorIs(t, err, ErrInvalidDirection)
}

func TestPlaceTrade_SinglePendingTrade(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	trade, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)
	require.True(t, trade.Pending())
	require.Equal(t, "BTCUSDT", trade.Symbol)
	require.Equal(t, 100.0, trade.EntryPrice)
	require.Equal(t, 1000.0, trade.Amount)
	require.Equal(t, sessionStart.Add(5*time.Minute), trade.ExpiryTime)
	require.Equal(t, 9000.0, f.account.Balance())

	_, err = f.session.PlaceTrade(model.DirectionDown)
	require.ErrorIs(t, err, ErrTradePending)
	require.Equal(t, 9000.0, f.account.Balance())
}

func TestPlaceTrade_InsufficientBalance(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	require.NoError(t, f.session.SetTradeAmount(20000))

	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Nil(t, f.session.Snapshot().Pending)
	require.Equal(t, 10000.0, f.account.Balance())
}

func TestSettings_RejectNonPositive(t *testing.T) {
	f := newSessionFixture(t, nil, 100)

	require.ErrorIs(t, f.session.SetTradeAmount(0), ErrInvalidAmount)
	require.ErrorIs(t, f.session.SetTradeDuration(-time.Second), ErrInvalidDuration)

	require.NoError(t, f.session.SetTradeAmount(250))
	require.NoError(t, f.session.SetTradeDuration(time.Minute))
	state := f.session.Snapshot()
	require.Equal(t, 250.0, state.TradeAmount)
	require.Equal(t, time.Minute, state.TradeDuration)
	require.Equal(t, "+85%", state.ExpectedReturn.Percentage)
}

func TestSettlement(t *testing.T) {
	tests := []struct {
		name      string
		direction model.Direction
		exit      float64
		result    model.Result
		balance   float64
	}{
		{"up wins", model.DirectionUp, 105, model.ResultWin, 10850},
		{"up loses", model.DirectionUp, 95, model.ResultLoss, 9000},
		{"draw refunds", model.DirectionUp, 100, model.ResultDraw, 10000},
		{"down wins", model.DirectionDown, 95, model.ResultWin, 10850},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, nil, 100)
			require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

			_, err := f.session.PlaceTrade(tt.direction)
			require.NoError(t, err)

			f.clock.Advance(5 * time.Minute)
			f.market.SetPrice(tt.exit, true)
			f.session.Tick(context.Background())

			require.Nil(t, f.session.Snapshot().Pending)
			require.Equal(t, tt.balance, f.account.Balance())

			history := f.account.History()
			require.Len(t, history, 1)
			require.Equal(t, tt.result, history[0].Result)
			require.Equal(t, tt.exit, history[0].ExitPrice)

			select {
			case trade := <-f.settled:
				require.Equal(t, history[0].ID, trade.ID)
			case <-time.After(time.Second):
				t.Fatal("settled trade was not published")
			}
		})
	}
}

func TestSettlement_WaitsForExpiry(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)

	f.clock.Advance(4*time.Minute + 59*time.Second)
	f.market.SetPrice(120, true)
	f.session.Tick(context.Background())

	state := f.session.Snapshot()
	require.NotNil(t, state.Pending)
	require.NotNil(t, state.Projection)
	require.Equal(t, model.ResultWin, state.Projection.Result)
	require.Equal(t, time.Second, state.Projection.Remaining)
	require.Empty(t, f.account.History())
}

func TestSettlement_StaysPendingWithoutPrice(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)

	// 가격을 잃은 상태에서 만기
	f.market.SetPrice(0, false)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "15m"))
	f.clock.Advance(6 * time.Minute)
	f.session.Tick(context.Background())

	require.NotNil(t, f.session.Snapshot().Pending)
	require.Equal(t, 9000.0, f.account.Balance())

	f.market.SetPrice(90, true)
	f.session.Tick(context.Background())

	require.Nil(t, f.session.Snapshot().Pending)
	require.Equal(t, model.ResultLoss, f.account.History()[0].Result)
}

func TestSettlement_IgnoresPriceObservedBeforeExpiry(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)

	// 만기 1분 전에 받은 가격만 캐시에 남아 있는 상태
	f.market.SetStalePrice(120, sessionStart.Add(4*time.Minute))
	f.clock.Advance(5*time.Minute + time.Second)
	f.session.Tick(context.Background())
	f.session.Refresh(context.Background())

	state := f.session.Snapshot()
	require.NotNil(t, state.Pending)
	require.Equal(t, 120.0, state.Price)
	require.Empty(t, f.account.History())

	f.market.SetPrice(90, true)
	f.session.Tick(context.Background())

	history := f.account.History()
	require.Len(t, history, 1)
	require.Equal(t, 90.0, history[0].ExitPrice)
	require.Equal(t, model.ResultLoss, history[0].Result)
}

func TestSettlement_LastCloseFallbackDoesNotSettle(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100), 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)

	f.market.SetPrice(0, false)
	f.market.SetSeries(candles(sessionStart, time.Minute, 100, 130))
	f.clock.Advance(6 * time.Minute)
	f.session.Refresh(context.Background())

	state := f.session.Snapshot()
	require.Equal(t, 130.0, state.Price)
	require.True(t, state.PriceAt.IsZero())
	require.NotNil(t, state.Pending)
	require.Empty(t, f.account.History())
}

func TestSettlement_AfterSymbolSwitch(t *testing.T) {
	f := newSessionFixture(t, nil, 100)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	_, err := f.session.PlaceTrade(model.DirectionUp)
	require.NoError(t, err)

	require.NoError(t, f.session.Track(context.Background(), "ETHUSDT", "5m"))
	state := f.session.Snapshot()
	require.NotNil(t, state.Pending)
	require.Nil(t, state.Projection)

	// ETHUSDT 는 하락, BTCUSDT 는 상승
	f.market.SetPrice(50, true)
	f.market.SetQuote("BTCUSDT", 150)
	f.clock.Advance(5 * time.Minute)
	f.session.Tick(context.Background())

	requests := f.market.PriceRequests()
	require.Equal(t, []string{"ETHUSDT", "BTCUSDT"}, requests[len(requests)-2:])

	history := f.account.History()
	require.Len(t, history, 1)
	require.Equal(t, "BTCUSDT", history[0].Symbol)
	require.Equal(t, 150.0, history[0].ExitPrice)
	require.Equal(t, model.ResultWin, history[0].Result)
	require.Equal(t, 50.0, f.session.Snapshot().Price)
}

func TestLoadMoreHistory_PrependsOlderCandles(t *testing.T) {
	head := sessionStart
	f := newSessionFixture(t, candles(head, time.Minute, 10, 11, 12), 12)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	// endTime 페이지는 경계 캔들을 포함해서 돌아온다
	f.market.SetHistory(candles(head.Add(-2*time.Minute), time.Minute, 8, 9, 10))

	require.True(t, f.session.LoadMoreHistory(context.Background()))

	calls, _ := f.market.Calls()
	require.Equal(t, head, calls[len(calls)-1].EndTime)

	series := f.session.Snapshot().Series
	require.Len(t, series, 5)
	require.Equal(t, []float64{8, 9, 10, 11, 12}, series.Closes().Values())

	// 새로 붙는 캔들이 없으면 false
	f.market.SetHistory(candles(head.Add(-2*time.Minute), time.Minute, 8, 9))
	require.False(t, f.session.LoadMoreHistory(context.Background()))
	require.Len(t, f.session.Snapshot().Series, 5)
}

func TestLoadMoreHistory_DiscardsStaleGeneration(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 10, 11), 11)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	f.market.SetHistory(candles(sessionStart.Add(-10*time.Minute), time.Minute, 1, 2, 3))

	// 과거 페이지 응답이 오기 전에 종목을 바꾼다
	f.market.BeforeSeries = func(call mocks.SeriesCall) {
		if !call.EndTime.IsZero() {
			require.NoError(t, f.session.Track(context.Background(), "ETHUSDT", "5m"))
		}
	}

	require.False(t, f.session.LoadMoreHistory(context.Background()))

	state := f.session.Snapshot()
	require.Equal(t, "ETHUSDT", state.Symbol)
	require.Len(t, state.Series, 2)
}

func TestTrack_BumpsGeneration(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 10), 10)

	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))
	first := f.session.Snapshot().Generation
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "1h"))

	require.Greater(t, f.session.Snapshot().Generation, first)
}

// switchDuringFetch : 진행 중인 fetch 가 끝나기 전에 ETHUSDT 로 전환을 시작하고 generation 이 바뀔 때까지 기다린다
func switchDuringFetch(t *testing.T, f *sessionFixture, tracked chan<- error) {
	t.Helper()

	before := f.session.Snapshot().Generation
	go func() {
		tracked <- f.session.Track(context.Background(), "ETHUSDT", "5m")
	}()
	require.Eventually(t, func() bool {
		return f.session.Snapshot().Generation > before
	}, time.Second, time.Millisecond)
}

func TestTick_DiscardsPriceAfterSymbolSwitch(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101), 101)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	// 이전 종목 응답만 살아 있고 새 종목은 캔들도 가격도 없다
	f.market.SetSeries(nil)
	f.market.SetPrice(0, false)
	f.market.SetQuote("BTCUSDT", 150)

	tracked := make(chan error, 1)
	var once sync.Once
	f.market.BeforePrice = func(symbol string) {
		if symbol == "BTCUSDT" {
			once.Do(func() { switchDuringFetch(t, f, tracked) })
		}
	}

	f.session.Tick(context.Background())
	require.NoError(t, <-tracked)

	state := f.session.Snapshot()
	require.Equal(t, "ETHUSDT", state.Symbol)
	require.False(t, state.HasPrice)
	require.Empty(t, state.Series)
}

func TestRefresh_DiscardsResultAfterSymbolSwitch(t *testing.T) {
	f := newSessionFixture(t, candles(sessionStart, time.Minute, 100, 101), 101)
	require.NoError(t, f.session.Track(context.Background(), "BTCUSDT", "5m"))

	f.market.SetPrice(0, false)
	f.market.SetQuote("BTCUSDT", 150)

	tracked := make(chan error, 1)
	var once sync.Once
	f.market.BeforeSeries = func(call mocks.SeriesCall) {
		switch call.Symbol {
		case "BTCUSDT":
			once.Do(func() { switchDuringFetch(t, f, tracked) })
		case "ETHUSDT":
			f.market.SetSeries(nil)
		}
	}

	f.session.Refresh(context.Background())
	require.NoError(t, <-tracked)

	state := f.session.Snapshot()
	require.Equal(t, "ETHUSDT", state.Symbol)
	require.False(t, state.HasPrice)
	require.Empty(t, state.Series)
}
