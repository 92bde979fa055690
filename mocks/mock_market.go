package mocks

import (
	"context"
	"sync"
	"time"

	"updown/model"
)

// SeriesCall : FetchSeries 호출 기록
type SeriesCall struct {
	Symbol   string
	Interval string
	Limit    int
	EndTime  time.Time
}

// MockMarketData 는 interfaces.MarketData 를 흉내내는 구조체입니다.
// - 테스트 중에 Series / Price / History 를 바꿔 끼울 수 있음
// - 호출 횟수와 마지막 인자를 기록
type MockMarketData struct {
	mu sync.Mutex

	Series   model.PriceSeries
	Price    float64
	HasPrice bool
	// PriceStale : true 면 Price 를 PriceAt 에 받아둔 오래된 캐시 값처럼 돌려준다
	PriceStale bool
	PriceAt    time.Time
	Prices     map[string]float64

	// Quotes : 심볼별 FetchPrice 응답. 없는 심볼은 Price / HasPrice 를 따른다
	Quotes map[string]float64

	// History : endTime 페이지 요청에 돌려줄 과거 캔들 (없으면 빈 series)
	History model.PriceSeries

	// Clock : quote.At 기준 시각 (nil 이면 time.Now)
	Clock func() time.Time

	// BeforeSeries : FetchSeries 가 응답하기 직전에 호출됨 (경합 재현용)
	BeforeSeries func(call SeriesCall)
	// BeforePrice : FetchPrice 가 응답하기 직전에 호출됨
	BeforePrice func(symbol string)

	SeriesCalls  []SeriesCall
	PriceSymbols []string
}

func NewMockMarketData(series model.PriceSeries, price float64) *MockMarketData {
	return &MockMarketData{
		Series:   series,
		Price:    price,
		HasPrice: true,
		Prices:   map[string]float64{},
		Quotes:   map[string]float64{},
	}
}

func (m *MockMarketData) FetchSeries(ctx context.Context, symbol, interval string, limit int, endTime time.Time) model.PriceSeries {
	call := SeriesCall{Symbol: symbol, Interval: interval, Limit: limit, EndTime: endTime}

	m.mu.Lock()
	m.SeriesCalls = append(m.SeriesCalls, call)
	hook := m.BeforeSeries
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !endTime.IsZero() {
		return m.History.Clone()
	}
	if m.Series == nil {
		return model.PriceSeries{}
	}
	return m.Series.Clone()
}

func (m *MockMarketData) FetchPrice(ctx context.Context, symbol string) (model.PriceQuote, bool) {
	m.mu.Lock()
	m.PriceSymbols = append(m.PriceSymbols, symbol)
	hook := m.BeforePrice
	m.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if m.Clock != nil {
		now = m.Clock()
	}
	if p, ok := m.Quotes[symbol]; ok {
		return model.PriceQuote{Value: p, At: now}, true
	}
	if !m.HasPrice {
		return model.PriceQuote{}, false
	}
	if m.PriceStale {
		return model.PriceQuote{Value: m.Price, At: m.PriceAt, Stale: true}, true
	}
	return model.PriceQuote{Value: m.Price, At: now}, true
}

func (m *MockMarketData) FetchPrices(ctx context.Context, symbols []string) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := m.Prices[s]; ok {
			out[s] = p
		}
	}
	return out
}

func (m *MockMarketData) SetPrice(price float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Price = price
	m.HasPrice = ok
	m.PriceStale = false
}

// SetStalePrice : 조회 실패 후 at 에 받아둔 캐시 값으로 응답하는 상황
func (m *MockMarketData) SetStalePrice(price float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Price = price
	m.HasPrice = true
	m.PriceStale = true
	m.PriceAt = at
}

func (m *MockMarketData) SetQuote(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[symbol] = price
}

func (m *MockMarketData) SetSeries(series model.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Series = series
}

func (m *MockMarketData) SetHistory(history model.PriceSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.History = history
}

func (m *MockMarketData) Calls() ([]SeriesCall, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]SeriesCall, len(m.SeriesCalls))
	copy(calls, m.SeriesCalls)
	return calls, len(m.PriceSymbols)
}

// PriceRequests : FetchPrice 로 요청된 심볼 순서
func (m *MockMarketData) PriceRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.PriceSymbols))
	copy(out, m.PriceSymbols)
	return out
}
