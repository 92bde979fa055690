package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"updown/model"
	"updown/utils/log"
	"updown/utils/resty"
)

const (
	BinanceBaseREST = "https://api.binance.com"

	klinesPath      = "/api/v3/klines"
	tickerPricePath = "/api/v3/ticker/price"

	DefaultSeriesTTL = 15 * time.Second
	DefaultPriceTTL  = 2 * time.Second
)

// Binance : 공개 시세 API 게이트웨이.
// 실패는 호출자에게 올리지 않고 로그만 남긴 뒤 오래된 캐시 또는 빈 값으로 응답한다.
type Binance struct {
	baseURL string
	resty   resty.RestyClient

	seriesTTL time.Duration
	priceTTL  time.Duration
	clock     func() time.Time

	series *Cache[model.PriceSeries]
	prices *Cache[float64]
}

type BinanceOption func(*Binance)

func WithSeriesTTL(ttl time.Duration) BinanceOption {
	return func(b *Binance) {
		b.seriesTTL = ttl
	}
}

func WithPriceTTL(ttl time.Duration) BinanceOption {
	return func(b *Binance) {
		b.priceTTL = ttl
	}
}

func WithClock(clock func() time.Time) BinanceOption {
	return func(b *Binance) {
		b.clock = clock
	}
}

func NewBinance(baseURL string, client resty.RestyClient, opts ...BinanceOption) *Binance {
	if baseURL == "" {
		baseURL = BinanceBaseREST
	}
	b := &Binance{
		baseURL:   baseURL,
		resty:     client,
		seriesTTL: DefaultSeriesTTL,
		priceTTL:  DefaultPriceTTL,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.series = NewCache[model.PriceSeries](b.seriesTTL, b.clock)
	b.prices = NewCache[float64](b.priceTTL, b.clock)
	log.Infof("[SETUP] Using Binance market data at %s (series ttl=%s, price ttl=%s)", b.baseURL, b.seriesTTL, b.priceTTL)
	return b
}

// -----------------------------------------------------------------------------
// 캔들
// -----------------------------------------------------------------------------

func seriesCacheKey(symbol, interval string, limit int, endTime time.Time) string {
	end := "latest"
	if !endTime.IsZero() {
		end = strconv.FormatInt(endTime.UnixMilli(), 10)
	}
	return fmt.Sprintf("%s-%s-%d-%s", symbol, interval, limit, end)
}

// FetchSeries : endTime 이 zero 면 최신 구간, 아니면 endTime 이전 페이지
func (b *Binance) FetchSeries(ctx context.Context, symbol, interval string, limit int, endTime time.Time) model.PriceSeries {
	key := seriesCacheKey(symbol, interval, limit, endTime)
	if cached, ok := b.series.Fresh(key); ok {
		log.Debugf("[BINANCE] kline cache hit %s", key)
		return cached.Clone()
	}

	candles, err := b.requestKlines(ctx, symbol, interval, limit, endTime)
	if err != nil {
		log.Errorf("[BINANCE] failed to fetch klines %s: %v", key, err)
		if stale, ok := b.series.Stale(key); ok {
			log.Warnf("[BINANCE] serving stale klines for %s", key)
			return stale.Clone()
		}
		return model.PriceSeries{}
	}

	b.series.Put(key, candles)
	return candles.Clone()
}

func (b *Binance) requestKlines(ctx context.Context, symbol, interval string, limit int, endTime time.Time) (model.PriceSeries, error) {
	params := []resty.QueryParam{
		{Key: "symbol", Value: symbol},
		{Key: "interval", Value: interval},
		{Key: "limit", Value: limit},
	}
	if !endTime.IsZero() {
		params = append(params, resty.QueryParam{Key: "endTime", Value: endTime.UnixMilli()})
	}

	body, err := b.requestGET(ctx, klinesPath, params...)
	if err != nil {
		return nil, err
	}
	var rows []model.KlineResponse
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("kline parse: %w", err)
	}

	series := make(model.PriceSeries, 0, len(rows))
	for _, row := range rows {
		candle, err := convertKlineToCandle(row)
		if err != nil {
			log.Warnf("[BINANCE] skip kline row for %s: %v", symbol, err)
			continue
		}
		if n := len(series); n > 0 && !candle.Time.After(series[n-1].Time) {
			continue
		}
		series = append(series, candle)
	}
	return series, nil
}

func convertKlineToCandle(row model.KlineResponse) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row too short: %d", len(row))
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return model.Candle{}, fmt.Errorf("invalid open time: %v", row[0])
	}
	values := make([]float64, 5)
	for i := range values {
		raw, ok := row[i+1].(string)
		if !ok {
			return model.Candle{}, fmt.Errorf("invalid numeric field %d: %v", i+1, row[i+1])
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("invalid numeric field %d: %w", i+1, err)
		}
		values[i] = v
	}
	return model.Candle{
		Time:   time.UnixMilli(int64(openTime)),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// -----------------------------------------------------------------------------
// 현재가
// -----------------------------------------------------------------------------

// FetchPrice : 가격이 없으면 false. 0 가격과 "가격 없음"을 구분하기 위한 bool.
// 조회가 실패해도 캐시에 값이 있으면 Stale 로 표시해서 돌려준다. At 은 그 값을 실제로 받아온 시각
func (b *Binance) FetchPrice(ctx context.Context, symbol string) (model.PriceQuote, bool) {
	if cached, storedAt, ok := b.prices.Entry(symbol); ok && !b.prices.Expired(storedAt) {
		return model.PriceQuote{Value: cached, At: storedAt}, true
	}

	price, err := b.requestPrice(ctx, symbol)
	if err != nil {
		log.Errorf("[BINANCE] failed to fetch price %s: %v", symbol, err)
		if stale, storedAt, ok := b.prices.Entry(symbol); ok {
			log.Warnf("[BINANCE] serving stale price for %s (fetched %s)", symbol, storedAt.Format(time.RFC3339))
			return model.PriceQuote{Value: stale, At: storedAt, Stale: true}, true
		}
		return model.PriceQuote{}, false
	}

	b.prices.Put(symbol, price)
	return model.PriceQuote{Value: price, At: b.clock()}, true
}

func (b *Binance) requestPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := b.requestGET(ctx, tickerPricePath, resty.QueryParam{Key: "symbol", Value: symbol})
	if err != nil {
		return 0, err
	}
	var res model.TickerPriceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("ticker parse: %w", err)
	}
	price, err := strconv.ParseFloat(res.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker price %q: %w", res.Price, err)
	}
	return price, nil
}

// FetchPrices : 캐시가 만료되었거나 없는 심볼이 하나라도 있을 때만 전체 ticker 를 조회한다.
// 끝내 가격을 알 수 없는 심볼은 결과 map 에서 빠진다.
func (b *Binance) FetchPrices(ctx context.Context, symbols []string) map[string]float64 {
	symbols = lo.Uniq(symbols)
	result := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return result
	}

	toFetch := lo.Filter(symbols, func(symbol string, _ int) bool {
		_, fresh := b.prices.Fresh(symbol)
		return !fresh
	})

	if len(toFetch) > 0 {
		log.Debugf("[BINANCE] fetching prices for %v", toFetch)
		fetched, err := b.requestAllPrices(ctx)
		if err != nil {
			log.Errorf("[BINANCE] failed to fetch prices %v: %v", toFetch, err)
		} else {
			for _, symbol := range symbols {
				if price, ok := fetched[symbol]; ok {
					b.prices.Put(symbol, price)
					result[symbol] = price
				}
			}
		}
	}

	for _, symbol := range symbols {
		if _, ok := result[symbol]; ok {
			continue
		}
		if cached, ok := b.prices.Stale(symbol); ok {
			result[symbol] = cached
		}
	}
	return result
}

func (b *Binance) requestAllPrices(ctx context.Context) (map[string]float64, error) {
	body, err := b.requestGET(ctx, tickerPricePath)
	if err != nil {
		return nil, err
	}
	var res []model.TickerPriceResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("ticker list parse: %w", err)
	}
	prices := make(map[string]float64, len(res))
	for _, t := range res {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			log.Warnf("[BINANCE] skip ticker %s: %v", t.Symbol, err)
			continue
		}
		prices[t.Symbol] = price
	}
	return prices, nil
}

func (b *Binance) ClearCache() {
	b.series.Clear()
	b.prices.Clear()
	log.Info("[BINANCE] cache cleared")
}

// -----------------------------------------------------------------------------
// 내부 헬퍼
// -----------------------------------------------------------------------------

func (b *Binance) requestGET(ctx context.Context, path string, params ...resty.QueryParam) ([]byte, error) {
	resp, err := b.resty.
		MakeRequest(ctx, nil, nil).
		Get(b.baseURL+path, params...)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode(), path, resp.String())
	}
	return resp.Body(), nil
}

// MergeLivePrice : 마지막 캔들의 종가를 price 로 바꾸고 고가/저가를 넓힌 복사본.
// 입력 series 는 건드리지 않는다.
func MergeLivePrice(series model.PriceSeries, price float64) model.PriceSeries {
	if len(series) == 0 {
		return series
	}
	updated := series.Clone()
	last := updated[len(updated)-1]
	last.Close = price
	if price > last.High {
		last.High = price
	}
	if price < last.Low {
		last.Low = price
	}
	updated[len(updated)-1] = last
	return updated
}
