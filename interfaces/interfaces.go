package interfaces

import (
	"context"
	"time"

	"updown/model"
)

// MarketData : 시세 게이트웨이. 실패를 에러로 올리지 않고 캐시/빈 값으로 응답한다.
type MarketData interface {
	// FetchSeries : endTime 이 zero 면 최신 구간
	FetchSeries(ctx context.Context, symbol, interval string, limit int, endTime time.Time) model.PriceSeries
	// FetchPrice : 가격이 없으면 false. 오래된 캐시 값이면 quote.Stale
	FetchPrice(ctx context.Context, symbol string) (model.PriceQuote, bool)
	FetchPrices(ctx context.Context, symbols []string) map[string]float64
}

type Notifier interface {
	SendNotification(message string) error
	TradeNotifier(trade model.Trade)
}
