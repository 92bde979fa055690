package model

import "time"

// Candle : 한 구간(interval)의 OHLCV
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// KlineResponse : /api/v3/klines 의 한 줄.
// [openTime, open, high, low, close, volume, closeTime, ...] 형태라 원소 타입이 섞여 있다.
type KlineResponse []any

// TickerPriceResponse : /api/v3/ticker/price 응답
type TickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// PriceQuote : 현재가와 그 가격을 실제로 받아온 시각.
// Stale 이면 최신 조회가 실패해서 캐시에 남아 있던 값으로 응답한 것
type PriceQuote struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
	Stale bool      `json:"stale"`
}
