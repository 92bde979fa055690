package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"updown/model"
)

type TrendType int

const (
	Bullish TrendType = iota
	Bearish
	Sideways
)

func (t TrendType) String() string {
	switch t {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "sideways"
	}
}

type MetricStyle string

const (
	StyleBar       = "bar"
	StyleScatter   = "scatter"
	StyleLine      = "line"
	StyleHistogram = "histogram"
)

type IndicatorMetric struct {
	Name   string
	Color  string
	Style  MetricStyle // default: line
	Values model.Series[float64]
}

// ChartIndicator : Values 의 앞 Warmup 개는 계산 전 구간이라 그리지 않는다
type ChartIndicator struct {
	Time      []time.Time
	Metrics   []IndicatorMetric
	Overlay   bool
	GroupName string
	Warmup    int
}

// Drawable : warmup 이후의 i 번째 값만 그릴 수 있다
func (c ChartIndicator) Drawable(i int) bool {
	return i >= c.Warmup
}

// talib 은 기간보다 짧은 입력에서 범위를 벗어나므로 미리 거른다
func enough(series model.PriceSeries, period int) bool {
	return period > 0 && len(series) > period
}

func SMA(series model.PriceSeries, period int) (ChartIndicator, bool) {
	if !enough(series, period) {
		return ChartIndicator{}, false
	}
	return ChartIndicator{
		Time: series.Times(),
		Metrics: []IndicatorMetric{{
			Name:   fmt.Sprintf("SMA(%d)", period),
			Color:  "#f0a30a",
			Style:  StyleLine,
			Values: talib.Sma(series.Closes().Values(), period),
		}},
		Overlay:   true,
		GroupName: "MA",
		Warmup:    period - 1,
	}, true
}

func EMA(series model.PriceSeries, period int) (ChartIndicator, bool) {
	if !enough(series, period) {
		return ChartIndicator{}, false
	}
	return ChartIndicator{
		Time: series.Times(),
		Metrics: []IndicatorMetric{{
			Name:   fmt.Sprintf("EMA(%d)", period),
			Color:  "#1ba1e2",
			Style:  StyleLine,
			Values: talib.Ema(series.Closes().Values(), period),
		}},
		Overlay:   true,
		GroupName: "MA",
		Warmup:    period - 1,
	}, true
}

func RSI(series model.PriceSeries, period int) (ChartIndicator, bool) {
	if !enough(series, period) {
		return ChartIndicator{}, false
	}
	return ChartIndicator{
		Time: series.Times(),
		Metrics: []IndicatorMetric{{
			Name:   fmt.Sprintf("RSI(%d)", period),
			Color:  "#a20025",
			Style:  StyleLine,
			Values: talib.Rsi(series.Closes().Values(), period),
		}},
		GroupName: "RSI",
		Warmup:    period,
	}, true
}

func BollingerBands(series model.PriceSeries, period int, deviation float64) (ChartIndicator, bool) {
	if !enough(series, period) {
		return ChartIndicator{}, false
	}
	upper, middle, lower := talib.BBands(series.Closes().Values(), period, deviation, deviation, talib.SMA)
	return ChartIndicator{
		Time: series.Times(),
		Metrics: []IndicatorMetric{
			{Name: "BB Upper", Color: "#6d8764", Style: StyleLine, Values: upper},
			{Name: "BB Middle", Color: "#76608a", Style: StyleLine, Values: middle},
			{Name: "BB Lower", Color: "#6d8764", Style: StyleLine, Values: lower},
		},
		Overlay:   true,
		GroupName: "BB",
		Warmup:    period - 1,
	}, true
}

// Default : 차트에 기본으로 얹는 지표. 데이터가 모자란 지표는 빠진다
func Default(series model.PriceSeries) []ChartIndicator {
	var out []ChartIndicator
	if c, ok := SMA(series, 20); ok {
		out = append(out, c)
	}
	if c, ok := EMA(series, 50); ok {
		out = append(out, c)
	}
	if c, ok := BollingerBands(series, 20, 2); ok {
		out = append(out, c)
	}
	if c, ok := RSI(series, 14); ok {
		out = append(out, c)
	}
	return out
}

// DetectTrend : 첫 종가 대비 마지막 종가 변화율이 threshold(%) 이상이면 Bullish,
// -threshold 이하면 Bearish, 나머지는 Sideways
func DetectTrend(series model.PriceSeries, threshold float64) TrendType {
	first, ok := series.First()
	if !ok {
		return Sideways
	}
	last, _ := series.Last()
	if math.Abs(first.Close) < 1e-8 {
		return Sideways
	}
	returnRate := (last.Close - first.Close) / first.Close * 100.0

	switch {
	case returnRate >= threshold:
		return Bullish
	case returnRate <= -threshold:
		return Bearish
	default:
		return Sideways
	}
}
