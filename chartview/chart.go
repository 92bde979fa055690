package chartview

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"updown/indicator"
	"updown/model"
	"updown/utils/tools"
)

// View : 한 번 그릴 때 필요한 상태 스냅샷
type View struct {
	Symbol   string
	Interval string
	Series   model.PriceSeries
	Price    float64
	HasPrice bool
	Pending  *model.Trade
}

// warmup 구간은 echarts 에서 빈 값으로 취급되는 "-" 로 채운다
const emptyValue = "-"

// Render : 봉차트 + overlay 지표 + RSI 를 하나의 페이지로 w 에 쓴다
func Render(w io.Writer, view View) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s %s", view.Symbol, view.Interval)

	xVals := timeAxis(view.Series, view.Interval)
	indicators := indicator.Default(view.Series)

	page.AddCharts(buildCandleChart(view, xVals, indicators))
	for _, ind := range indicators {
		if ind.Overlay {
			continue
		}
		page.AddCharts(buildIndicatorChart(ind, xVals))
	}
	return page.Render(w)
}

func timeAxis(series model.PriceSeries, interval string) []string {
	layout := "01/02 15:04"
	if providerInterval, err := tools.MapInterval(interval); err == nil {
		if step, err := tools.ParseIntervalToDuration(providerInterval); err == nil && step >= 24*time.Hour {
			layout = "2006-01-02"
		}
	}
	out := make([]string, len(series))
	for i, c := range series {
		out[i] = c.Time.Format(layout)
	}
	return out
}

func buildCandleChart(view View, xVals []string, indicators []indicator.ChartIndicator) *charts.Kline {
	kline := charts.NewKLine()

	subtitle := indicator.DetectTrend(view.Series, 10).String()
	if view.HasPrice {
		subtitle = fmt.Sprintf("%s · %.8g", subtitle, view.Price)
	}
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    view.Symbol,
			Subtitle: subtitle,
			Show:     opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "inside",
			Start: 0,
			End:   100,
		}),
	)

	if len(view.Series) == 0 {
		return kline
	}

	// go-echarts Kline은 [open, close, low, high] 순서
	kValues := make([]opts.KlineData, len(view.Series))
	for i, c := range view.Series {
		kValues[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        "#00da3c", // 양봉
			Color0:       "#ec0000", // 음봉
			BorderColor:  "#008F28",
			BorderColor0: "#8A0000",
		}),
	}
	if view.Pending != nil && view.Pending.Symbol == view.Symbol {
		seriesOpts = append(seriesOpts, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
			Name:  fmt.Sprintf("entry %s", view.Pending.Direction),
			YAxis: view.Pending.EntryPrice,
		}))
	}

	kline.SetXAxis(xVals).AddSeries("KLine", kValues, seriesOpts...)

	for _, ind := range indicators {
		if !ind.Overlay {
			continue
		}
		kline.Overlap(buildLines(ind, xVals))
	}
	return kline
}

// buildIndicatorChart : overlay 가 아닌 지표는 별도 차트
func buildIndicatorChart(ind indicator.ChartIndicator, xVals []string) *charts.Line {
	line := buildLines(ind, xVals)
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: ind.GroupName,
			Show:  opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
	)
	return line
}

func buildLines(ind indicator.ChartIndicator, xVals []string) *charts.Line {
	line := charts.NewLine()
	line.SetXAxis(xVals)

	for _, metric := range ind.Metrics {
		data := make([]opts.LineData, len(metric.Values))
		for i, v := range metric.Values {
			if !ind.Drawable(i) {
				data[i] = opts.LineData{Value: emptyValue}
				continue
			}
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(metric.Name, data,
			charts.WithLineStyleOpts(opts.LineStyle{Color: metric.Color}),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}
