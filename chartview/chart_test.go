package chartview

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"updown/model"
)

func series(n int, step time.Duration) model.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(model.PriceSeries, n)
	for i := range out {
		v := 100 + float64(i)
		out[i] = model.Candle{Time: start.Add(time.Duration(i) * step), Open: v, High: v + 1, Low: v - 1, Close: v + 0.5}
	}
	return out
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, View{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Series:   series(60, time.Hour),
		Price:    160,
		HasPrice: true,
		Pending:  &model.Trade{Symbol: "BTCUSDT", Direction: model.DirectionUp, EntryPrice: 150},
	})
	require.NoError(t, err)

	html := buf.String()
	require.Contains(t, html, "BTCUSDT")
	require.Contains(t, html, "SMA(20)")
	require.Contains(t, html, "RSI(14)")
	require.Contains(t, html, "entry up")
}

func TestRender_EmptySeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, View{Symbol: "ETHUSDT", Interval: "5m"}))
	require.Contains(t, buf.String(), "ETHUSDT")
}

func TestTimeAxis(t *testing.T) {
	intraday := timeAxis(series(2, time.Hour), "1h")
	require.Equal(t, []string{"01/01 00:00", "01/01 01:00"}, intraday)

	daily := timeAxis(series(2, 24*time.Hour), "ALL")
	require.Equal(t, []string{"2024-01-01", "2024-01-02"}, daily)
}
