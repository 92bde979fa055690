package webserver

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"updown/chartview"
	"updown/feed"
	"updown/interfaces"
	"updown/model"
	"updown/simulator"
	fiberhelpers "updown/utils/fiberhelper"
	"updown/utils/fiberhelper/middleware"
	"updown/utils/fiberhelper/response"
	"updown/utils/log"
	"updown/utils/tools"
)

// WebServer : session 상태 조회 + 거래 + 차트
type WebServer struct {
	app     *fiber.App
	session *feed.Session
	market  interfaces.MarketData
}

// CandleData : 캔들 OHLC 형식
type CandleData struct {
	X      int64   `json:"x"`
	O      float64 `json:"o"`
	H      float64 `json:"h"`
	L      float64 `json:"l"`
	C      float64 `json:"c"`
	Volume float64 `json:"volume,omitempty"`
}

type TradeRequest struct {
	Direction model.Direction `json:"direction"`
}

// SettingsRequest : 비어 있는 필드는 바꾸지 않는다
type SettingsRequest struct {
	Symbol          *string  `json:"symbol"`
	Interval        *string  `json:"interval"`
	Amount          *float64 `json:"amount"`
	DurationMinutes *float64 `json:"duration_minutes"`
}

type HistoryResponse struct {
	Trades []model.Trade   `json:"trades"`
	Stats  simulator.Stats `json:"stats"`
}

type LoadMoreResponse struct {
	Loaded bool `json:"loaded"`
}

func NewWebServer(session *feed.Session, market interfaces.MarketData) *WebServer {
	app := fiber.New(fiber.Config{
		ErrorHandler:          fiberhelpers.DefaultErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberhelpers.NewRecover())
	app.Use(middleware.LogMiddleware("/api/state", "/api/candles"))

	ws := &WebServer{app: app, session: session, market: market}

	api := app.Group("/api")
	api.Get("/state", ws.stateHandler)
	api.Get("/candles", ws.candlesHandler)
	api.Get("/history", ws.historyHandler)
	api.Post("/history/more", ws.loadMoreHandler)
	api.Post("/trades", ws.tradeHandler)
	api.Put("/settings", ws.settingsHandler)
	api.Get("/instruments", ws.instrumentsHandler)
	api.Get("/prices", ws.pricesHandler)
	app.Get("/chart", ws.chartHandler)

	return ws
}

func (ws *WebServer) App() *fiber.App {
	return ws.app
}

// Start : 서버 구동. Shutdown 전까지 블록
func (ws *WebServer) Start(port string) error {
	address := fiberhelpers.Address(port)
	log.Infof("[WEB] listening on %s", address)
	return ws.app.Listen(address)
}

func (ws *WebServer) Shutdown() error {
	return ws.app.ShutdownWithTimeout(5 * time.Second)
}

func (ws *WebServer) stateHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(ws.session.Snapshot())
}

func (ws *WebServer) candlesHandler(c *fiber.Ctx) error {
	series := ws.session.Snapshot().Series
	return response.Ext{Ctx: c}.Ok(lo.Map(series, func(candle model.Candle, _ int) CandleData {
		return toCandleData(candle)
	}))
}

func toCandleData(candle model.Candle) CandleData {
	return CandleData{
		X:      candle.Time.UnixMilli(),
		O:      candle.Open,
		H:      candle.High,
		L:      candle.Low,
		C:      candle.Close,
		Volume: candle.Volume,
	}
}

func (ws *WebServer) historyHandler(c *fiber.Ctx) error {
	account := ws.session.Account()
	return response.Ext{Ctx: c}.Ok(HistoryResponse{
		Trades: account.History(),
		Stats:  account.Stats(),
	})
}

func (ws *WebServer) loadMoreHandler(c *fiber.Ctx) error {
	loaded := ws.session.LoadMoreHistory(c.UserContext())
	return response.Ext{Ctx: c}.Ok(LoadMoreResponse{Loaded: loaded})
}

func (ws *WebServer) tradeHandler(c *fiber.Ctx) error {
	req, err := fiberhelpers.RequestParse[TradeRequest](c)
	if err != nil {
		return err
	}
	trade, err := ws.session.PlaceTrade(req.Direction)
	if err != nil {
		return response.Ext{Ctx: c}.Error(statusFor(err), err)
	}
	return response.Ext{Ctx: c}.Created(trade)
}

func (ws *WebServer) settingsHandler(c *fiber.Ctx) error {
	req, err := fiberhelpers.RequestParse[SettingsRequest](c)
	if err != nil {
		return err
	}
	ext := response.Ext{Ctx: c}

	if req.Amount != nil {
		if err := ws.session.SetTradeAmount(*req.Amount); err != nil {
			return ext.Error(statusFor(err), err)
		}
	}
	if req.DurationMinutes != nil {
		duration := time.Duration(*req.DurationMinutes * float64(time.Minute))
		if err := ws.session.SetTradeDuration(duration); err != nil {
			return ext.Error(statusFor(err), err)
		}
	}

	if req.Symbol != nil || req.Interval != nil {
		current := ws.session.Snapshot()
		symbol := lo.FromPtrOr(req.Symbol, current.Symbol)
		interval := lo.FromPtrOr(req.Interval, current.Interval)

		if _, ok := model.LookupInstrument(symbol); !ok {
			return ext.Error(fiber.StatusBadRequest, feed.ErrInvalidSymbol)
		}
		if symbol != current.Symbol || interval != current.Interval {
			if err := ws.session.Track(c.UserContext(), symbol, interval); err != nil {
				return ext.Error(statusFor(err), err)
			}
		}
	}
	return ext.Ok(ws.session.Snapshot())
}

func (ws *WebServer) instrumentsHandler(c *fiber.Ctx) error {
	return response.Ext{Ctx: c}.Ok(model.Instruments)
}

// pricesHandler : symbols 가 없으면 전체 카탈로그
func (ws *WebServer) pricesHandler(c *fiber.Ctx) error {
	symbols := lo.Compact(lo.Map(strings.Split(c.Query("symbols"), ","), func(s string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(s))
	}))
	if len(symbols) == 0 {
		symbols = lo.Map(model.Instruments, func(i model.Instrument, _ int) string {
			return i.Symbol
		})
	}
	return response.Ext{Ctx: c}.Ok(ws.market.FetchPrices(c.UserContext(), symbols))
}

func (ws *WebServer) chartHandler(c *fiber.Ctx) error {
	state := ws.session.Snapshot()
	c.Type("html", "utf-8")
	return chartview.Render(c, chartview.View{
		Symbol:   state.Symbol,
		Interval: state.Interval,
		Series:   state.Series,
		Price:    state.Price,
		HasPrice: state.HasPrice,
		Pending:  state.Pending,
	})
}

// statusFor : 거래/설정 거절 사유 -> HTTP 상태코드
func statusFor(err error) int {
	switch {
	case errors.Is(err, feed.ErrTradePending):
		return fiber.StatusConflict
	case errors.Is(err, feed.ErrNoPrice),
		errors.Is(err, feed.ErrInsufficientBalance),
		errors.Is(err, feed.ErrInvalidAmount),
		errors.Is(err, feed.ErrInvalidDuration):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrInvalidDirection),
		errors.Is(err, feed.ErrInvalidSymbol),
		errors.Is(err, tools.ErrUnsupportedInterval):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
