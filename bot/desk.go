package bot

import (
	"context"
	"fmt"

	"updown/config"
	"updown/consumer"
	"updown/exchange"
	"updown/feed"
	"updown/interfaces"
	"updown/notification"
	"updown/simulator"
	"updown/utils/log"
	"updown/utils/resty"
	"updown/webserver"
)

// Desk : 시세 게이트웨이, 세션, 정산 알림, 웹서버를 묶어 수명주기를 관리
type Desk struct {
	cfg *config.Config

	market    *exchange.Binance
	session   *feed.Session
	tradeFeed *feed.TradeFeedSubscription
	consumer  *consumer.TradeFeedConsumer
	web       *webserver.WebServer
}

type DeskOption func(*deskOptions)

type deskOptions struct {
	client   resty.RestyClient
	notifier interfaces.Notifier
}

// WithRestyClient : 시세 요청에 쓸 http client (테스트에서는 mock)
func WithRestyClient(client resty.RestyClient) DeskOption {
	return func(o *deskOptions) {
		o.client = client
	}
}

func WithNotifier(notifier interfaces.Notifier) DeskOption {
	return func(o *deskOptions) {
		o.notifier = notifier
	}
}

func NewDesk(cfg *config.Config, opts ...DeskOption) (*Desk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := deskOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = resty.NewDefaultRestyClient(false, cfg.HTTPTimeout)
	}
	if o.notifier == nil {
		if cfg.TelegramEnabled() {
			o.notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		} else {
			o.notifier = notification.NewLogNotifier()
		}
	}

	// 1) 시세 게이트웨이
	market := exchange.NewBinance(cfg.BinanceBaseURL, o.client,
		exchange.WithSeriesTTL(cfg.SeriesCacheTTL),
		exchange.WithPriceTTL(cfg.PriceCacheTTL),
	)

	// 2) 정산된 trade 발행/구독
	tradeFeed := feed.NewTradeFeed(16)
	tradeConsumer := consumer.NewTradeFeedConsumer(o.notifier)
	tradeFeed.Subscribe(tradeConsumer.OnTrade)

	// 3) 세션
	session := feed.NewSession(market, simulator.NewEngine(), simulator.NewAccount(cfg.InitialBalance),
		feed.SessionConfig{
			TickInterval:    cfg.TickInterval,
			RefreshInterval: cfg.RefreshInterval,
			RefreshMinGap:   cfg.RefreshMinGap,
			MaxTickFailures: cfg.MaxTickFailures,
			SeriesLimit:     cfg.SeriesLimit,
			TradeAmount:     cfg.TradeAmount,
			TradeDuration:   cfg.TradeDuration,
		},
		feed.WithTradeFeed(tradeFeed),
	)

	return &Desk{
		cfg:       cfg,
		market:    market,
		session:   session,
		tradeFeed: tradeFeed,
		consumer:  tradeConsumer,
		web:       webserver.NewWebServer(session, market),
	}, nil
}

// Start : trade feed 를 띄우고 기본 종목 추적을 시작한다
func (d *Desk) Start(ctx context.Context) error {
	log.Infof("Desk starting...")

	d.tradeFeed.Start()
	if err := d.session.Track(ctx, d.cfg.DefaultSymbol, d.cfg.DefaultInterval); err != nil {
		d.tradeFeed.Stop()
		return fmt.Errorf("track %s %s: %w", d.cfg.DefaultSymbol, d.cfg.DefaultInterval, err)
	}

	state := d.session.Snapshot()
	log.Infof("=== [Account] balance=%.2f symbol=%s interval=%s candles=%d ===",
		state.Balance, state.Symbol, state.Interval, len(state.Series))
	return nil
}

// Serve : http 서버. Stop 전까지 블록
func (d *Desk) Serve() error {
	log.Infof("Open http://localhost:%s/chart to see chart!", d.cfg.HTTPPort)
	return d.web.Start(d.cfg.HTTPPort)
}

func (d *Desk) Stop() {
	log.Infof("Desk stopping...")

	// 1) 타이머 정지
	d.session.Stop()

	// 2) 버퍼에 남은 정산 알림까지 전달한 뒤 정지
	d.tradeFeed.Stop()

	// 3) http 서버 종료
	if err := d.web.Shutdown(); err != nil {
		log.Warnf("web shutdown: %v", err)
	}

	log.Infof("Desk stopped.")
}

func (d *Desk) Session() *feed.Session {
	return d.session
}

func (d *Desk) Consumer() *consumer.TradeFeedConsumer {
	return d.consumer
}
