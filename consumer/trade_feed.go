package consumer

import (
	"updown/interfaces"
	"updown/model"
	"updown/utils/log"
)

type TradeSettledCallback func(trade model.Trade)

// TradeFeedConsumer : 정산된 trade 를 notifier 와 등록된 callback 으로 흘려보낸다
type TradeFeedConsumer struct {
	notifier  interfaces.Notifier
	callbacks []TradeSettledCallback
}

// notifier 가 nil 이면 로그만 남긴다
func NewTradeFeedConsumer(notifier interfaces.Notifier) *TradeFeedConsumer {
	return &TradeFeedConsumer{
		notifier:  notifier,
		callbacks: make([]TradeSettledCallback, 0),
	}
}

func (c *TradeFeedConsumer) AddTradeSettledCallback(cb TradeSettledCallback) {
	c.callbacks = append(c.callbacks, cb)
}

func (c *TradeFeedConsumer) OnTrade(trade model.Trade) {
	if trade.Pending() {
		log.Warnf("[TradeFeedConsumer] ignore pending trade %s", trade.ID)
		return
	}
	log.Infof("[TradeFeedConsumer] Received trade - Symbol: %s, Direction: %s, Result: %s, Profit: %.2f",
		trade.Symbol, trade.Direction, trade.Result, trade.Profit)

	if c.notifier != nil {
		c.notifier.TradeNotifier(trade)
	}
	for _, cb := range c.callbacks {
		cb(trade)
	}
}
