package feed

import (
	"context"
	"sync"

	"updown/model"
	"updown/utils/log"
)

type TradeFeedConsumer func(trade model.Trade)

// TradeFeedSubscription : 정산된 trade 를 구독자들에게 순서대로 전달
type TradeFeedSubscription struct {
	data      chan model.Trade
	consumers []TradeFeedConsumer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	started bool
}

// 전체적인 흐름 : New -> Subscribe -> Start -> Publish -> Stop

func NewTradeFeed(buffer int) *TradeFeedSubscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &TradeFeedSubscription{
		data:   make(chan model.Trade, buffer), //버퍼링된 채널로 퍼블리시 블로킹 방지
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (d *TradeFeedSubscription) Subscribe(consumer TradeFeedConsumer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.consumers = append(d.consumers, consumer)
}

// Publish : 버퍼가 가득 차면 Stop 전까지 기다린다
func (d *TradeFeedSubscription) Publish(trade model.Trade) {
	select {
	case <-d.ctx.Done():
		log.Warnf("[TradeFeed] dropped trade %s after stop", trade.ID)
		return
	default:
	}

	select {
	case d.data <- trade:
	case <-d.ctx.Done():
		log.Warnf("[TradeFeed] dropped trade %s after stop", trade.ID)
	}
}

func (d *TradeFeedSubscription) Start() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		for {
			select {
			case <-d.ctx.Done():
				d.drain()
				return
			case trade := <-d.data:
				d.deliverToSubscribers(trade)
			}
		}
	}()
}

// drain : Stop 전에 버퍼에 들어온 trade 는 마저 전달
func (d *TradeFeedSubscription) drain() {
	for {
		select {
		case trade := <-d.data:
			d.deliverToSubscribers(trade)
		default:
			return
		}
	}
}

func (d *TradeFeedSubscription) deliverToSubscribers(trade model.Trade) {
	d.mu.RLock()
	consumers := make([]TradeFeedConsumer, len(d.consumers))
	copy(consumers, d.consumers)
	d.mu.RUnlock()

	for _, consumer := range consumers {
		consumer(trade)
	}
}

// Stop : 이미 퍼블리시된 trade 를 모두 전달한 뒤 반환. 이후 Publish 는 버려진다
func (d *TradeFeedSubscription) Stop() {
	d.cancel()

	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()
	if started {
		<-d.done
	}
}
