package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"updown/model"
)

// 단일 구독자가 퍼블리시된 trade 를 받는지
func TestTradeFeed_SingleSubscriber(t *testing.T) {
	tf := NewTradeFeed(4)
	received := make(chan model.Trade, 1)
	tf.Subscribe(func(trade model.Trade) {
		received <- trade
	})

	tf.Start()
	defer tf.Stop()

	tf.Publish(model.Trade{ID: "t-1", Symbol: "BTCUSDT", Result: model.ResultWin})

	select {
	case trade := <-received:
		require.Equal(t, "t-1", trade.ID)
	case <-time.After(time.Second):
		t.Fatal("did not receive the trade within the expected time")
	}
}

// 여러 구독자 모두 같은 순서로 받는지
func TestTradeFeed_MultipleSubscribersKeepOrder(t *testing.T) {
	tf := NewTradeFeed(4)
	first := make(chan string, 2)
	second := make(chan string, 2)
	tf.Subscribe(func(trade model.Trade) { first <- trade.ID })
	tf.Subscribe(func(trade model.Trade) { second <- trade.ID })

	tf.Start()
	tf.Start() // 두 번 호출해도 dispatch goroutine 은 하나
	defer tf.Stop()

	tf.Publish(model.Trade{ID: "a"})
	tf.Publish(model.Trade{ID: "b"})

	for _, ch := range []chan string{first, second} {
		for _, want := range []string{"a", "b"} {
			select {
			case got := <-ch:
				require.Equal(t, want, got)
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}
}

func TestTradeFeed_PublishAfterStopDoesNotBlock(t *testing.T) {
	tf := NewTradeFeed(0)
	tf.Start()
	tf.Stop()

	done := make(chan struct{})
	go func() {
		tf.Publish(model.Trade{ID: "late"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after stop")
	}
}

// Stop 시점에 버퍼에 남아 있던 trade 도 구독자에게 전달되는지
func TestTradeFeed_StopDeliversBufferedTrades(t *testing.T) {
	tf := NewTradeFeed(4)
	gate := make(chan struct{})
	var got []string
	tf.Subscribe(func(trade model.Trade) {
		if trade.ID == "a" {
			<-gate
		}
		got = append(got, trade.ID)
	})
	tf.Start()

	tf.Publish(model.Trade{ID: "a"})
	tf.Publish(model.Trade{ID: "b"})
	tf.Publish(model.Trade{ID: "c"})

	stopped := make(chan struct{})
	go func() {
		tf.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool { return tf.ctx.Err() != nil }, time.Second, time.Millisecond)
	close(gate)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestTradeFeed_StopWithoutStart(t *testing.T) {
	tf := NewTradeFeed(1)
	tf.Stop()
}
