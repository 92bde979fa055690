package feed

import (
	"context"
	"time"
)

// Task : 하나의 polling 관심사를 소유하는 반복 작업. Stop 하면 타이머가 새지 않는다.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartTask : period 마다 fn 을 호출. fn 에는 Stop 시 취소되는 ctx 가 넘어간다.
func StartTask(parent context.Context, period time.Duration, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// Stop : 취소 후 진행 중인 fn 이 끝날 때까지 기다린다. nil 이어도 안전
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}
