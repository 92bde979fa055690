package simulator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"updown/model"
)

// PayoutRate : 이겼을 때 원금에 더해 주는 고정 수익률
const PayoutRate = 0.85

var (
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidPrice     = errors.New("invalid entry price")
	ErrInvalidDuration  = errors.New("invalid duration")
)

type Engine struct {
	clock func() time.Time
	newID func() string
}

type EngineOption func(*Engine)

func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) {
		e.newID = newID
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		clock: time.Now,
		newID: func() string {
			return "trade-" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Now() time.Time {
	return e.clock()
}

// Create : 현재 시각에 진입하는 pending trade
func (e *Engine) Create(symbol string, direction model.Direction, amount, entryPrice float64, duration time.Duration) (model.Trade, error) {
	if !direction.Valid() {
		return model.Trade{}, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.Trade{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	if entryPrice <= 0 || math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) {
		return model.Trade{}, fmt.Errorf("%w: %v", ErrInvalidPrice, entryPrice)
	}
	if duration <= 0 {
		return model.Trade{}, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}

	now := e.clock()
	return model.Trade{
		ID:         e.newID(),
		Symbol:     symbol,
		Direction:  direction,
		Amount:     amount,
		EntryPrice: entryPrice,
		EntryTime:  now,
		ExpiryTime: now.Add(duration),
	}, nil
}

// Outcome : 방향과 진입/청산 가격만으로 결정되는 결과
func Outcome(direction model.Direction, entryPrice, exitPrice float64) model.Result {
	switch {
	case exitPrice == entryPrice:
		return model.ResultDraw
	case direction == model.DirectionUp && exitPrice > entryPrice,
		direction == model.DirectionDown && exitPrice < entryPrice:
		return model.ResultWin
	default:
		return model.ResultLoss
	}
}

// ProfitFor : win 은 원금+85%, loss 는 -원금, draw 는 원금 반환
func ProfitFor(result model.Result, amount float64) float64 {
	switch result {
	case model.ResultWin:
		return amount + amount*PayoutRate
	case model.ResultLoss:
		return -amount
	default:
		return amount
	}
}

// Settle : 입력을 바꾸지 않는 순수 함수. 이미 정산된 trade 는 그대로 돌려준다.
func Settle(trade model.Trade, exitPrice float64) model.Trade {
	if !trade.Pending() {
		return trade
	}
	settled := trade
	settled.ExitPrice = exitPrice
	settled.Result = Outcome(trade.Direction, trade.EntryPrice, exitPrice)
	settled.Profit = ProfitFor(settled.Result, trade.Amount)
	return settled
}

type Quote struct {
	Gain       float64 `json:"gain"`
	Total      float64 `json:"total"`
	Percentage string  `json:"percentage"`
}

// ExpectedReturn : 이겼을 때 받는 금액 안내
func ExpectedReturn(amount float64) Quote {
	return Quote{
		Gain:       amount * PayoutRate,
		Total:      amount + amount*PayoutRate,
		Percentage: fmt.Sprintf("+%.0f%%", PayoutRate*100),
	}
}

// Projection : pending trade 를 지금 가격으로 정산한다면의 가상 결과
type Projection struct {
	Result    model.Result  `json:"result"`
	Return    float64       `json:"return"`
	Remaining time.Duration `json:"remaining"`
	Progress  float64       `json:"progress"`
}

func (e *Engine) Project(trade model.Trade, price float64) Projection {
	now := e.clock()
	result := Outcome(trade.Direction, trade.EntryPrice, price)

	ret := trade.Amount
	switch result {
	case model.ResultWin:
		ret = ProfitFor(result, trade.Amount)
	case model.ResultLoss:
		ret = 0
	}

	remaining := trade.ExpiryTime.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	total := trade.ExpiryTime.Sub(trade.EntryTime)
	progress := 100.0
	if total > 0 {
		progress = math.Min(100, float64(total-remaining)/float64(total)*100)
	}

	return Projection{
		Result:    result,
		Return:    ret,
		Remaining: remaining,
		Progress:  progress,
	}
}
