package model

import "time"

type Direction string
type Result string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// 비어 있는 Result는 아직 정산 전(pending)
const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Trade : 만기 시점의 가격 방향에 거는 한 건의 포지션
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Amount     float64   `json:"amount"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExpiryTime time.Time `json:"expiry_time"`

	// 정산 후에만 채워짐
	Result    Result  `json:"result,omitempty"`
	ExitPrice float64 `json:"exit_price,omitempty"`
	Profit    float64 `json:"profit,omitempty"`
}

func (t Trade) Pending() bool {
	return t.Result == ""
}

func (t Trade) Expired(now time.Time) bool {
	return !now.Before(t.ExpiryTime)
}

// Payout : 정산 시 잔고에 더해지는 금액. 원금은 진입 시 이미 차감되어 있으므로
// win/draw 는 profit 그대로, loss 는 0
func (t Trade) Payout() float64 {
	switch t.Result {
	case ResultWin, ResultDraw:
		return t.Profit
	default:
		return 0
	}
}
