package simulator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/StudioSol/set"
	"github.com/samber/lo"

	"updown/model"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Account : 잔고와 정산 완료된 trade 의 append-only 기록
type Account struct {
	mu      sync.RWMutex
	balance float64
	history []model.Trade
	settled *set.LinkedHashSetString
}

func NewAccount(initialBalance float64) *Account {
	return &Account{
		balance: initialBalance,
		history: make([]model.Trade, 0),
		settled: set.NewLinkedHashSetString(),
	}
}

func (a *Account) Balance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Reserve : 진입 시 원금을 먼저 차감
func (a *Account) Reserve(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if amount > a.balance {
		return fmt.Errorf("%w: amount=%.2f balance=%.2f", ErrInsufficientBalance, amount, a.balance)
	}
	a.balance -= amount
	return nil
}

// Record : 정산된 trade 를 기록하고 Payout 만큼 잔고에 더한다.
// 같은 ID 는 한 번만 반영되며, 이미 기록됐거나 pending 이면 false.
func (a *Account) Record(trade model.Trade) bool {
	if trade.Pending() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settled.InArray(trade.ID) {
		return false
	}
	a.settled.Add(trade.ID)
	a.history = append(a.history, trade)
	a.balance += trade.Payout()
	return true
}

func (a *Account) History() []model.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.Trade, len(a.history))
	copy(out, a.history)
	return out
}

type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Draws       int     `json:"draws"`
	WinRate     float64 `json:"win_rate"`
	TotalProfit float64 `json:"total_profit"`
}

func (a *Account) Stats() Stats {
	history := a.History()

	byResult := func(result model.Result) func(model.Trade) bool {
		return func(t model.Trade) bool { return t.Result == result }
	}
	stats := Stats{
		TotalTrades: len(history),
		Wins:        lo.CountBy(history, byResult(model.ResultWin)),
		Losses:      lo.CountBy(history, byResult(model.ResultLoss)),
		Draws:       lo.CountBy(history, byResult(model.ResultDraw)),
		TotalProfit: lo.SumBy(history, func(t model.Trade) float64 { return t.Profit }),
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	}
	return stats
}
