package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"updown/model"
	"updown/utils/log"
	"updown/utils/resty"
)

const TelegramBaseURL = "https://api.telegram.org"

type TelegramNotifier struct {
	BotToken string
	ChatID   string

	baseURL string
	client  resty.RestyClient
	timeout time.Duration
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type TelegramOption func(*TelegramNotifier)

func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(t *TelegramNotifier) {
		t.baseURL = baseURL
	}
}

func WithTelegramClient(client resty.RestyClient) TelegramOption {
	return func(t *TelegramNotifier) {
		t.client = client
	}
}

func NewTelegramNotifier(botToken, chatID string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		baseURL:  TelegramBaseURL,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = resty.NewDefaultRestyClient(false, t.timeout)
	}
	return t
}

func (t *TelegramNotifier) SendNotification(message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.BotToken)
	resp, err := t.client.MakeRequest(ctx, telegramMessage{ChatID: t.ChatID, Text: message}, nil).Post(apiURL)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// TradeNotifier 는 정산된 trade 결과를 메시지로 전송합니다.
func (t *TelegramNotifier) TradeNotifier(trade model.Trade) {
	if sendErr := t.SendNotification(FormatTrade(trade)); sendErr != nil {
		log.Errorf("텔레그램 알림 전송 실패: %v", sendErr)
	}
}

// FormatTrade : 알림 본문
func FormatTrade(trade model.Trade) string {
	var action string
	switch trade.Direction {
	case model.DirectionUp:
		action = "상승"
	case model.DirectionDown:
		action = "하락"
	default:
		action = string(trade.Direction)
	}

	var outcome string
	switch trade.Result {
	case model.ResultWin:
		outcome = "승"
	case model.ResultLoss:
		outcome = "패"
	case model.ResultDraw:
		outcome = "무"
	default:
		outcome = "진행 중"
	}

	return fmt.Sprintf("거래 정산:\n종목: %s\n방향: %s\n결과: %s\n진입가: %.8f\n청산가: %.8f\n금액: %.2f\n손익: %.2f",
		trade.Symbol, action, outcome, trade.EntryPrice, trade.ExitPrice, trade.Amount, trade.Profit)
}
