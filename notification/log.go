package notification

import (
	"updown/model"
	"updown/utils/log"
)

// LogNotifier : 텔레그램 설정이 없을 때 쓰는 notifier
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) SendNotification(message string) error {
	log.Info("[NOTIFY] " + message)
	return nil
}

func (l *LogNotifier) TradeNotifier(trade model.Trade) {
	_ = l.SendNotification(FormatTrade(trade))
}
