package tools

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnsupportedInterval = errors.New("unsupported interval")

// SupportedIntervals : 화면에서 고를 수 있는 timeframe 순서
var SupportedIntervals = []string{"5m", "15m", "30m", "1h", "1d", "1M", "ALL"}

// MapInterval : 화면 timeframe -> binance kline interval
func MapInterval(interval string) (string, error) {
	switch interval {
	case "5m", "15m", "30m", "1h", "1d", "1M":
		return interval, nil
	case "ALL":
		// 전체 기간은 주봉으로 대체
		return "1w", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInterval, interval)
	}
}

// ParseIntervalToDuration : binance interval 한 칸의 길이
func ParseIntervalToDuration(interval string) (time.Duration, error) {
	switch interval {
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	case "1M":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedInterval, interval)
	}
}
