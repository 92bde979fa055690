package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"updown/bot"
	"updown/config"
	"updown/utils/log"
)

func main() {
	// 1) 설정 (.env + 환경변수)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(cfg.LogLevel)

	// 2) Desk 인스턴스 생성
	desk, err := bot.NewDesk(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// 3) Start
	if err := desk.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	go func() {
		if err := desk.Serve(); err != nil {
			log.Errorf("web server error: %v", err)
		}
	}()

	// 4) OS 시그널 대기 (Graceful Stop)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Infof("Shutting down gracefully...")

	// 5) Stop
	desk.Stop()
	log.Infof("Shutdown complete.")
}
