package fiberhelpers

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"updown/utils/log"
)

type LogEntry struct {
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
}

func NewRecover() fiber.Handler {
	return recover.New(
		recover.Config{
			StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
				logEntry := LogEntry{
					Message:    fmt.Sprintf("%v", e),
					StackTrace: string(debug.Stack()),
				}
				logJSON, _ := json.Marshal(logEntry)
				log.Errorf("[WEB] panic on %s %s | %s", c.Method(), c.Path(), logJSON)
			},
			EnableStackTrace: true,
		},
	)
}
