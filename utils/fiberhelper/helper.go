package fiberhelpers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"

	"updown/utils/log"
)

// RequestParse : body 파싱 실패는 400 *fiber.Error 로 돌려준다
func RequestParse[T any](context *fiber.Ctx) (T, error) {
	var destination T
	if err := context.BodyParser(&destination); err != nil {
		typeName := reflect.TypeOf(destination).Name()
		log.Warnf("[WEB] parse %s: %v", typeName, err)
		return destination, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid %s body", typeName))
	}
	return destination, nil
}

// Address : "8080" 이나 ":8080" 을 listen 주소로
func Address(port string) string {
	if !strings.ContainsAny(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return "0.0.0.0" + port
}
