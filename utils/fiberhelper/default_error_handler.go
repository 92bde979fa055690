package fiberhelpers

import (
	_error "errors"

	"github.com/gofiber/fiber/v2"

	"updown/utils/fiberhelper/response"
	"updown/utils/log"
)

// DefaultErrorHandler : 핸들러가 돌려준 *fiber.Error 는 그 상태코드로, 나머지는 500 으로 응답
func DefaultErrorHandler(ctx *fiber.Ctx, err error) error {
	fiberError, ok := convertToFiberError(err)
	if !ok {
		log.Errorf("[WEB] %s %s: %v", ctx.Method(), ctx.Path(), err)
		return response.Ext{Ctx: ctx}.Panic(err)
	}
	if fiberError.Code >= fiber.StatusInternalServerError {
		log.Errorf("[WEB] %s %s: %v", ctx.Method(), ctx.Path(), fiberError.Message)
	}
	return response.Ext{Ctx: ctx}.Status(fiberError.Code).JSON(response.ErrorResponse{
		Code:    response.Code(fiberError.Code),
		Message: fiberError.Message,
	})
}

func convertToFiberError(err error) (*fiber.Error, bool) {
	var fiberError *fiber.Error
	if _error.As(err, &fiberError) {
		return fiberError, true
	}
	return nil, false
}
