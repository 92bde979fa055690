package response

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"updown/utils/log"
)

const (
	RequestError  = "The request is not valid."
	InternalError = "Internal Server Error"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Code(status int) string {
	return strconv.Itoa(status)
}

type Ext struct {
	*fiber.Ctx
}

// Ok : 성공(200) 응답
func (ext Ext) Ok(data interface{}) error {
	return ext.Status(fiber.StatusOK).JSON(data)
}

// Created : 생성(201) 응답
func (ext Ext) Created(data interface{}) error {
	return ext.Status(fiber.StatusCreated).JSON(data)
}

// Error : 에러 응답. err 가 nil 이면 기본 메시지
func (ext Ext) Error(status int, err error) error {
	msg := RequestError
	if err != nil {
		msg = err.Error()
	}
	return ext.Status(status).JSON(ErrorResponse{
		Code:    Code(status),
		Message: msg,
	})
}

// Panic : 서버 내부 에러 (500) 응답
func (ext Ext) Panic(id interface{}) error {
	log.Errorf("[PANIC] %v", id)
	return ext.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Code:    Code(fiber.StatusInternalServerError),
		Message: InternalError,
	})
}
