package models

import (
	"errors"
	"net/http"
)

// ErrorKind - категория ошибки, видимая клиенту.
type ErrorKind string

const (
	NotFound     ErrorKind = "NotFound"     // Сущность не существует или удалена
	Conflict     ErrorKind = "Conflict"     // Нарушение уникальности
	InvalidInput ErrorKind = "InvalidInput" // Некорректные входные данные
	InvalidState ErrorKind = "InvalidState" // Переход из недопустимого состояния
	Internal     ErrorKind = "Internal"     // Сбой хранилища или транзакции
)

var kindStatus = map[ErrorKind]int{
	NotFound:     http.StatusNotFound,
	Conflict:     http.StatusConflict,
	InvalidInput: http.StatusBadRequest,
	InvalidState: http.StatusConflict,
	Internal:     http.StatusInternalServerError,
}

// ErrorResponse описывает ошибку с категорией, кодом и сообщением.
type ErrorResponse struct {
	Kind       ErrorKind `json:"kind"`
	StatusCode int       `json:"-"`
	Message    string    `json:"reason"`
	Err        error     `json:"-"`
}

// NewErrorResponse создает новую ошибку заданной категории.
func NewErrorResponse(kind ErrorKind, message string) *ErrorResponse {
	status, ok := kindStatus[kind]
	if !ok {
		kind, status = Internal, http.StatusInternalServerError
	}
	return &ErrorResponse{
		Kind:       kind,
		StatusCode: status,
		Message:    message}
}

// NewInternalError оборачивает причину внутренней ошибки.
func NewInternalError(message string, err error) *ErrorResponse {
	e := NewErrorResponse(Internal, message)
	e.Err = err
	return e
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ErrorResponse) Unwrap() error {
	return e.Err
}

// KindOf возвращает категорию ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var errorResponse *ErrorResponse
	if errors.As(err, &errorResponse) {
		return errorResponse.Kind
	}
	return Internal
}
