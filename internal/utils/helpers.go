package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/senyabanana/procurement-service/internal/models"

	"go.uber.org/zap"
)

// SendErrorResponse отправляет ошибку в формате JSON с кодом, соответствующим ее категории.
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error) {
	errorResponse := ToErrorResponse(err)
	if errorResponse.Kind == models.Internal {
		logger.Error("request failed", zap.String("kind", string(errorResponse.Kind)), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("kind", string(errorResponse.Kind)), zap.String("reason", errorResponse.Message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorResponse.StatusCode)
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		logger.Warn("failed to encode error response", zap.Error(err))
	}
}

// ToErrorResponse приводит ошибку к ErrorResponse; неизвестные ошибки становятся Internal
// без раскрытия причины клиенту.
func ToErrorResponse(err error) *models.ErrorResponse {
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		return errorResponse
	}
	return models.NewInternalError("internal server error", err)
}

// SendJSON отправляет тело ответа в формате JSON.
func SendJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	}

	return limit, offset, nil
}

// Contains проверяет, входит ли значение в список допустимых.
func Contains[T comparable](values []T, value T) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
