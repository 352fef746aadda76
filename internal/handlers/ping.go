package handlers

import (
	"fmt"
	"net/http"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/utils"

	"go.uber.org/zap"
)

// PingHandler возвращает обработчик GET запроса к /api/ping
func PingHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			utils.SendErrorResponse(w, logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only GET is allowed"))
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, "ok"); err != nil {
			logger.Warn("failed to write ping response", zap.Error(err))
		}
	}
}
