package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"

	"go.uber.org/zap"
)

// DocumentStore - хранилище загруженных документов.
type DocumentStore interface {
	Store(ctx context.Context, doc models.Document, category models.DocumentCategory, ownerId string) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// AwardListener получает уведомление после фиксации присуждения.
type AwardListener interface {
	OnBidAwarded(ctx context.Context, bidId string) error
}

// Clock возвращает текущее время; подменяется в тестах.
type Clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}

// repoError переводит ошибку репозитория в ErrorResponse.
func repoError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var errorResponse *models.ErrorResponse
	switch {
	case errors.As(err, &errorResponse):
		return errorResponse
	case errors.Is(err, repository.ErrNotFound):
		return models.NewErrorResponse(models.NotFound, entity+" not found")
	case errors.Is(err, repository.ErrDuplicate):
		return models.NewErrorResponse(models.Conflict, entity+" already exists")
	case errors.Is(err, repository.ErrStateConflict):
		return models.NewErrorResponse(models.InvalidState, entity+" is not in a valid state for this operation")
	default:
		return models.NewInternalError("internal server error", fmt.Errorf("%s: %w", entity, err))
	}
}

// discard удаляет документы, которые не войдут в сохраненное состояние.
// Выполняется и после отмены запроса.
func discard(ctx context.Context, docs DocumentStore, logger *zap.Logger, refs ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := docs.Delete(ctx, ref); err != nil {
			logger.Warn("failed to delete document", zap.String("ref", ref), zap.Error(err))
		}
	}
}
