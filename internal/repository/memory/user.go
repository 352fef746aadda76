package memory

import (
	"context"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

// UserRepository - справочник пользователей в памяти.
type UserRepository struct {
	store *Store
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	var found models.User
	err := r.store.read(ctx, func(data *state) error {
		user, ok := data.users[userId]
		if !ok {
			return fmt.Errorf("user %s: %w", userId, repository.ErrNotFound)
		}
		found = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}
