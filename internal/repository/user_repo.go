package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserRepository - реализация UserRepository для базы данных.
type PostgresUserRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresUserRepository создает новый экземпляр PostgresUserRepository.
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// GetUserById возвращает пользователя по идентификатору.
func (r *PostgresUserRepository) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	var user models.User
	err := db.Conn(ctx, r.DB).QueryRow(ctx, `SELECT id, role FROM users WHERE id = $1`, userId).Scan(&user.ID, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userId, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser добавляет пользователя в справочник.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user models.User) error {
	_, err := db.Conn(ctx, r.DB).Exec(ctx, `INSERT INTO users (id, role) VALUES ($1, $2)`, user.ID, user.Role)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.ID, ErrDuplicate)
	}
	return err
}
