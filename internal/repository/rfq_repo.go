package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const rfqColumns = `id, title, project_name, purchase_number, category, quantity, detail,
	auction_doc, guideline_doc, deadline, state, buyer_id, created_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

// PostgresRFQRepository - реализация RFQRepository для базы данных.
type PostgresRFQRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRFQRepository создаёт новый экземпляр PostgresRFQRepository.
func NewPostgresRFQRepository(db *pgxpool.Pool) *PostgresRFQRepository {
	return &PostgresRFQRepository{DB: db}
}

func scanRFQ(row scanner) (*models.RFQ, error) {
	var rfq models.RFQ
	var deletedAt *time.Time
	if err := row.Scan(
		&rfq.ID,
		&rfq.Title,
		&rfq.ProjectName,
		&rfq.PurchaseNumber,
		&rfq.Category,
		&rfq.Quantity,
		&rfq.Detail,
		&rfq.AuctionDoc,
		&rfq.GuidelineDoc,
		&rfq.Deadline,
		&rfq.State,
		&rfq.BuyerID,
		&rfq.CreatedAt,
		&deletedAt); err != nil {
		return nil, err
	}
	rfq.Presence = models.PresenceFrom(deletedAt)
	return &rfq, nil
}

func collectRFQs(rows pgx.Rows) ([]models.RFQ, error) {
	defer rows.Close()

	var rfqs []models.RFQ
	for rows.Next() {
		rfq, err := scanRFQ(rows)
		if err != nil {
			return nil, err
		}
		rfqs = append(rfqs, *rfq)
	}
	return rfqs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func rfqStates(states []models.RFQState) []string {
	values := make([]string, len(states))
	for i, s := range states {
		values[i] = string(s)
	}
	return values
}

// CreateRFQ сохраняет новый запрос котировок.
func (r *PostgresRFQRepository) CreateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error) {
	query := `INSERT INTO rfq (` + rfqColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING ` + rfqColumns
	created, err := scanRFQ(db.Conn(ctx, r.DB).QueryRow(
		ctx,
		query,
		rfq.ID,
		rfq.Title,
		rfq.ProjectName,
		rfq.PurchaseNumber,
		rfq.Category,
		rfq.Quantity,
		rfq.Detail,
		rfq.AuctionDoc,
		rfq.GuidelineDoc,
		rfq.Deadline,
		rfq.State,
		rfq.BuyerID,
		rfq.CreatedAt,
		rfq.Presence.Column()))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("purchase number %s: %w", rfq.PurchaseNumber, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert rfq: %w", err)
	}
	return created, nil
}

// GetRFQById возвращает активный запрос котировок, при withBids - вместе с предложениями.
func (r *PostgresRFQRepository) GetRFQById(ctx context.Context, rfqId string, withBids bool) (*models.RFQ, error) {
	q := db.Conn(ctx, r.DB)
	query := `SELECT ` + rfqColumns + ` FROM rfq WHERE id = $1 AND deleted_at IS NULL`
	rfq, err := scanRFQ(q.QueryRow(ctx, query, rfqId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("rfq %s: %w", rfqId, ErrNotFound)
		}
		return nil, err
	}

	if withBids {
		rfq.Bids, err = selectBids(ctx, q, `rfq_id = $1 AND deleted_at IS NULL`, rfqId)
		if err != nil {
			return nil, err
		}
	}
	return rfq, nil
}

// FindByPurchaseNumber ищет запрос покупателя по номеру закупки, включая удаленные.
func (r *PostgresRFQRepository) FindByPurchaseNumber(ctx context.Context, buyerId, purchaseNumber string) (*models.RFQ, error) {
	query := `SELECT ` + rfqColumns + ` FROM rfq WHERE buyer_id = $1 AND purchase_number = $2`
	rfq, err := scanRFQ(db.Conn(ctx, r.DB).QueryRow(ctx, query, buyerId, purchaseNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rfq, err
}

// MaxPurchaseSequence возвращает наибольший номер вида PN-NNN у покупателя.
func (r *PostgresRFQRepository) MaxPurchaseSequence(ctx context.Context, buyerId string) (int, error) {
	var sequence int
	query := `SELECT COALESCE(MAX(CAST(SUBSTRING(purchase_number FROM 4) AS INTEGER)), 0)
	          FROM rfq WHERE buyer_id = $1 AND purchase_number ~ '^PN-[0-9]+$'`
	err := db.Conn(ctx, r.DB).QueryRow(ctx, query, buyerId).Scan(&sequence)
	return sequence, err
}

// FindOpenExpired возвращает открытые запросы, срок которых истек до now.
func (r *PostgresRFQRepository) FindOpenExpired(ctx context.Context, now time.Time) ([]models.RFQ, error) {
	query := `SELECT ` + rfqColumns + ` FROM rfq
	          WHERE state = $1 AND deleted_at IS NULL AND deadline < $2
	          ORDER BY deadline`
	rows, err := db.Conn(ctx, r.DB).Query(ctx, query, models.OpenedRFQ, now)
	if err != nil {
		return nil, err
	}
	return collectRFQs(rows)
}

// GetBuyerRFQs возвращает список запросов покупателя.
func (r *PostgresRFQRepository) GetBuyerRFQs(ctx context.Context, buyerId string, limit, offset int) ([]models.RFQ, error) {
	query := `SELECT ` + rfqColumns + ` FROM rfq
	          WHERE buyer_id = $1 AND deleted_at IS NULL
	          ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := db.Conn(ctx, r.DB).Query(ctx, query, buyerId, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRFQs(rows)
}

// GetOpenRFQs возвращает открытые запросы, по которым еще принимаются предложения.
func (r *PostgresRFQRepository) GetOpenRFQs(ctx context.Context, now time.Time, limit, offset int) ([]models.RFQ, error) {
	query := `SELECT ` + rfqColumns + ` FROM rfq
	          WHERE state = $1 AND deleted_at IS NULL AND deadline > $2
	          ORDER BY deadline LIMIT $3 OFFSET $4`
	rows, err := db.Conn(ctx, r.DB).Query(ctx, query, models.OpenedRFQ, now, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectRFQs(rows)
}

// UpdateRFQ меняет описательные поля и документы открытого запроса.
func (r *PostgresRFQRepository) UpdateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error) {
	query := `UPDATE rfq
	          SET title = $2, project_name = $3, category = $4, quantity = $5, detail = $6,
	              auction_doc = $7, guideline_doc = $8, deadline = $9
	          WHERE id = $1 AND deleted_at IS NULL AND state = $10
	          RETURNING ` + rfqColumns
	updated, err := scanRFQ(db.Conn(ctx, r.DB).QueryRow(
		ctx,
		query,
		rfq.ID,
		rfq.Title,
		rfq.ProjectName,
		rfq.Category,
		rfq.Quantity,
		rfq.Detail,
		rfq.AuctionDoc,
		rfq.GuidelineDoc,
		rfq.Deadline,
		models.OpenedRFQ))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missing(ctx, db.Conn(ctx, r.DB), "rfq", rfq.ID)
	}
	return updated, err
}

// UpdateState записывает новый статус одной командой UPDATE.
// Если передан from, строка меняется только когда ее статус на момент записи входит в from.
func (r *PostgresRFQRepository) UpdateState(ctx context.Context, rfqId string, state models.RFQState, from ...models.RFQState) (*models.RFQ, error) {
	query := `UPDATE rfq SET state = $2 WHERE id = $1 AND deleted_at IS NULL`
	args := []any{rfqId, state}
	if len(from) > 0 {
		query += ` AND state = ANY($3)`
		args = append(args, pq.Array(rfqStates(from)))
	}
	query += ` RETURNING ` + rfqColumns

	rfq, err := scanRFQ(db.Conn(ctx, r.DB).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missing(ctx, db.Conn(ctx, r.DB), "rfq", rfqId)
	}
	return rfq, err
}

// SoftDelete помечает запрос удаленным.
func (r *PostgresRFQRepository) SoftDelete(ctx context.Context, rfqId string, at time.Time) (*models.RFQ, error) {
	query := `UPDATE rfq SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL RETURNING ` + rfqColumns
	rfq, err := scanRFQ(db.Conn(ctx, r.DB).QueryRow(ctx, query, rfqId, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rfq %s: %w", rfqId, ErrNotFound)
	}
	return rfq, err
}

// missing отличает отсутствующую запись от записи в неподходящем статусе.
func missing(ctx context.Context, q db.Querier, table, id string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE id = $1 AND deleted_at IS NULL)`
	if err := q.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, ErrStateConflict)
}
