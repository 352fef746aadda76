package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const bidColumns = `id, rfq_id, seller_id, document, total_price, state, created_at, deleted_at`

const bidItemColumns = `id, bid_id, item, quantity, unit, single_price, transport_fee, taxes, total_price`

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

func scanBid(row scanner) (*models.Bid, error) {
	var bid models.Bid
	var deletedAt *time.Time
	if err := row.Scan(
		&bid.ID,
		&bid.RFQID,
		&bid.SellerID,
		&bid.Document,
		&bid.TotalPrice,
		&bid.State,
		&bid.CreatedAt,
		&deletedAt); err != nil {
		return nil, err
	}
	bid.Presence = models.PresenceFrom(deletedAt)
	return &bid, nil
}

func scanBidItem(row scanner) (*models.BidItem, error) {
	var item models.BidItem
	if err := row.Scan(
		&item.ID,
		&item.BidID,
		&item.Item,
		&item.Quantity,
		&item.Unit,
		&item.SinglePrice,
		&item.TransportFee,
		&item.Taxes,
		&item.TotalPrice); err != nil {
		return nil, err
	}
	return &item, nil
}

func bidStates(states []models.BidState) []string {
	values := make([]string, len(states))
	for i, s := range states {
		values[i] = string(s)
	}
	return values
}

// selectBids выбирает предложения по условию where и подгружает их позиции одним запросом.
func selectBids(ctx context.Context, q db.Querier, where string, args ...any) ([]models.Bid, error) {
	rows, err := q.Query(ctx, `SELECT `+bidColumns+` FROM bid WHERE `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bids = append(bids, *bid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return bids, nil
	}

	ids := make([]string, len(bids))
	index := make(map[string]int, len(bids))
	for i, bid := range bids {
		ids[i] = bid.ID
		index[bid.ID] = i
	}
	items, err := selectBidItems(ctx, q, `bid_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		i := index[item.BidID]
		bids[i].Items = append(bids[i].Items, item)
	}
	return bids, nil
}

func selectBidItems(ctx context.Context, q db.Querier, where string, args ...any) ([]models.BidItem, error) {
	rows, err := q.Query(ctx, `SELECT `+bidItemColumns+` FROM bid_item WHERE `+where+` ORDER BY item, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.BidItem
	for rows.Next() {
		item, err := scanBidItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CreateBid сохраняет предложение, если его запрос котировок открыт.
// Строка запроса блокируется FOR SHARE до конца транзакции, поэтому
// параллельное закрытие или присуждение дождется вставки и увидит новое предложение.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid models.Bid) (*models.Bid, error) {
	q := db.Conn(ctx, r.DB)
	query := `WITH target AS (
	              SELECT id FROM rfq
	              WHERE id = $2::text AND state = $8::text AND deleted_at IS NULL
	              FOR SHARE
	          )
	          INSERT INTO bid (` + bidColumns + `)
	          SELECT $1::text, target.id, $3::text, $4::text, $5::numeric, $6::text, $7::timestamptz, NULL::timestamptz
	          FROM target
	          RETURNING ` + bidColumns
	created, err := scanBid(q.QueryRow(
		ctx,
		query,
		bid.ID,
		bid.RFQID,
		bid.SellerID,
		bid.Document,
		bid.TotalPrice,
		bid.State,
		bid.CreatedAt,
		models.OpenedRFQ))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, missing(ctx, q, "rfq", bid.RFQID)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("bid %s: %w", bid.ID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert bid: %w", err)
	}
	return created, nil
}

// CreateBidItems сохраняет позиции предложения.
func (r *PostgresBidRepository) CreateBidItems(ctx context.Context, bidId string, items []models.BidItem) ([]models.BidItem, error) {
	q := db.Conn(ctx, r.DB)
	query := `INSERT INTO bid_item (` + bidItemColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING ` + bidItemColumns

	created := make([]models.BidItem, 0, len(items))
	for _, item := range items {
		saved, err := scanBidItem(q.QueryRow(
			ctx,
			query,
			item.ID,
			bidId,
			item.Item,
			item.Quantity,
			item.Unit,
			item.SinglePrice,
			item.TransportFee,
			item.Taxes,
			item.TotalPrice))
		if err != nil {
			return nil, fmt.Errorf("failed to insert bid item %s: %w", item.Item, err)
		}
		created = append(created, *saved)
	}
	return created, nil
}

// DeleteBidItems удаляет все позиции предложения.
func (r *PostgresBidRepository) DeleteBidItems(ctx context.Context, bidId string) error {
	_, err := db.Conn(ctx, r.DB).Exec(ctx, `DELETE FROM bid_item WHERE bid_id = $1`, bidId)
	return err
}

// GetBidById возвращает активное предложение, при withRelations - с позициями и запросом котировок.
func (r *PostgresBidRepository) GetBidById(ctx context.Context, bidId string, withRelations bool) (*models.Bid, error) {
	q := db.Conn(ctx, r.DB)
	bid, err := scanBid(q.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1 AND deleted_at IS NULL`, bidId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bid %s: %w", bidId, ErrNotFound)
		}
		return nil, err
	}
	if !withRelations {
		return bid, nil
	}

	if bid.Items, err = selectBidItems(ctx, q, `bid_id = $1`, bidId); err != nil {
		return nil, err
	}
	bid.RFQ, err = scanRFQ(q.QueryRow(ctx, `SELECT `+rfqColumns+` FROM rfq WHERE id = $1`, bid.RFQID))
	if err != nil {
		return nil, fmt.Errorf("failed to load rfq of bid %s: %w", bidId, err)
	}
	return bid, nil
}

// GetRFQBids возвращает активные предложения по запросу котировок.
func (r *PostgresBidRepository) GetRFQBids(ctx context.Context, rfqId string) ([]models.Bid, error) {
	return selectBids(ctx, db.Conn(ctx, r.DB), `rfq_id = $1 AND deleted_at IS NULL`, rfqId)
}

// GetSellerBids возвращает активные предложения продавца.
func (r *PostgresBidRepository) GetSellerBids(ctx context.Context, sellerId string) ([]models.Bid, error) {
	return selectBids(ctx, db.Conn(ctx, r.DB), `seller_id = $1 AND deleted_at IS NULL`, sellerId)
}

// UpdateBid меняет сумму и документ открытого предложения.
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, bidId string, totalPrice decimal.Decimal, document string) (*models.Bid, error) {
	q := db.Conn(ctx, r.DB)
	query := `UPDATE bid SET total_price = $2, document = $3
	          WHERE id = $1 AND deleted_at IS NULL AND state = $4
	          RETURNING ` + bidColumns
	bid, err := scanBid(q.QueryRow(ctx, query, bidId, totalPrice, document, models.OpenedBid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missing(ctx, q, "bid", bidId)
	}
	return bid, err
}

// UpdateState записывает новый статус предложения одной командой UPDATE с проверкой from.
func (r *PostgresBidRepository) UpdateState(ctx context.Context, bidId string, state models.BidState, from ...models.BidState) (*models.Bid, error) {
	q := db.Conn(ctx, r.DB)
	query := `UPDATE bid SET state = $2 WHERE id = $1 AND deleted_at IS NULL`
	args := []any{bidId, state}
	if len(from) > 0 {
		query += ` AND state = ANY($3)`
		args = append(args, pq.Array(bidStates(from)))
	}
	query += ` RETURNING ` + bidColumns

	bid, err := scanBid(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, missing(ctx, q, "bid", bidId)
	}
	return bid, err
}

// CloseOpenBids закрывает все еще открытые предложения запроса.
func (r *PostgresBidRepository) CloseOpenBids(ctx context.Context, rfqId string) (int64, error) {
	tag, err := db.Conn(ctx, r.DB).Exec(
		ctx,
		`UPDATE bid SET state = $2 WHERE rfq_id = $1 AND state = $3`,
		rfqId, models.ClosedBid, models.OpenedBid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RejectSiblings отклоняет открытые предложения запроса, кроме exceptBidId.
// Условие по статусу проверяется в момент записи.
func (r *PostgresBidRepository) RejectSiblings(ctx context.Context, rfqId, exceptBidId string) (int64, error) {
	tag, err := db.Conn(ctx, r.DB).Exec(
		ctx,
		`UPDATE bid SET state = $3 WHERE rfq_id = $1 AND id <> $2 AND state = $4`,
		rfqId, exceptBidId, models.RejectedBid, models.OpenedBid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountStates возвращает число активных предложений продавца по статусам.
func (r *PostgresBidRepository) CountStates(ctx context.Context, sellerId string) (models.BidStateCount, error) {
	rows, err := db.Conn(ctx, r.DB).Query(
		ctx,
		`SELECT state, COUNT(*) FROM bid WHERE seller_id = $1 AND deleted_at IS NULL GROUP BY state`,
		sellerId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := models.BidStateCount{}
	for rows.Next() {
		var state models.BidState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// SoftDelete помечает предложение удаленным.
func (r *PostgresBidRepository) SoftDelete(ctx context.Context, bidId string, at time.Time) (*models.Bid, error) {
	query := `UPDATE bid SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL RETURNING ` + bidColumns
	bid, err := scanBid(db.Conn(ctx, r.DB).QueryRow(ctx, query, bidId, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bid %s: %w", bidId, ErrNotFound)
	}
	return bid, err
}
