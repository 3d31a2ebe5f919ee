package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound indicates the group id has no line items.
var ErrNotFound = errors.New("prescription group not found")

// ErrDuplicateGroup indicates a group id collision on registration.
var ErrDuplicateGroup = errors.New("prescription group id already exists")

// Repository persists prescription groups.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// EnsureSchema creates the prescriptions table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS prescriptions (
			id BIGINT PRIMARY KEY,
			medicine_name TEXT NOT NULL,
			quantity INT NOT NULL,
			prescription_group_id BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS prescriptions_group_idx
			ON prescriptions (prescription_group_id)
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateGroup inserts all line items of a group in one transaction. Either
// every item is persisted or none is; a partial group is never left behind.
// A reused group id returns ErrDuplicateGroup: the group column carries no
// unique constraint because one group spans many rows, so the collision check
// is an explicit query inside the transaction. The 23505 mapping below covers
// row id collisions, which also mean the random id space produced a repeat.
func (r *Repository) CreateGroup(ctx context.Context, groupID int64, items []LineItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM prescriptions WHERE prescription_group_id = $1)`,
		groupID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check group %d: %w", groupID, err)
	}
	if exists {
		return fmt.Errorf("group %d: %w", groupID, ErrDuplicateGroup)
	}

	query := `
		INSERT INTO prescriptions (id, medicine_name, quantity, prescription_group_id)
		VALUES ($1, $2, $3, $4)
	`
	for _, item := range items {
		if _, err := tx.Exec(ctx, query, NewGroupID(), item.Name, item.Quantity, groupID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert line item: %w", ErrDuplicateGroup)
			}
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ItemsByGroup returns the line items of a group, or ErrNotFound.
func (r *Repository) ItemsByGroup(ctx context.Context, groupID int64) ([]LineItem, error) {
	query := `
		SELECT medicine_name, quantity
		FROM prescriptions
		WHERE prescription_group_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group %d: %w", groupID, err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.Name, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

// isUniqueViolation reports a Postgres unique constraint error (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
