package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-scenario-engine/internal/scenario"
)

// Repository provides data access methods. It implements
// scenario.Store on top of PostgreSQL.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// SCENARIO SETS
// ============================================================================

// GetActiveSet returns the active scenario set for a symbol and timeframe
func (r *Repository) GetActiveSet(ctx context.Context, symbol, timeframe string) (*scenario.Set, error) {
	query := `
		SELECT id, symbol, timeframe, scenarios, generated_at, active, outcome_price
		FROM scenario_sets
		WHERE symbol = $1 AND timeframe = $2 AND active
	`
	set, err := r.scanSet(r.db.Pool.QueryRow(ctx, query, symbol, timeframe))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scenario.ErrNoActiveSet
	}
	return set, err
}

// SaveSet deactivates the prior active set for the same key and stores
// the new one in a single transaction
func (r *Repository) SaveSet(ctx context.Context, set *scenario.Set) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE scenario_sets SET active = FALSE WHERE symbol = $1 AND timeframe = $2 AND active`,
		set.Symbol, set.Timeframe,
	)
	if err != nil {
		return fmt.Errorf("deactivate prior set: %w", err)
	}

	scenarios, err := json.Marshal(set.Scenarios)
	if err != nil {
		return fmt.Errorf("marshal scenarios: %w", err)
	}
	if set.GeneratedAt.IsZero() {
		set.GeneratedAt = time.Now()
	}
	set.Active = true

	_, err = tx.Exec(ctx,
		`INSERT INTO scenario_sets (id, symbol, timeframe, scenarios, generated_at, active, outcome_price)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NULL)`,
		set.ID, set.Symbol, set.Timeframe, scenarios, set.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert set: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordOutcome settles the active set with a close price. A set that
// already has an outcome is left untouched.
func (r *Repository) RecordOutcome(ctx context.Context, symbol, timeframe string, closePrice float64) (*scenario.Set, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin outcome: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, symbol, timeframe, scenarios, generated_at, active, outcome_price
		FROM scenario_sets
		WHERE symbol = $1 AND timeframe = $2 AND active
		FOR UPDATE
	`
	set, err := r.scanSet(tx.QueryRow(ctx, query, symbol, timeframe))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scenario.ErrNoActiveSet
	}
	if err != nil {
		return nil, err
	}
	if set.OutcomePrice != nil {
		return nil, scenario.ErrOutcomeAlreadyRecorded
	}

	_, err = tx.Exec(ctx,
		`UPDATE scenario_sets SET outcome_price = $2 WHERE id = $1`,
		set.ID, closePrice,
	)
	if err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	price := closePrice
	set.OutcomePrice = &price
	return set, nil
}

// ListSetHistory returns recent scenario sets for outcome review,
// newest first
func (r *Repository) ListSetHistory(ctx context.Context, symbol, timeframe string, limit int) ([]*scenario.Set, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, symbol, timeframe, scenarios, generated_at, active, outcome_price
		FROM scenario_sets
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY generated_at DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("list set history: %w", err)
	}
	defer rows.Close()

	var sets []*scenario.Set
	for rows.Next() {
		set, err := r.scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanSet(row rowScanner) (*scenario.Set, error) {
	var (
		set       scenario.Set
		scenarios []byte
	)
	err := row.Scan(&set.ID, &set.Symbol, &set.Timeframe, &scenarios,
		&set.GeneratedAt, &set.Active, &set.OutcomePrice)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scenarios, &set.Scenarios); err != nil {
		return nil, fmt.Errorf("unmarshal scenarios: %w", err)
	}
	return &set, nil
}

// ============================================================================
// USERS
// ============================================================================

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, failed_logins, locked_until, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.FailedLogins, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, failed_logins, locked_until, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.FailedLogins, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// RecordFailedLogin increments the failure count and optionally locks
// the account
func (r *Repository) RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET failed_logins = failed_logins + 1, locked_until = $2, updated_at = NOW() WHERE id = $1`,
		userID, lockUntil,
	)
	return err
}

// ResetLoginAttempts clears the failure count after a successful login
func (r *Repository) ResetLoginAttempts(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1`,
		userID,
	)
	return err
}
