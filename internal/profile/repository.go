package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no profile exists for the identity id.
	ErrNotFound = errors.New("profile not found")
	// ErrSchemaNotInitialized indicates the profiles relation is missing,
	// i.e. the hosted database was never set up.
	ErrSchemaNotInitialized = errors.New("profiles schema not initialized")
)

// Repository persists profiles.
type Repository interface {
	Get(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, id string, patch Patch) error
	ExistsByLocalMobile(ctx context.Context, localMobile string) (bool, error)
	List(ctx context.Context) ([]Profile, error)
	Delete(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, full_name, mobile_number, role, verification_code,
	phone_verified, is_approved, is_active, subscription_start_date,
	subscription_end_date, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		id uuid.UUID
		p  Profile
	)
	err := row.Scan(&id, &p.FullName, &p.MobileNumber, &p.Role, &p.VerificationCode,
		&p.PhoneVerified, &p.IsApproved, &p.IsActive, &p.SubscriptionStart,
		&p.SubscriptionEnd, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	p.ID = id.String()
	return p, nil
}

// translateErr maps low-level pgx failures to the package's sentinel errors.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
		return ErrSchemaNotInitialized
	}
	return err
}

// Get fetches a profile by identity id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Profile, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return Profile{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, pid)
	p, err := scanProfile(row)
	if err != nil {
		return Profile{}, translateErr(err)
	}
	return p, nil
}

// Update applies a partial update; only non-nil patch fields are written.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	sets := []string{"updated_at = $2"}
	args := []any{pid, time.Now().UTC()}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.PhoneVerified != nil {
		add("phone_verified", *patch.PhoneVerified)
	}
	if patch.IsApproved != nil {
		add("is_approved", *patch.IsApproved)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.SubscriptionStart != nil {
		add("subscription_start_date", *patch.SubscriptionStart)
	}
	if patch.SubscriptionEnd != nil {
		add("subscription_end_date", *patch.SubscriptionEnd)
	}

	query := `UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExistsByLocalMobile reports whether any profile stores the 0-prefixed
// local-form mobile. Used by the pre-registration duplicate check.
func (r *PostgresRepository) ExistsByLocalMobile(ctx context.Context, localMobile string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE mobile_number = $1)`, localMobile).Scan(&exists)
	if err != nil {
		return false, translateErr(err)
	}
	return exists, nil
}

// List returns all profiles, unapproved first, newest first within each group.
func (r *PostgresRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY is_approved ASC, created_at DESC`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, translateErr(err)
		}
		profiles = append(profiles, p)
	}
	return profiles, translateErr(rows.Err())
}

// Delete removes a profile row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, pid)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
