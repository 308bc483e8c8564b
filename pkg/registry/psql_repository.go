package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db      DBTX
	options RepositoryOptions
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresRepository creates a new PostgreSQL device session repository.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return NewPostgresRepositoryWithOptions(db, DefaultRepositoryOptions())
}

// NewPostgresRepositoryWithOptions creates a new PostgreSQL repository with custom options.
func NewPostgresRepositoryWithOptions(db DBTX, options RepositoryOptions) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		options: options,
	}
}

const sessionColumns = `
	device_id, login_id, device_type, device_name, device_model,
	os_version, app_version, is_trusted, trusted_at, last_access_at,
	created_at, revoked_at
`

// UpsertDevice creates a new session or refreshes an existing one.
func (r *PostgresRepository) UpsertDevice(ctx context.Context, session DeviceSession) (DeviceSession, error) {
	query := `
		INSERT INTO device_session (
			device_id, login_id, device_type, device_name, device_model,
			os_version, app_version, last_access_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
		ON CONFLICT (login_id, device_id) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			device_name = EXCLUDED.device_name,
			device_model = EXCLUDED.device_model,
			os_version = EXCLUDED.os_version,
			app_version = EXCLUDED.app_version,
			last_access_at = NOW(),
			-- A re-login after a revoke starts a fresh untrusted session
			is_trusted = CASE WHEN device_session.revoked_at IS NULL THEN device_session.is_trusted ELSE FALSE END,
			trusted_at = CASE WHEN device_session.revoked_at IS NULL THEN device_session.trusted_at ELSE NULL END,
			created_at = CASE WHEN device_session.revoked_at IS NULL THEN device_session.created_at ELSE NOW() END,
			revoked_at = NULL
		RETURNING ` + sessionColumns

	row := r.db.QueryRow(ctx, query,
		session.DeviceID,
		session.LoginID,
		session.DeviceType,
		session.DeviceName,
		session.DeviceModel,
		session.OSVersion,
		session.AppVersion,
	)

	return scanSession(row)
}

// GetDevice retrieves an active session by login and device ID.
func (r *PostgresRepository) GetDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM device_session
		WHERE login_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`

	session, err := scanSession(r.db.QueryRow(ctx, query, loginID, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
		}
		return DeviceSession{}, fmt.Errorf("failed to get device session: %w", err)
	}

	return session, nil
}

// FindDevicesByLogin returns all active sessions for a login.
func (r *PostgresRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]DeviceSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM device_session
		WHERE login_id = $1 AND revoked_at IS NULL
		ORDER BY last_access_at DESC
	`

	rows, err := r.db.Query(ctx, query, loginID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]DeviceSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device sessions: %w", err)
	}

	return sessions, nil
}

// UpdateTrust sets or clears the trust flag on an active session.
func (r *PostgresRepository) UpdateTrust(ctx context.Context, loginID uuid.UUID, deviceID string, trusted bool, trustedAt *time.Time) (DeviceSession, error) {
	query := `
		UPDATE device_session
		SET is_trusted = $3, trusted_at = $4
		WHERE login_id = $1 AND device_id = $2 AND revoked_at IS NULL
		RETURNING ` + sessionColumns

	session, err := scanSession(r.db.QueryRow(ctx, query, loginID, deviceID, trusted, trustedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
		}
		return DeviceSession{}, fmt.Errorf("failed to update device trust: %w", err)
	}

	return session, nil
}

// UpdateLastAccess refreshes the last access timestamp of an active session.
func (r *PostgresRepository) UpdateLastAccess(ctx context.Context, loginID uuid.UUID, deviceID string, at time.Time) error {
	query := `
		UPDATE device_session
		SET last_access_at = $3
		WHERE login_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, loginID, deviceID, at)
	if err != nil {
		return fmt.Errorf("failed to update last access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	return nil
}

// RevokeDevice soft-deletes a session.
func (r *PostgresRepository) RevokeDevice(ctx context.Context, loginID uuid.UUID, deviceID string) error {
	query := `
		UPDATE device_session
		SET revoked_at = NOW()
		WHERE login_id = $1 AND device_id = $2 AND revoked_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, loginID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to revoke device session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	return nil
}

// RevokeAllByLogin soft-deletes every active session for the login, sparing
// exceptDeviceID when non-empty.
func (r *PostgresRepository) RevokeAllByLogin(ctx context.Context, loginID uuid.UUID, exceptDeviceID string) error {
	query := `
		UPDATE device_session
		SET revoked_at = NOW()
		WHERE login_id = $1 AND revoked_at IS NULL
		  AND ($2 = '' OR device_id <> $2)
	`

	if _, err := r.db.Exec(ctx, query, loginID, exceptDeviceID); err != nil {
		return fmt.Errorf("failed to revoke device sessions: %w", err)
	}

	return nil
}

// scanSession reads one session row, converting nullable timestamps.
func scanSession(row pgx.Row) (DeviceSession, error) {
	var session DeviceSession
	var trustedAt, revokedAt sql.NullTime

	err := row.Scan(
		&session.DeviceID,
		&session.LoginID,
		&session.DeviceType,
		&session.DeviceName,
		&session.DeviceModel,
		&session.OSVersion,
		&session.AppVersion,
		&session.IsTrusted,
		&trustedAt,
		&session.LastAccessAt,
		&session.CreatedAt,
		&revokedAt,
	)
	if err != nil {
		return DeviceSession{}, err
	}

	if trustedAt.Valid {
		session.TrustedAt = &trustedAt.Time
	}
	if revokedAt.Valid {
		session.RevokedAt = &revokedAt.Time
	}

	return session, nil
}
