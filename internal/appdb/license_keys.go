package appdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "licensebridge/internal/errors"
	"licensebridge/pkg/contracts/domain"
)

// LicenseKeys persists license keys
type LicenseKeys struct {
	sqlDB *sql.DB
}

const licenseColumns = `id, license_key, email, license_type, valid_until, support_until,
		        max_allowed_app_release, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (domain.LicenseKey, error) {
	var (
		key                  domain.LicenseKey
		validUntil           int64
		supportUntil         int64
		maxRelease           sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&key.ID,
		&key.Key,
		&key.Email,
		&key.LicenseType,
		&validUntil,
		&supportUntil,
		&maxRelease,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.LicenseKey{}, err
	}
	key.ValidUntil = fromMillis(validUntil)
	key.SupportUntil = fromMillis(supportUntil)
	if maxRelease.Valid && maxRelease.String != "" {
		key.MaxAllowedAppRelease = &domain.AppRelease{TagName: maxRelease.String}
	}
	key.CreatedAt = fromMillis(createdAt)
	key.UpdatedAt = fromMillis(updatedAt)
	return key, nil
}

func releaseTag(r *domain.AppRelease) sql.NullString {
	if r == nil || strings.TrimSpace(r.TagName) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: r.TagName, Valid: true}
}

// List returns every license key ordered by id
func (r *LicenseKeys) List(ctx context.Context) ([]domain.LicenseKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := r.sqlDB.QueryContext(ctx,
		`SELECT `+licenseColumns+`
		   FROM license_keys
		  ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list license keys: %w", err)
	}
	defer rows.Close()

	keys := make([]domain.LicenseKey, 0)
	for rows.Next() {
		key, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate license keys: %w", err)
	}
	return keys, nil
}

// Get returns one license key by id
func (r *LicenseKeys) Get(ctx context.Context, id int64) (domain.LicenseKey, error) {
	if err := ctx.Err(); err != nil {
		return domain.LicenseKey{}, err
	}
	row := r.sqlDB.QueryRowContext(ctx,
		`SELECT `+licenseColumns+`
		   FROM license_keys
		  WHERE id = ?`, id)
	key, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LicenseKey{}, apperrors.ErrLicenseNotFound
		}
		return domain.LicenseKey{}, fmt.Errorf("get license key %d: %w", id, err)
	}
	return key, nil
}

// Insert stores key as a new row and returns it with the assigned id.
// Zero timestamps are filled with the current time.
func (r *LicenseKeys) Insert(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error) {
	if err := ctx.Err(); err != nil {
		return domain.LicenseKey{}, err
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	if key.UpdatedAt.IsZero() {
		key.UpdatedAt = key.CreatedAt
	}

	res, err := r.sqlDB.ExecContext(ctx,
		`INSERT INTO license_keys (
		   license_key,
		   email,
		   license_type,
		   valid_until,
		   support_until,
		   max_allowed_app_release,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Key,
		key.Email,
		key.LicenseType,
		toMillis(key.ValidUntil),
		toMillis(key.SupportUntil),
		releaseTag(key.MaxAllowedAppRelease),
		toMillis(key.CreatedAt),
		toMillis(key.UpdatedAt),
	)
	if err != nil {
		return domain.LicenseKey{}, fmt.Errorf("insert license key: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.LicenseKey{}, fmt.Errorf("insert license key: %w", err)
	}
	return r.Get(ctx, id)
}

// Update overwrites the row with key.ID. CreatedAt is preserved.
func (r *LicenseKeys) Update(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error) {
	if err := ctx.Err(); err != nil {
		return domain.LicenseKey{}, err
	}
	if key.UpdatedAt.IsZero() {
		key.UpdatedAt = time.Now().UTC()
	}

	res, err := r.sqlDB.ExecContext(ctx,
		`UPDATE license_keys
		    SET license_key = ?,
		        email = ?,
		        license_type = ?,
		        valid_until = ?,
		        support_until = ?,
		        max_allowed_app_release = ?,
		        updated_at = ?
		  WHERE id = ?`,
		key.Key,
		key.Email,
		key.LicenseType,
		toMillis(key.ValidUntil),
		toMillis(key.SupportUntil),
		releaseTag(key.MaxAllowedAppRelease),
		toMillis(key.UpdatedAt),
		key.ID,
	)
	if err != nil {
		return domain.LicenseKey{}, fmt.Errorf("update license key %d: %w", key.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return domain.LicenseKey{}, err
	}
	return r.Get(ctx, key.ID)
}

// Delete removes the row with id
func (r *LicenseKeys) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := r.sqlDB.ExecContext(ctx, `DELETE FROM license_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete license key %d: %w", id, err)
	}
	return expectOneRow(res)
}

// CountByType counts keys with the given license type
func (r *LicenseKeys) CountByType(ctx context.Context, licenseType string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := r.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM license_keys WHERE license_type = ?`, licenseType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count license keys: %w", err)
	}
	return n, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrLicenseNotFound
	}
	return nil
}
