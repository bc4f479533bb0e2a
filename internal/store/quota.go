package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const accountColumns = "name, role, credential_ref, consumed_units, daily_cap, updated_at"

func scanAccount(scanner interface{ Scan(dest ...any) error }) (*QuotaAccount, error) {
	var (
		name       string
		role       string
		credRef    sql.NullString
		consumed   int
		dailyCap   int
		updatedRaw string
	)
	if err := scanner.Scan(&name, &role, &credRef, &consumed, &dailyCap, &updatedRaw); err != nil {
		return nil, err
	}
	acct := &QuotaAccount{
		Name:          name,
		Role:          Role(role),
		CredentialRef: credRef.String,
		ConsumedUnits: consumed,
		DailyCap:      dailyCap,
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		acct.UpdatedAt = updated
	}
	return acct, nil
}

// ProvisionAccount creates an account or refreshes its role, credential, and cap.
// Consumed units survive re-provisioning.
func (s *Store) ProvisionAccount(ctx context.Context, acct QuotaAccount) error {
	if strings.TrimSpace(acct.Name) == "" {
		return fmt.Errorf("provision account: %w: empty name", ErrIntegrityViolation)
	}
	if acct.Role != RoleReader && acct.Role != RoleUpload {
		return fmt.Errorf("provision account %s: %w: role %q", acct.Name, ErrIntegrityViolation, acct.Role)
	}
	if acct.DailyCap <= 0 {
		return fmt.Errorf("provision account %s: %w: daily cap must be positive", acct.Name, ErrIntegrityViolation)
	}
	query := "INSERT INTO quota_accounts (" + accountColumns + ") VALUES (?, ?, ?, 0, ?, ?) " +
		s.dialect.upsert("name", []string{"role", "credential_ref", "daily_cap", "updated_at"})
	_, err := s.execWithRetry(ctx, query,
		acct.Name, string(acct.Role), nullableString(acct.CredentialRef), acct.DailyCap, formatTime(s.now()))
	return classifyWriteError("provision account "+acct.Name, err)
}

// ReserveUnits atomically adds units to an account when the result stays within its cap.
// The check and increment are one conditional UPDATE so concurrent callers cannot overshoot.
func (s *Store) ReserveUnits(ctx context.Context, name string, units int) error {
	if units < 0 {
		return fmt.Errorf("reserve %d units on %s: negative amount", units, name)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE quota_accounts SET consumed_units = consumed_units + ?, updated_at = ? WHERE name = ? AND consumed_units + ? <= daily_cap",
		units, formatTime(s.now()), name, units)
	if err != nil {
		return classifyWriteError("reserve units on "+name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve units on %s: rows affected: %w", name, err)
	}
	if affected > 0 {
		return nil
	}
	acct, err := s.GetAccount(ctx, name)
	if err != nil {
		return err
	}
	return fmt.Errorf("account %s has %d of %d units left, need %d: %w",
		name, acct.Remaining(), acct.DailyCap, units, ErrQuotaExceeded)
}

// QualifyingAccounts lists accounts of role with room for units, ordered by name.
func (s *Store) QualifyingAccounts(ctx context.Context, role Role, units int) ([]*QuotaAccount, error) {
	return s.queryAccounts(ctx,
		"SELECT "+accountColumns+" FROM quota_accounts WHERE role = ? AND consumed_units + ? <= daily_cap ORDER BY name ASC",
		string(role), units)
}

// ListAccounts returns every account ordered by role then name.
func (s *Store) ListAccounts(ctx context.Context) ([]*QuotaAccount, error) {
	return s.queryAccounts(ctx, "SELECT "+accountColumns+" FROM quota_accounts ORDER BY role ASC, name ASC")
}

// GetAccount fetches one account by name. Missing accounts return ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, name string) (*QuotaAccount, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+accountColumns+" FROM quota_accounts WHERE name = ?", name)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quota account %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quota account %s: %w", name, err)
	}
	return acct, nil
}

// ResetQuota zeroes consumed units. With no names every account is reset.
func (s *Store) ResetQuota(ctx context.Context, names ...string) (int64, error) {
	query := "UPDATE quota_accounts SET consumed_units = 0, updated_at = ?"
	args := []any{formatTime(s.now())}
	if len(names) > 0 {
		query += " WHERE name IN (" + makePlaceholders(len(names)) + ")"
		for _, name := range names {
			args = append(args, name)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, classifyWriteError("reset quota", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]*QuotaAccount, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quota accounts: %w", err)
	}
	defer rows.Close()

	var out []*QuotaAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quota account: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}
