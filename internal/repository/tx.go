package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
)

// Store bundles the shared *sqlx.DB handle and the transaction helper used
// across repositories. It embeds no per-request scope: scope is passed
// explicitly to each repository call (no shared mutable state, immutable
// references only). WithTx additionally mirrors the tenantctx scope bound
// on its context into the transaction's session, for the row-level
// security policies in migrations/0001_init.sql.
type Store struct {
	DB *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Business components use this to group related
// writes, e.g. activating a Period, submitting a registration, or running
// a selection step across all paths of a period.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = setSessionScope(ctx, tx); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// setSessionScope mirrors the caller's tenantctx.Scope into the app.current_role
// and app.current_school_id session variables the RLS policies key on.
// set_config's third argument scopes the setting to the current transaction
// (equivalent to SET LOCAL), so it can never leak across a pooled connection
// to the next, unrelated request. Requests with no bound scope (none of the
// anonymous endpoints write inside a transaction) leave both unset, under
// which every policy denies tenant-owned rows outright.
func setSessionScope(ctx context.Context, tx *sqlx.Tx) error {
	scope, ok := tenantctx.FromContext(ctx)
	if !ok {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_role', $1, true)`, string(scope.Role)); err != nil {
		return fmt.Errorf("set session role: %w", err)
	}
	schoolID := ""
	if scope.SchoolID != nil {
		schoolID = strconv.FormatInt(*scope.SchoolID, 10)
	}
	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_school_id', $1, true)`, schoolID); err != nil {
		return fmt.Errorf("set session school scope: %w", err)
	}
	return nil
}
