// Package wallet provides the read-only balance check used by submission
// eligibility and the ledger-adjacent fee debit. The scoped transaction
// primitive lives here because balance mutations are the only path that
// requires relational atomicity; the cross-store dual write deliberately
// does not use it.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"verigate/pkg/sentinel"
	txcontext "verigate/pkg/tx"
)

// ErrInsufficientBalance signals the eligibility check refused the debit.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Service exposes wallet reads and the scoped transaction primitive.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a wallet service.
func New(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Balance returns the user's current balance in minor units.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.queryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("wallet for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query wallet balance: %w", err)
	}
	return balance, nil
}

// WithTransaction runs fn inside one relational transaction. Every statement
// issued through stores that honor the context-carried transaction either
// commits atomically or rolls back entirely; rollback and resource release
// happen on any returned error or panic, including errors raised after
// partial writes inside the same transaction. Nested calls join the
// transaction already carried by the context, so commit and rollback stay
// with the outermost caller.
func (s *Service) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.ErrorContext(ctx, "transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ChargeVerificationFee atomically checks eligibility and debits the fee.
// The row lock serializes concurrent submissions against the same wallet.
// A zero fee is a no-op so deployments can disable charging entirely.
func (s *Service) ChargeVerificationFee(ctx context.Context, userID string, fee int64) error {
	if fee <= 0 {
		return nil
	}
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		var balance int64
		err := s.queryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("wallet for user %s: %w", userID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock wallet row: %w", err)
		}
		if balance < fee {
			return fmt.Errorf("balance %d below verification fee %d: %w", balance, fee, ErrInsufficientBalance)
		}
		if err := s.exec(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = now() WHERE user_id = $1`, userID, fee); err != nil {
			return fmt.Errorf("debit verification fee: %w", err)
		}
		return nil
	})
}

func (s *Service) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return txcontext.Bind(ctx, s.db).QueryRowContext(ctx, query, args...)
}

func (s *Service) exec(ctx context.Context, query string, args ...any) error {
	_, err := txcontext.Bind(ctx, s.db).ExecContext(ctx, query, args...)
	return err
}
