//go:build integration

package wallet_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"verigate/internal/wallet"
	"verigate/pkg/sentinel"
	"verigate/pkg/testutil/containers"
)

type WalletSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	service *wallet.Service
	ctx     context.Context
}

func TestWalletSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WalletSuite))
}

func (s *WalletSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.service = wallet.New(s.pg.DB, slog.New(slog.DiscardHandler))
	s.ctx = context.Background()
}

func (s *WalletSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "wallets"))
}

func (s *WalletSuite) seedWallet(userID string, balance int64) {
	_, err := s.pg.DB.ExecContext(s.ctx,
		`INSERT INTO wallets (user_id, balance) VALUES ($1, $2)`, userID, balance)
	s.Require().NoError(err)
}

func (s *WalletSuite) balance(userID string) int64 {
	var balance int64
	err := s.pg.DB.QueryRowContext(s.ctx,
		`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	s.Require().NoError(err)
	return balance
}

func (s *WalletSuite) TestBalance() {
	s.Run("returns the stored balance", func() {
		s.seedWallet("driver-1", 2500)

		got, err := s.service.Balance(s.ctx, "driver-1")
		s.Require().NoError(err)
		s.Equal(int64(2500), got)
	})

	s.Run("unknown user", func() {
		_, err := s.service.Balance(s.ctx, "ghost")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *WalletSuite) TestChargeVerificationFee() {
	s.Run("debits the fee", func() {
		s.seedWallet("driver-1", 1000)

		s.Require().NoError(s.service.ChargeVerificationFee(s.ctx, "driver-1", 300))
		s.Equal(int64(700), s.balance("driver-1"))
	})

	s.Run("refuses when the balance falls short", func() {
		s.seedWallet("driver-2", 200)

		err := s.service.ChargeVerificationFee(s.ctx, "driver-2", 300)
		s.Require().ErrorIs(err, wallet.ErrInsufficientBalance)
		s.Equal(int64(200), s.balance("driver-2"))
	})

	s.Run("zero fee is a no-op", func() {
		s.Require().NoError(s.service.ChargeVerificationFee(s.ctx, "ghost", 0))
	})

	s.Run("missing wallet", func() {
		err := s.service.ChargeVerificationFee(s.ctx, "ghost", 300)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent debits never overdraw", func() {
		s.seedWallet("driver-3", 500)

		const attempts = 10
		var wg sync.WaitGroup
		var succeeded, refused int
		var mu sync.Mutex
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.service.ChargeVerificationFee(s.ctx, "driver-3", 100)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, wallet.ErrInsufficientBalance):
					refused++
				}
			}()
		}
		wg.Wait()

		s.Equal(5, succeeded)
		s.Equal(5, refused)
		s.Equal(int64(0), s.balance("driver-3"))
	})
}

func (s *WalletSuite) TestWithTransaction() {
	s.Run("commits when fn succeeds", func() {
		s.seedWallet("driver-1", 1000)

		err := s.service.WithTransaction(s.ctx, func(ctx context.Context) error {
			return s.service.ChargeVerificationFee(ctx, "driver-1", 100)
		})
		s.Require().NoError(err)
		s.Equal(int64(900), s.balance("driver-1"))
	})

	s.Run("rolls back every statement on error", func() {
		s.seedWallet("driver-2", 1000)

		boom := fmt.Errorf("downstream failure")
		err := s.service.WithTransaction(s.ctx, func(ctx context.Context) error {
			if err := s.service.ChargeVerificationFee(ctx, "driver-2", 100); err != nil {
				return err
			}
			return boom
		})
		s.Require().ErrorIs(err, boom)
		s.Equal(int64(1000), s.balance("driver-2"))
	})

	s.Run("rolls back on panic and rethrows", func() {
		s.seedWallet("driver-3", 1000)

		s.Require().Panics(func() {
			_ = s.service.WithTransaction(s.ctx, func(ctx context.Context) error {
				if err := s.service.ChargeVerificationFee(ctx, "driver-3", 100); err != nil {
					return err
				}
				panic("mid-transaction failure")
			})
		})
		s.Equal(int64(1000), s.balance("driver-3"))
	})
}
