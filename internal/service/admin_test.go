package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAdminService(t *testing.T, wallets *fakeWalletRepo, ledger *fakeTxRepo) (service.AdminService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	users := newFakeUserRepo(&models.User{ID: 1, Email: "a@example.com"})
	svc := service.NewAdminService(newTestLogger(), db, users, wallets, &fakeOrderRepo{}, ledger, newFakeGiftRepo(),
		"admin", string(hash), time.Hour)
	return svc, mock
}

func TestAdminLogin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	svc, _ := newAdminService(t, newFakeWalletRepo(), &fakeTxRepo{})
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin", "admin-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Login(ctx, "admin", "nope")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "root", "admin-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAdminLogin_NoHashConfigured(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := service.NewAdminService(newTestLogger(), db, newFakeUserRepo(), newFakeWalletRepo(), &fakeOrderRepo{}, &fakeTxRepo{}, newFakeGiftRepo(),
		"admin", "", time.Hour)
	_, err = svc.Login(context.Background(), "admin", "")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAdminDeposit(t *testing.T) {
	wallets := newFakeWalletRepo(&models.Wallet{UserID: 1, Balance: 100})
	ledger := &fakeTxRepo{}
	svc, mock := newAdminService(t, wallets, ledger)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	w, err := svc.Deposit(ctx, 1, 5000, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5100), w.Balance)
	require.Len(t, ledger.records, 1)
	assert.Equal(t, models.TxTypeDeposit, ledger.records[0].Type)
	assert.Equal(t, "admin deposit", ledger.records[0].Remark)

	_, err = svc.Deposit(ctx, 1, 0, "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Deposit(ctx, 42, 10, "")
	assert.Error(t, err)

	users, err := svc.Users(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}
