//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/doudizhu-server/internal/server/storage"
)

// MockAccountStore 账号存储 mock
type MockAccountStore struct {
	mock.Mock
}

var _ storage.AccountStore = (*MockAccountStore)(nil)

func (m *MockAccountStore) Register(ctx context.Context, username, passwordHash string) (*storage.User, error) {
	args := m.Called(ctx, username, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockAccountStore) Login(ctx context.Context, username, passwordHash string) (*storage.User, error) {
	args := m.Called(ctx, username, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockAccountStore) Logout(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockAccountStore) GetUser(ctx context.Context, userID int64) (*storage.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.User), args.Error(1)
}

func (m *MockAccountStore) RankList(ctx context.Context, limit int) ([]storage.RankEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.RankEntry), args.Error(1)
}

func (m *MockAccountStore) ClearOnline(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAccountStore) RecordResult(ctx context.Context, changes []storage.CoinChange) error {
	args := m.Called(ctx, changes)
	return args.Error(0)
}

func (m *MockAccountStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
