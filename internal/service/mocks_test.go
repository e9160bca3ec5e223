package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gcash/bchd/bchec"
	"github.com/gcash/bchd/chaincfg"
	"github.com/gcash/bchutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/model"
	"bchfaucet/internal/wallet"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) DeleteByEmailLike(ctx context.Context, pattern string) (int64, error) {
	args := m.Called(ctx, pattern)
	return args.Get(0).(int64), args.Error(1)
}

// MockIPRepository is a mock implementation of IPRepository.
type MockIPRepository struct {
	mock.Mock
}

func (m *MockIPRepository) Exists(ctx context.Context, ip string) (bool, error) {
	args := m.Called(ctx, ip)
	return args.Bool(0), args.Error(1)
}

func (m *MockIPRepository) Create(ctx context.Context, record *model.IPRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockIPRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIPRepository) List(ctx context.Context) ([]model.IPRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.IPRecord), args.Error(1)
}

// memoryIPs and memoryAddrs are stateful stand-ins for the payout scenarios.
type memoryIPs struct {
	mu      sync.Mutex
	records []model.IPRecord
}

func (r *memoryIPs) Exists(_ context.Context, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.IPAddress == ip {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryIPs) Create(_ context.Context, record *model.IPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryIPs) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	var n int64
	for _, rec := range r.records {
		if rec.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return n, nil
}

func (r *memoryIPs) List(context.Context) ([]model.IPRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.IPRecord(nil), r.records...), nil
}

type memoryAddrs struct {
	mu      sync.Mutex
	records map[string]model.AddressRecord
	err     error
}

func (r *memoryAddrs) Exists(_ context.Context, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.records[address]
	return ok, nil
}

func (r *memoryAddrs) Create(_ context.Context, record *model.AddressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string]model.AddressRecord{}
	}
	r.records[record.BchAddress] = *record
	return nil
}

func (r *memoryAddrs) List(context.Context) ([]model.AddressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AddressRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

// fakePayer records sends instead of broadcasting.
type fakePayer struct {
	own     string
	sent    []string
	sendErr error
}

func (p *fakePayer) Params() *chaincfg.Params { return &chaincfg.TestNet3Params }

func (p *fakePayer) IsOwn(addr string) bool {
	return wallet.SameAddress(addr, p.own, p.Params())
}

func (p *fakePayer) Balance(context.Context) (int64, error) { return 123456789, nil }

func (p *fakePayer) Send(_ context.Context, to bchutil.Address, amount int64) (string, error) {
	if p.sendErr != nil {
		return "", p.sendErr
	}
	p.sent = append(p.sent, wallet.CashAddress(to, p.Params()))
	return fmt.Sprintf("tx-%d", len(p.sent)), nil
}

var errBroadcast = errors.New("txn-mempool-conflict")

// newAddress returns a fresh valid testnet cash address.
func newAddress(t *testing.T) string {
	t.Helper()
	priv, err := bchec.NewPrivateKey(bchec.S256())
	require.NoError(t, err)
	params := &chaincfg.TestNet3Params
	addr, err := bchutil.NewAddressPubKeyHash(bchutil.Hash160(priv.PubKey().SerializeCompressed()), params)
	require.NoError(t, err)
	return wallet.CashAddress(addr, params)
}

func notFoundUser() error {
	return apperrors.ErrUserNotFound
}
