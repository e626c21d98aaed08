package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ecinventory/internal/domain/model"
	"ecinventory/internal/infra/memory"
	repo "ecinventory/internal/repository"
	"ecinventory/internal/usecase"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Fakes / Mocks
// =====================

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("ev-%d", g.n.Add(1))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, ev model.StockChanged) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, alerts []model.StockAlert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

type LockerMock struct{ mock.Mock }

func (m *LockerMock) Obtain(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

// 最初のfailures回だけ失敗するTransactionManager
type flakyTx struct {
	inner    repo.TransactionManager
	err      error
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return f.err
	}
	return f.inner.WithinTx(ctx, fn)
}

// 最初のWithinTxはコミットさせてから失敗を返す（COMMITの応答が失われた状態）
type lostAckTx struct {
	inner repo.TransactionManager
	mu    sync.Mutex
	calls int
}

func (l *lostAckTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()

	if err := l.inner.WithinTx(ctx, fn); err != nil {
		return err
	}
	if first {
		return errors.New("driver: bad connection")
	}
	return nil
}

// コミット直後に呼び出し元のctxを切る
type cancelAfterCommitTx struct {
	inner  repo.TransactionManager
	cancel context.CancelFunc
}

func (c *cancelAfterCommitTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := c.inner.WithinTx(ctx, fn)
	c.cancel()
	return err
}

var (
	_ usecase.IDGenerator         = (*seqIDs)(nil)
	_ usecase.StockEventPublisher = (*PublisherMock)(nil)
	_ usecase.AlertNotifier       = (*NotifierMock)(nil)
	_ usecase.Locker              = (*LockerMock)(nil)
)

// =====================
// helper
// =====================

func nullLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func testLedgerConfig() usecase.LedgerConfig {
	return usecase.LedgerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}
}

func newLedger(t *testing.T, s repo.TransactionManager, pub usecase.StockEventPublisher) *usecase.LedgerUsecase {
	t.Helper()
	logger, _ := nullLogger()
	return usecase.NewLedgerUsecase(s, pub, &seqIDs{}, nil, logger, testLedgerConfig())
}

func seedProduct(t *testing.T, s *memory.Store, name string, stock int64) model.Product {
	t.Helper()

	p, err := s.Products().Create(context.Background(), model.Product{Name: name, Stock: stock})
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, s *memory.Store, id int64) int64 {
	t.Helper()

	p, err := s.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func txCount(t *testing.T, s *memory.Store, id int64) int {
	t.Helper()

	items, err := s.StockTransactions().ListByProductID(context.Background(), id)
	require.NoError(t, err)
	return len(items)
}

func assertKind(t *testing.T, err error, kind usecase.ErrorKind) {
	t.Helper()

	require.Error(t, err)
	e, ok := usecase.AsError(err)
	require.True(t, ok, "not a usecase error: %v", err)
	require.Equal(t, kind, e.Kind, "err=%v", err)
}
