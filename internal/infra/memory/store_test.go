package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ecinventory/internal/domain/model"
	"ecinventory/internal/infra/memory"
	repo "ecinventory/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// helper
// =====================

func seedProduct(t *testing.T, s *memory.Store, stock int64) model.Product {
	t.Helper()

	p, err := s.Products().Create(context.Background(), model.Product{Name: "coffee", Stock: stock})
	require.NoError(t, err)
	return p
}

func applyChange(ctx context.Context, r repo.TxRepos, productID int64, delta int64, key *string) error {
	p, err := r.Products().LockByID(ctx, productID)
	if err != nil {
		return err
	}
	typ := model.StockTransactionAdd
	qty := delta
	if delta < 0 {
		typ = model.StockTransactionRemove
		qty = -delta
	}
	if _, err := r.StockTransactions().Create(ctx, model.StockTransaction{
		ProductID:      p.ID,
		Type:           typ,
		Quantity:       qty,
		PreviousStock:  p.Stock,
		NewStock:       p.Stock + delta,
		Reason:         "test",
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return err
	}
	return r.Products().UpdateStock(ctx, p.ID, p.Stock+delta)
}

// =====================
// WithinTx
// =====================

func TestStore_WithinTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return applyChange(ctx, r, p.ID, 5, nil)
	})
	require.NoError(t, err)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.Stock)

	items, err := s.StockTransactions().ListByProductID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].PreviousStock)
	assert.Equal(t, int64(15), items[0].NewStock)
}

// fnがエラーなら何も残らない
func TestStore_WithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := applyChange(ctx, r, p.ID, -3, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)

	n, err := s.StockTransactions().Count(ctx, repo.StockTransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// コミット前にキャンセルされたら反映しない
func TestStore_WithinTx_CancelledBeforeCommit(t *testing.T) {
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	ctx, cancel := context.WithCancel(context.Background())
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := applyChange(ctx, r, p.ID, 1, nil); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := s.Products().FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)
}

func TestStore_WithinTx_StagedChangesVisibleInsideUnit(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := applyChange(ctx, r, p.ID, 2, nil); err != nil {
			return err
		}
		got, err := r.Products().FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), got.Stock)

		items, err := r.StockTransactions().ListByProductID(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1)

		//外からはまだ見えない
		outside, err := s.Products().FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), outside.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_LockByID_NotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Products().LockByID(ctx, 999)
		return err
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

// 同じ商品のロックは1つだけ。待っている側はctxで抜けられる。
func TestStore_LockByID_Serializes(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(ctx, func(r repo.TxRepos) error {
			if _, err := r.Products().LockByID(ctx, p.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.WithinTx(waitCtx, func(r repo.TxRepos) error {
		_, err := r.Products().LockByID(waitCtx, p.ID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	//解放後は取れる
	err = s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Products().LockByID(ctx, p.ID)
		return err
	})
	assert.NoError(t, err)
}

func TestStore_DuplicateIdempotencyKey_Conflict(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)
	key := "k-1"

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		return applyChange(ctx, r, p.ID, 1, &key)
	}))

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return applyChange(ctx, r, p.ID, 1, &key)
	})
	assert.ErrorIs(t, err, repo.ErrConflict)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Stock)

	found, ok, err := s.StockTransactions().FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(11), found.NewStock)
}

// =====================
// 参照
// =====================

func TestStore_List_NewestFirstWithPaging(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
			return applyChange(ctx, r, p.ID, 1, nil)
		}))
	}

	items, total, err := s.StockTransactions().List(ctx, repo.StockTransactionListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].NewStock)
	assert.Equal(t, int64(4), items[1].NewStock)

	items, _, err = s.StockTransactions().List(ctx, repo.StockTransactionListQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].NewStock)

	items, _, err = s.StockTransactions().List(ctx, repo.StockTransactionListQuery{Page: 4, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStore_SumQuantity_ByType(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)

	for _, d := range []int64{5, -3, 7, -2} {
		d := d
		require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
			return applyChange(ctx, r, p.ID, d, nil)
		}))
	}

	add := model.StockTransactionAdd
	remove := model.StockTransactionRemove
	sum, err := s.StockTransactions().SumQuantity(ctx, repo.StockTransactionFilter{Type: &add})
	require.NoError(t, err)
	assert.Equal(t, int64(12), sum)

	sum, err = s.StockTransactions().SumQuantity(ctx, repo.StockTransactionFilter{Type: &remove})
	require.NoError(t, err)
	assert.Equal(t, int64(5), sum)
}

func TestStore_ListAtOrBelowThreshold(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	_, err := s.Products().Create(ctx, model.Product{Name: "plenty", Stock: 50})
	require.NoError(t, err)
	low, err := s.Products().Create(ctx, model.Product{Name: "low", Stock: 8})
	require.NoError(t, err)
	out, err := s.Products().Create(ctx, model.Product{Name: "out", Stock: 0})
	require.NoError(t, err)
	custom, err := s.Products().Create(ctx, model.Product{Name: "custom", Stock: 20, LowStockThreshold: 25})
	require.NoError(t, err)

	items, err := s.Products().ListAtOrBelowThreshold(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, out.ID, items[0].ID)
	assert.Equal(t, low.ID, items[1].ID)
	assert.Equal(t, custom.ID, items[2].ID)
}

func TestStore_UpdateStock_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 1)

	err := s.Products().UpdateStock(ctx, p.ID, -1)
	assert.Error(t, err)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stock)
}

// =====================
// WithinSnapshot
// =====================

func TestStore_WithinSnapshot_IgnoresLaterCommits(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, 10)
	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		return applyChange(ctx, r, p.ID, 5, nil)
	}))

	err := s.WithinSnapshot(ctx, func(r repo.TxRepos) error {
		before, err := r.StockTransactions().Count(ctx, repo.StockTransactionFilter{})
		require.NoError(t, err)

		//スナップショット中に別のコミット
		require.NoError(t, s.WithinTx(ctx, func(w repo.TxRepos) error {
			return applyChange(ctx, w, p.ID, -3, nil)
		}))

		after, err := r.StockTransactions().Count(ctx, repo.StockTransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, before, after)

		got, err := r.Products().FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(15), got.Stock)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Stock)
}

func TestStore_WithinSnapshot_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.NewStore().WithinSnapshot(ctx, func(r repo.TxRepos) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
