package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"
)

// メモリ上の商品＋在庫台帳。STORE=memory とテストで使う。
// 商品ごとのロックで同じ商品の書き込みを直列にし、
// WithinTx の変更はコミット時にまとめて反映する。
type Store struct {
	mu       sync.RWMutex
	products map[int64]model.Product
	txs      []model.StockTransaction
	byKey    map[string]model.StockTransaction

	productSeq atomic.Int64
	txSeq      atomic.Int64

	locksMu sync.Mutex
	locks   map[int64]chan struct{}
}

func NewStore() *Store {
	return &Store{
		products: map[int64]model.Product{},
		byKey:    map[string]model.StockTransaction{},
		locks:    map[int64]chan struct{}{},
	}
}

// トランザクション外の参照・作成用
func (s *Store) Products() repo.ProductRepository {
	return &productRepo{s: s}
}

func (s *Store) StockTransactions() repo.StockTransactionRepository {
	return &stockTransactionRepo{s: s}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u := newUnit(s)
	defer u.release()

	if err := fn(&txRepos{
		products: &productRepo{s: s, u: u},
		txs:      &stockTransactionRepo{s: s, u: u},
	}); err != nil {
		return err
	}

	//呼び出し側が諦めたなら何も反映しない
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(u)
}

// コミット済みの状態を複製して読む。複製への書き込みは捨てる。
func (s *Store) WithinSnapshot(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.clone()
	return fn(&txRepos{
		products: &productRepo{s: snap},
		txs:      &stockTransactionRepo{s: snap},
	})
}

func (s *Store) clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := NewStore()
	for id, p := range s.products {
		c.products[id] = p
	}
	for k, t := range s.byKey {
		c.byKey[k] = t
	}
	c.txs = append(make([]model.StockTransaction, 0, len(s.txs)), s.txs...)
	c.productSeq.Store(s.productSeq.Load())
	c.txSeq.Store(s.txSeq.Load())
	return c
}

func (s *Store) commit(u *unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range u.txs {
		if t.IdempotencyKey != nil {
			if _, dup := s.byKey[*t.IdempotencyKey]; dup {
				return repo.ErrConflict
			}
		}
	}
	for id := range u.stock {
		if _, ok := s.products[id]; !ok && !u.created(id) {
			return repo.ErrNotFound
		}
	}

	now := time.Now().UTC()
	for _, p := range u.products {
		s.products[p.ID] = p
	}
	for id, stock := range u.stock {
		p := s.products[id]
		p.Stock = stock
		p.UpdatedAt = now
		s.products[id] = p
	}
	for _, t := range u.txs {
		if t.IdempotencyKey != nil {
			s.byKey[*t.IdempotencyKey] = t
		}
		s.insertTx(t)
	}
	return nil
}

// ID順を保って追加する。同じ商品はロック中に採番しているのでID順＝適用順。
func (s *Store) insertTx(t model.StockTransaction) {
	i := len(s.txs)
	for i > 0 && s.txs[i-1].ID > t.ID {
		i--
	}
	s.txs = append(s.txs, model.StockTransaction{})
	copy(s.txs[i+1:], s.txs[i:])
	s.txs[i] = t
}

// 商品ロック（ctxでキャンセルできる）
func (s *Store) acquire(ctx context.Context, id int64) error {
	s.locksMu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) releaseLock(id int64) {
	s.locksMu.Lock()
	ch := s.locks[id]
	s.locksMu.Unlock()
	<-ch
}

type txRepos struct {
	products repo.ProductRepository
	txs      repo.StockTransactionRepository
}

func (r *txRepos) Products() repo.ProductRepository                    { return r.products }
func (r *txRepos) StockTransactions() repo.StockTransactionRepository { return r.txs }

var (
	_ repo.TransactionManager         = (*Store)(nil)
	_ repo.SnapshotReader             = (*Store)(nil)
	_ repo.ProductRepository          = (*productRepo)(nil)
	_ repo.StockTransactionRepository = (*stockTransactionRepo)(nil)
)
