package memory

import (
	"context"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"
)

type stockTransactionRepo struct {
	s *Store
	u *unit
}

func (r *stockTransactionRepo) Create(ctx context.Context, t model.StockTransaction) (model.StockTransaction, error) {
	if err := ctx.Err(); err != nil {
		return model.StockTransaction{}, err
	}

	t.ID = r.s.txSeq.Add(1)
	if r.u != nil {
		r.u.txs = append(r.u.txs, t)
		return t, nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.IdempotencyKey != nil {
		if _, dup := r.s.byKey[*t.IdempotencyKey]; dup {
			return model.StockTransaction{}, repo.ErrConflict
		}
		r.s.byKey[*t.IdempotencyKey] = t
	}
	r.s.insertTx(t)
	return t, nil
}

func (r *stockTransactionRepo) FindByIdempotencyKey(ctx context.Context, key string) (model.StockTransaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.StockTransaction{}, false, err
	}
	if r.u != nil {
		for _, t := range r.u.txs {
			if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
				return t, true, nil
			}
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.byKey[key]
	return t, ok, nil
}

func (r *stockTransactionRepo) ListByProductID(ctx context.Context, productID int64) ([]model.StockTransaction, error) {
	pid := productID
	return r.filter(ctx, repo.StockTransactionFilter{ProductID: &pid})
}

func (r *stockTransactionRepo) List(ctx context.Context, q repo.StockTransactionListQuery) ([]model.StockTransaction, int64, error) {
	all, err := r.filter(ctx, q.StockTransactionFilter)
	if err != nil {
		return nil, 0, err
	}

	total := int64(len(all))
	offset := (q.Page - 1) * q.Limit
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []model.StockTransaction{}, total, nil
	}
	end := offset + q.Limit
	if q.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *stockTransactionRepo) SumQuantity(ctx context.Context, f repo.StockTransactionFilter) (int64, error) {
	all, err := r.filter(ctx, f)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, t := range all {
		sum += t.Quantity
	}
	return sum, nil
}

func (r *stockTransactionRepo) Count(ctx context.Context, f repo.StockTransactionFilter) (int64, error) {
	all, err := r.filter(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

// 条件に合うものを新しい順（ID降順）で返す。トランザクション内なら未コミット分も含む。
func (r *stockTransactionRepo) filter(ctx context.Context, f repo.StockTransactionFilter) ([]model.StockTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.StockTransaction, 0)
	if r.u != nil {
		for i := len(r.u.txs) - 1; i >= 0; i-- {
			if matches(r.u.txs[i], f) {
				out = append(out, r.u.txs[i])
			}
		}
	}

	r.s.mu.RLock()
	for i := len(r.s.txs) - 1; i >= 0; i-- {
		if matches(r.s.txs[i], f) {
			out = append(out, r.s.txs[i])
		}
	}
	r.s.mu.RUnlock()
	return out, nil
}

func matches(t model.StockTransaction, f repo.StockTransactionFilter) bool {
	if f.ProductID != nil && t.ProductID != *f.ProductID {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
