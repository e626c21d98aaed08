package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"
)

var errNegativeStock = errors.New("stock must be >= 0")

// uがnilならトランザクション外
type productRepo struct {
	s *Store
	u *unit
}

func (r *productRepo) read(id int64) (model.Product, bool) {
	r.s.mu.RLock()
	p, ok := r.s.products[id]
	r.s.mu.RUnlock()

	if r.u == nil {
		return p, ok
	}
	if !ok {
		p, ok = r.u.createdProduct(id)
		if !ok {
			return model.Product{}, false
		}
	}
	if st, staged := r.u.stock[id]; staged {
		p.Stock = st
	}
	return p, true
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	p, ok := r.read(id)
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) LockByID(ctx context.Context, id int64) (model.Product, error) {
	if r.u == nil {
		return r.FindByID(ctx, id)
	}
	if _, ok := r.read(id); !ok {
		return model.Product{}, repo.ErrNotFound
	}
	if err := r.u.lock(ctx, id); err != nil {
		return model.Product{}, err
	}

	//ロック後に読み直す
	return r.FindByID(ctx, id)
}

func (r *productRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	if p.Stock < 0 {
		return model.Product{}, errNegativeStock
	}

	now := time.Now().UTC()
	p.ID = r.s.productSeq.Add(1)
	p.CreatedAt = now
	p.UpdatedAt = now

	if r.u != nil {
		r.u.products = append(r.u.products, p)
		return p, nil
	}

	r.s.mu.Lock()
	r.s.products[p.ID] = p
	r.s.mu.Unlock()
	return p, nil
}

func (r *productRepo) UpdateStock(ctx context.Context, id int64, newStock int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newStock < 0 {
		return errNegativeStock
	}

	if r.u == nil {
		if err := r.s.acquire(ctx, id); err != nil {
			return err
		}
		defer r.s.releaseLock(id)

		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		p, ok := r.s.products[id]
		if !ok {
			return repo.ErrNotFound
		}
		p.Stock = newStock
		p.UpdatedAt = time.Now().UTC()
		r.s.products[id] = p
		return nil
	}

	if _, ok := r.read(id); !ok {
		return repo.ErrNotFound
	}
	//UPDATEは行ロックを取る
	if err := r.u.lock(ctx, id); err != nil {
		return err
	}
	r.u.stock[id] = newStock
	return nil
}

func (r *productRepo) ListAtOrBelowThreshold(ctx context.Context, defaultThreshold int64) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	out := make([]model.Product, 0)
	for _, p := range r.s.products {
		if p.Stock <= p.EffectiveThreshold(defaultThreshold) {
			out = append(out, p)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
