package usecase

import (
	"context"
	"errors"
	"time"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"
)

// 台帳の参照側。書き込みはしない。
type LedgerQueryUsecase struct {
	tx       repo.TransactionManager
	products repo.ProductRepository
	txs      repo.StockTransactionRepository
}

// DI
func NewLedgerQueryUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	txs repo.StockTransactionRepository,
) *LedgerQueryUsecase {
	return &LedgerQueryUsecase{tx: tx, products: products, txs: txs}
}

// GET /inventory の入力
type ListTransactionsInput struct {
	ProductID *int64
	Type      *model.StockTransactionType
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type TransactionPage struct {
	Items []model.StockTransaction `json:"items"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
	Limit int                      `json:"limit"`
}

// 集計の入力
type AggregateInput struct {
	Type      model.StockTransactionType
	ProductID *int64
	From      *time.Time
	To        *time.Time
}

type LedgerSummary struct {
	TotalAdded   int64 `json:"totalAdded"`
	TotalRemoved int64 `json:"totalRemoved"`
	Net          int64 `json:"net"`
	Count        int64 `json:"count"`
}

// 在庫と台帳の突き合わせ結果
type Reconciliation struct {
	ProductID        int64  `json:"productId"`
	Stock            int64  `json:"stock"`
	LedgerStock      *int64 `json:"ledgerStock,omitempty"`
	TransactionCount int    `json:"transactionCount"`
	ChainIntact      bool   `json:"chainIntact"`
	BrokenAt         *int64 `json:"brokenAt,omitempty"`
	Consistent       bool   `json:"consistent"`
}

// 商品ごとの履歴（新しい順）
func (u *LedgerQueryUsecase) ListByProduct(ctx context.Context, productID int64) ([]model.StockTransaction, error) {
	if productID <= 0 {
		return nil, NewError(KindProductNotFound, "product not found", nil)
	}
	if _, err := u.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewError(KindProductNotFound, "product not found", nil)
		}
		return nil, classify(err)
	}

	items, err := u.txs.ListByProductID(ctx, productID)
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (u *LedgerQueryUsecase) ListAll(ctx context.Context, in ListTransactionsInput) (TransactionPage, error) {
	if in.Page < 1 {
		return TransactionPage{}, NewError(KindInvalidInput, "invalid page", nil)
	}
	if in.Limit < 1 || in.Limit > 100 {
		return TransactionPage{}, NewError(KindInvalidInput, "invalid limit", nil)
	}
	if err := validateFilter(in.Type, in.From, in.To); err != nil {
		return TransactionPage{}, err
	}

	//件数とページは同じ時点で取る
	var (
		items []model.StockTransaction
		total int64
	)
	err := u.snapshot(ctx, func(r repo.TxRepos) error {
		var err error
		items, total, err = r.StockTransactions().List(ctx, repo.StockTransactionListQuery{
			StockTransactionFilter: repo.StockTransactionFilter{
				ProductID: in.ProductID,
				Type:      in.Type,
				From:      in.From,
				To:        in.To,
			},
			Page:  in.Page,
			Limit: in.Limit,
		})
		return err
	})
	if err != nil {
		return TransactionPage{}, classify(err)
	}
	if items == nil {
		items = []model.StockTransaction{}
	}

	return TransactionPage{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 種類ごとの数量合計
func (u *LedgerQueryUsecase) AggregateTotals(ctx context.Context, in AggregateInput) (int64, error) {
	typ := in.Type
	if err := validateFilter(&typ, in.From, in.To); err != nil {
		return 0, err
	}

	total, err := u.txs.SumQuantity(ctx, repo.StockTransactionFilter{
		ProductID: in.ProductID,
		Type:      &typ,
		From:      in.From,
		To:        in.To,
	})
	if err != nil {
		return 0, classify(err)
	}
	return total, nil
}

// 追加/削除の合計と件数。3つとも同じ時点の値。
func (u *LedgerQueryUsecase) Summary(ctx context.Context, from, to *time.Time) (LedgerSummary, error) {
	if err := validateFilter(nil, from, to); err != nil {
		return LedgerSummary{}, err
	}

	var out LedgerSummary
	err := u.snapshot(ctx, func(r repo.TxRepos) error {
		add, remove := model.StockTransactionAdd, model.StockTransactionRemove

		added, err := r.StockTransactions().SumQuantity(ctx, repo.StockTransactionFilter{Type: &add, From: from, To: to})
		if err != nil {
			return err
		}
		removed, err := r.StockTransactions().SumQuantity(ctx, repo.StockTransactionFilter{Type: &remove, From: from, To: to})
		if err != nil {
			return err
		}
		count, err := r.StockTransactions().Count(ctx, repo.StockTransactionFilter{From: from, To: to})
		if err != nil {
			return err
		}

		out = LedgerSummary{
			TotalAdded:   added,
			TotalRemoved: removed,
			Net:          added - removed,
			Count:        count,
		}
		return nil
	})
	if err != nil {
		return LedgerSummary{}, classify(err)
	}
	return out, nil
}

// products.stock と台帳の最新new_stock、チェーンの連続性を確認する。
// 行ロックを取るので同じ商品の書き込みとは順番になる。
func (u *LedgerQueryUsecase) ReconcileProduct(ctx context.Context, productID int64) (Reconciliation, error) {
	if productID <= 0 {
		return Reconciliation{}, NewError(KindProductNotFound, "product not found", nil)
	}

	var out Reconciliation
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().LockByID(ctx, productID)
		if err != nil {
			return err
		}
		items, err := r.StockTransactions().ListByProductID(ctx, productID)
		if err != nil {
			return err
		}
		out = reconcile(p, items)
		return nil
	})
	if err != nil {
		return Reconciliation{}, classify(err)
	}
	return out, nil
}

// itemsは新しい順
func reconcile(p model.Product, items []model.StockTransaction) Reconciliation {
	out := Reconciliation{
		ProductID:        p.ID,
		Stock:            p.Stock,
		TransactionCount: len(items),
		ChainIntact:      true,
	}
	if len(items) == 0 {
		out.Consistent = true
		return out
	}

	latest := items[0].NewStock
	out.LedgerStock = &latest

	//古い順に見ていく
	for i := len(items) - 1; i > 0; i-- {
		older, newer := items[i], items[i-1]
		if older.NewStock != newer.PreviousStock {
			id := newer.ID
			out.ChainIntact = false
			out.BrokenAt = &id
			break
		}
	}

	out.Consistent = out.ChainIntact && latest == p.Stock
	return out
}

// スナップショットが取れない実装ではそのまま読む
func (u *LedgerQueryUsecase) snapshot(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if sr, ok := u.tx.(repo.SnapshotReader); ok {
		return sr.WithinSnapshot(ctx, fn)
	}
	return fn(directRepos{products: u.products, txs: u.txs})
}

type directRepos struct {
	products repo.ProductRepository
	txs      repo.StockTransactionRepository
}

func (r directRepos) Products() repo.ProductRepository                    { return r.products }
func (r directRepos) StockTransactions() repo.StockTransactionRepository { return r.txs }

func validateFilter(typ *model.StockTransactionType, from, to *time.Time) error {
	if typ != nil && !typ.Valid() {
		return NewError(KindInvalidInput, "invalid type", nil)
	}
	if from != nil && to != nil && from.After(*to) {
		return NewError(KindInvalidInput, "startDate must be before endDate", nil)
	}
	return nil
}
