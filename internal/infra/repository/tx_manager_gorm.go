package repository

import (
	"context"
	"database/sql"

	repo "ecinventory/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products          repo.ProductRepository
	stockTransactions repo.StockTransactionRepository
}

func (r *txReposGorm) Products() repo.ProductRepository { return r.products }
func (r *txReposGorm) StockTransactions() repo.StockTransactionRepository {
	return r.stockTransactions
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			products:          NewProductGormRepository(tx),
			stockTransactions: NewStockTransactionGormRepository(tx),
		}
		return fn(r)
	})
	//COMMIT時の直列化失敗などもErrConflictへ
	return translate(err)
}

// REPEATABLE READ の読み取り専用Txで、全文が同じスナップショットを見る
func (tm *TxManagerGorm) WithinSnapshot(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &txReposGorm{
			products:          NewProductGormRepository(tx),
			stockTransactions: NewStockTransactionGormRepository(tx),
		}
		return fn(r)
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return translate(err)
}

var (
	_ repo.TransactionManager = (*TxManagerGorm)(nil)
	_ repo.SnapshotReader     = (*TxManagerGorm)(nil)
)
