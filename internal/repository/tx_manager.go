package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Products() ProductRepository
	StockTransactions() StockTransactionRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返すか、ctxが切れたら何も残らない。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

// 集計など複数の読み取りを同じ時点で見るための読み取り専用Tx。
// fn内での書き込みは反映されない。
type SnapshotReader interface {
	WithinSnapshot(ctx context.Context, fn func(r TxRepos) error) error
}
