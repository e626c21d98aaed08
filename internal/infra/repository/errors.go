package repository

import (
	"errors"

	repo "ecinventory/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// 再試行できるPostgresのSQLSTATE
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation
}

// DBエラーをrepositoryのエラーに寄せる。該当しなければそのまま返す。
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.Wrap(repo.ErrConflict, err.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictCodes[pgErr.Code] {
		return pkgerrors.Wrapf(repo.ErrConflict, "%s (%s)", pgErr.Message, pgErr.Code)
	}
	return err
}

// 操作名を付けて返す
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	t := translate(err)
	if errors.Is(t, repo.ErrNotFound) {
		return repo.ErrNotFound
	}
	return pkgerrors.Wrap(t, op)
}
