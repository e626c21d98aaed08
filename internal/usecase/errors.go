package usecase

import (
	"context"
	"errors"
	"fmt"

	repo "ecinventory/internal/repository"
)

// エラーの種類。handlerでHTTPステータスに変換する。
type ErrorKind string

const (
	KindProductNotFound     ErrorKind = "ProductNotFound"
	KindInvalidQuantity     ErrorKind = "InvalidQuantity"
	KindInvalidReason       ErrorKind = "InvalidReason"
	KindInvalidNotes        ErrorKind = "InvalidNotes"
	KindInvalidInput        ErrorKind = "InvalidInput"
	KindInsufficientStock   ErrorKind = "InsufficientStock"
	KindPersistenceFailure  ErrorKind = "PersistenceFailure"
	KindConcurrencyConflict ErrorKind = "ConcurrencyConflict"
)

// errors.Is で種類を比べるための値
var (
	ErrProductNotFound     = &Error{Kind: KindProductNotFound}
	ErrInvalidQuantity     = &Error{Kind: KindInvalidQuantity}
	ErrInvalidReason       = &Error{Kind: KindInvalidReason}
	ErrInvalidNotes        = &Error{Kind: KindInvalidNotes}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrPersistenceFailure  = &Error{Kind: KindPersistenceFailure}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Kindが同じなら一致
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// 再試行してよいか
func (e *Error) Retryable() bool {
	return e.Kind == KindPersistenceFailure || e.Kind == KindConcurrencyConflict
}

func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// repository/DBのエラーを種類付きに変換
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return NewError(KindProductNotFound, "product not found", err)
	case errors.Is(err, repo.ErrConflict):
		return NewError(KindConcurrencyConflict, "concurrent update, retry", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewError(KindPersistenceFailure, "request abandoned before commit", err)
	default:
		return NewError(KindPersistenceFailure, "could not commit stock change", err)
	}
}
