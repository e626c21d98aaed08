package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"ecinventory/internal/domain/model"
	repo "ecinventory/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	internalKeyPrefix = "ledger:"
	publishTimeout    = 5 * time.Second
)

// 再試行の設定
type LedgerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{MaxRetries: 3, RetryBackoff: 20 * time.Millisecond}
}

// 在庫の追加/削除コマンド
type StockCommand struct {
	ProductID      int64  `validate:"gt=0"`
	Quantity       int64  `validate:"gt=0"`
	Reason         string `validate:"required,max=255"`
	Notes          string `validate:"max=1000"`
	PerformedBy    *int64 `validate:"omitempty,gt=0"`
	IdempotencyKey string `validate:"max=255"`
}

// 在庫台帳。products.stock を書くのはここだけ。
type LedgerUsecase struct {
	tx        repo.TransactionManager
	publisher StockEventPublisher
	idGen     IDGenerator
	clock     Clock
	logger    *logrus.Logger
	cfg       LedgerConfig

	validate *validator.Validate
	tracer   trace.Tracer
}

// DI
func NewLedgerUsecase(
	tx repo.TransactionManager,
	publisher StockEventPublisher,
	idGen IDGenerator,
	clock Clock,
	logger *logrus.Logger,
	cfg LedgerConfig,
) *LedgerUsecase {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &LedgerUsecase{
		tx:        tx,
		publisher: publisher,
		idGen:     idGen,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		validate:  validator.New(),
		tracer:    otel.Tracer("ecinventory/usecase/ledger"),
	}
}

func (u *LedgerUsecase) AddStock(ctx context.Context, cmd StockCommand) (model.StockTransaction, error) {
	return u.record(ctx, model.StockTransactionAdd, cmd)
}

func (u *LedgerUsecase) RemoveStock(ctx context.Context, cmd StockCommand) (model.StockTransaction, error) {
	return u.record(ctx, model.StockTransactionRemove, cmd)
}

func (u *LedgerUsecase) record(ctx context.Context, typ model.StockTransactionType, cmd StockCommand) (model.StockTransaction, error) {
	spanName := "ledger.AddStock"
	if typ == model.StockTransactionRemove {
		spanName = "ledger.RemoveStock"
	}
	ctx, span := u.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.Int64("product.id", cmd.ProductID),
		attribute.Int64("stock.quantity", cmd.Quantity),
	))
	defer span.End()

	cmd.Reason = strings.TrimSpace(cmd.Reason)
	cmd.Notes = strings.TrimSpace(cmd.Notes)
	cmd.IdempotencyKey = strings.TrimSpace(cmd.IdempotencyKey)

	if err := u.validateCommand(cmd); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.StockTransaction{}, err
	}

	//COMMITの応答が失われても再試行で二重に書かないよう、キーが無ければ内部で振る
	eventID := u.idGen.NewID()
	ownKey := cmd.IdempotencyKey == ""
	if ownKey {
		cmd.IdempotencyKey = internalKeyPrefix + u.idGen.NewID()
	}

	var (
		stx      model.StockTransaction
		replayed bool
		err      *Error
	)
	for attempt := 1; ; attempt++ {
		stx, replayed, err = u.commit(ctx, typ, cmd)
		if err == nil || !err.Retryable() || attempt >= u.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		u.logger.WithFields(logrus.Fields{
			"product_id": cmd.ProductID,
			"type":       typ,
			"attempt":    attempt,
			"kind":       err.Kind,
		}).Warn("stock change not committed, retrying")

		//少しずつ待つ
		t := time.NewTimer(u.cfg.RetryBackoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Kind))
		return model.StockTransaction{}, err
	}

	//内部キーでの再生は前回の試行が実は成功していたということ
	if replayed && !ownKey {
		span.SetAttributes(attribute.Bool("idempotent.replay", true))
		return stx, nil
	}

	u.logger.WithFields(logrus.Fields{
		"transaction_id": stx.ID,
		"product_id":     stx.ProductID,
		"type":           stx.Type,
		"quantity":       stx.Quantity,
		"previous_stock": stx.PreviousStock,
		"new_stock":      stx.NewStock,
	}).Info("stock transaction committed")

	//コミット済みなので、呼び出し元の切断や通知の失敗では戻さない
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := model.NewStockChanged(eventID, stx)
	if perr := u.publisher.Publish(pctx, ev); perr != nil {
		u.logger.WithFields(logrus.Fields{
			"transaction_id": stx.ID,
			"product_id":     stx.ProductID,
		}).WithError(perr).Error("publish stock changed event")
	}

	return stx, nil
}

// 1回分の原子的な書き込み（ロック→検証→台帳追加→在庫更新）
func (u *LedgerUsecase) commit(ctx context.Context, typ model.StockTransactionType, cmd StockCommand) (model.StockTransaction, bool, *Error) {
	var (
		out      model.StockTransaction
		replayed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().LockByID(ctx, cmd.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewError(KindProductNotFound, "product not found", nil)
		}
		if err != nil {
			return err
		}

		//同じキーは前回の結果を返す
		var key *string
		if cmd.IdempotencyKey != "" {
			existing, found, err := r.StockTransactions().FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				if existing.ProductID != p.ID || existing.Type != typ || existing.Quantity != cmd.Quantity {
					return NewError(KindInvalidInput, "idempotency key already used for a different command", nil)
				}
				out = existing
				replayed = true
				return nil
			}
			k := cmd.IdempotencyKey
			key = &k
		}

		next, err := nextStock(typ, p.Stock, cmd.Quantity)
		if err != nil {
			return err
		}

		created, err := r.StockTransactions().Create(ctx, model.StockTransaction{
			ProductID:      p.ID,
			Type:           typ,
			Quantity:       cmd.Quantity,
			PreviousStock:  p.Stock,
			NewStock:       next,
			Reason:         cmd.Reason,
			Notes:          cmd.Notes,
			PerformedBy:    cmd.PerformedBy,
			IdempotencyKey: key,
			CreatedAt:      u.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}

		if err := r.Products().UpdateStock(ctx, p.ID, next); err != nil {
			return err
		}

		out = created
		return nil
	})
	if err != nil {
		return model.StockTransaction{}, false, classify(err)
	}
	return out, replayed, nil
}

func nextStock(typ model.StockTransactionType, previous int64, qty int64) (int64, error) {
	switch typ {
	case model.StockTransactionAdd:
		if previous > math.MaxInt64-qty {
			return 0, NewError(KindInvalidQuantity, "quantity would overflow stock", nil)
		}
		return previous + qty, nil
	case model.StockTransactionRemove:
		if qty > previous {
			return 0, NewError(KindInsufficientStock, "insufficient stock", nil)
		}
		return previous - qty, nil
	default:
		return 0, NewError(KindInvalidInput, "invalid transaction type", nil)
	}
}

// validatorのエラーを台帳のエラー種類へ
func (u *LedgerUsecase) validateCommand(cmd StockCommand) error {
	err := u.validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewError(KindInvalidInput, "invalid command", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "ProductID":
		return NewError(KindProductNotFound, "product not found", nil)
	case "Quantity":
		return NewError(KindInvalidQuantity, "quantity must be a positive integer", nil)
	case "Reason":
		if fe.Tag() == "max" {
			return NewError(KindInvalidReason, "reason must be at most 255 characters", nil)
		}
		return NewError(KindInvalidReason, "reason is required", nil)
	case "Notes":
		return NewError(KindInvalidNotes, "notes must be at most 1000 characters", nil)
	case "PerformedBy":
		return NewError(KindInvalidInput, "invalid performer", nil)
	default:
		return NewError(KindInvalidInput, "idempotency key too long", nil)
	}
}
