package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"ecinventory/internal/config"
	"ecinventory/internal/domain/model"
	"ecinventory/internal/handler"
	"ecinventory/internal/infra/db"
	"ecinventory/internal/infra/events"
	"ecinventory/internal/infra/logger"
	"ecinventory/internal/infra/memory"
	"ecinventory/internal/infra/redisdb"
	infraRepo "ecinventory/internal/infra/repository"
	repo "ecinventory/internal/repository"
	"ecinventory/internal/server"
	"ecinventory/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

// ローカル確認用のトークン発行
type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func (i *jwtIssuer) Issue(userID int64, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// 起動に必要なものをまとめたもの
type app struct {
	cfg    config.Config
	logger *logrus.Logger

	tx       repo.TransactionManager
	products repo.ProductRepository
	txs      repo.StockTransactionRepository
	rdb      *redis.Client

	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProd(), os.Stdout)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logg}

	//ストア
	switch cfg.Store {
	case config.StoreMemory:
		store := memory.NewStore()
		a.tx = store
		a.products = store.Products()
		a.txs = store.StockTransactions()
		logg.Warn("using in-memory store, data is lost on exit")
	default:
		gormDB, err := db.Connect(cfg, logg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			a.closers = append(a.closers, func() { _ = sqlDB.Close() })
		}
		if err := db.Migrate(gormDB); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.tx = infraRepo.NewTxManagerGorm(gormDB)
		a.products = infraRepo.NewProductGormRepository(gormDB)
		a.txs = infraRepo.NewStockTransactionGormRepository(gormDB)
	}

	//Redisは任意
	if cfg.RedisAddr != "" {
		rdb, err := redisdb.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 5, logg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.rdb = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	return a, nil
}

func (a *app) alertUsecase() *usecase.StockAlertUsecase {
	notifiers := events.NotifierFanout{events.NewLogNotifier(a.logger)}
	var locker usecase.Locker
	if a.rdb != nil {
		notifiers = append(notifiers, events.NewRedisPublisher(a.rdb))
		locker = redisdb.NewLocker(a.rdb)
	}
	return usecase.NewStockAlertUsecase(a.products, notifiers, locker, a.cfg.AlertDefaultThreshold, a.logger)
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.String("env-file"))
	if err != nil {
		return err
	}
	defer a.close()

	//イベント配信（プロセス内＋Redis）
	bus := events.NewBus(256, a.logger)
	publishers := events.Fanout{bus}
	if a.rdb != nil {
		publishers = append(publishers, events.NewRedisPublisher(a.rdb))
	}

	ledgerUC := usecase.NewLedgerUsecase(a.tx, publishers, &uuidGenerator{}, usecase.SystemClock, a.logger, usecase.LedgerConfig{
		MaxRetries:   a.cfg.LedgerMaxRetries,
		RetryBackoff: a.cfg.LedgerRetryBackoff,
	})
	queryUC := usecase.NewLedgerQueryUsecase(a.tx, a.products, a.txs)
	alertUC := a.alertUsecase()
	productUC := usecase.NewProductUsecase(a.products)

	//アラート評価を裏で回す
	evCh, unsubscribe := bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := alertUC.Run(ctx, a.cfg.AlertInterval, evCh); err != nil {
			logger.LogError(a.logger, "stock_alert", "Run", "evaluator stopped", nil, err)
		}
	}()

	e := server.New(server.Handlers{
		Inventory:    handler.NewInventoryHandler(ledgerUC, queryUC, alertUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	}, a.cfg.JWTSecret, a.logger)

	err = server.Start(ctx, e, a.cfg.Addr(), a.logger)
	if err != nil {
		logger.LogError(a.logger, "server", "Start", "http server stopped", map[string]string{"addr": a.cfg.Addr()}, err)
	}

	stop()
	unsubscribe()
	bus.Close()
	wg.Wait()
	a.logger.Info("stopped")
	return err
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}
	logg, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.IsProd(), os.Stdout)
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate needs STORE=%s", config.StorePostgres)
	}

	gormDB, err := db.Connect(cfg, logg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	logg.Info("migrated")
	return nil
}

// 1回だけ評価して標準出力へ
func alerts(c *cli.Context) error {
	a, err := newApp(c.Context, c.String("env-file"))
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.alertUsecase().Evaluate(c.Context)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.StockAlert{}
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

func token(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}

	issuer := &jwtIssuer{secret: []byte(cfg.JWTSecret), accessTTL: c.Duration("ttl")}
	signed, expiresAt, err := issuer.Issue(c.Int64("user"), c.String("role"), time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s\n# expires %s\n", signed, expiresAt.UTC().Format(time.RFC3339))
	return err
}

func main() {
	cliApp := &cli.App{
		Name:  "ecinventory",
		Usage: "inventory stock ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file (ignored when missing)"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "start the HTTP API", Action: serve},
			{Name: "migrate", Usage: "create or update tables", Action: migrate},
			{Name: "alerts", Usage: "print current low stock alerts", Action: alerts},
			{
				Name:  "token",
				Usage: "issue a JWT for local testing",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Value: 1},
					&cli.StringFlag{Name: "role", Value: "ADMIN"},
					&cli.DurationFlag{Name: "ttl", Value: 15 * time.Minute},
				},
				Action: token,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ecinventory")
	}
}
