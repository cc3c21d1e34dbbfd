package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/dscommerce-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/dscommerce-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/dscommerce-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/dscommerce-backend/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/dscommerce-backend/internal/infrastructure/minio"
	"github.com/DRSN-tech/dscommerce-backend/internal/metrics"
	s3Repo "github.com/DRSN-tech/dscommerce-backend/internal/repository/minio"
	"github.com/DRSN-tech/dscommerce-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/dscommerce-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/dscommerce-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/dscommerce-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/dscommerce-backend/internal/telemetry"
	"github.com/DRSN-tech/dscommerce-backend/internal/usecase"
	"github.com/DRSN-tech/dscommerce-backend/pkg/clients"
	"github.com/DRSN-tech/dscommerce-backend/pkg/closer"
	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"github.com/DRSN-tech/dscommerce-backend/pkg/hasher"
	"github.com/DRSN-tech/dscommerce-backend/pkg/logger"
	"github.com/DRSN-tech/dscommerce-backend/pkg/postgres"
	"github.com/DRSN-tech/dscommerce-backend/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"golang.org/x/crypto/bcrypt"
)

// Version проставляется при сборке через -ldflags.
var Version = "dev"

const (
	shutdownTimeout    = 10 * time.Second
	cleanupWaitTimeout = 5 * time.Second
	healthInterval     = 10 * time.Second
	topicTimeout       = 10 * time.Second
)

// App связывает зависимости и управляет жизненным циклом серверов и фоновых воркеров.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	db          *postgres.PgDatabase
	httpSrv     *v1Http.Server
	grpcSrv     *v1Grpc.GRPCServer
	worker      *kafka.OutboxWorker
	imagesInfra *minioInfra.MinioInfrastructure

	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewApp подключается ко всем внешним системам и собирает граф зависимостей.
// При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, log logger.Logger) (_ *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
	}
	a.bgCtx, a.bgCancel = context.WithCancel(context.Background())
	a.closer.AddFunc("background", a.bgCancel)

	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cErr := a.closer.Close(ctx); cErr != nil {
				log.Warnf("partial init cleanup: %v", cErr)
			}
		}
	}()

	shutdownTracing, err := telemetry.InitTracerProvider(context.Background(), cfg.Telemetry, Version)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("tracing", func(ctx context.Context) error { return shutdownTracing(ctx) })

	a.db, err = initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", a.db.Close)

	trManager, err := tr.NewManager(a.db.Pool)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	productRepo := pgdb.NewProductRepo(a.db.Pool, pgdbConv.NewProductConverterImpl())
	categoryRepo := pgdb.NewCategoryRepo(a.db.Pool, pgdbConv.NewCategoryConverterImpl())
	userRepo := pgdb.NewUserRepo(a.db.Pool, pgdbConv.NewUserConverterImpl())
	orderRepo := pgdb.NewOrderRepo(a.db.Pool, pgdbConv.NewOrderConverterImpl())
	outboxRepo := pgdb.NewOutboxEventRepo(a.db.Pool, pgdbConv.NewOutboxEventConverterImpl())

	redisClient := clients.NewRedisClient(cfg.Redis)
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err = redisClient.Ping(redisCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewProductInfoConverterImpl(), cfg.Redis, log)
	sessionRepo := redis.NewSessionRepo(redisClient)

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer minioCancel()
	if err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.imagesInfra = minioInfra.NewMinioInfrastructure(s3Repo.NewImageRepo(minioClient, cfg.Minio), cfg.Minio, log, a.bgCtx)

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
	if err = producer.EnsureTopic(topicTimeout); err != nil {
		// Топик может создаваться внешним провиженингом, воркер переживёт его временное отсутствие.
		log.Warnf("failed to ensure kafka topic %s: %v", cfg.Kafka.Topic, err)
	}

	a.worker = kafka.NewOutboxWorker(outboxRepo, log, producer, cfg.Outbox, postgres.BuildDSN(cfg.Db))

	m := metrics.New()
	shutdownMeter, err := telemetry.InitMeterProvider(cfg.Telemetry, Version, m.Registry())
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("meter provider", func(ctx context.Context) error { return shutdownMeter(ctx) })

	productUC := usecase.NewProductUC(productRepo, categoryRepo, trManager, a.imagesInfra, cacheRepo, log)
	categoryUC := usecase.NewCategoryUC(categoryRepo)
	userUC := usecase.NewUserUC(userRepo, sessionRepo, hasher.NewBcryptHasher(bcrypt.DefaultCost), cfg.Redis.SessionTTL, log)
	orderUC := usecase.NewOrderUC(
		time.Now,
		productRepo,
		orderRepo,
		outboxRepo,
		userRepo,
		productUC,
		usecase.NewAccessPolicy(),
		trManager,
		kafka.NewProtoEventEncoder(),
		m,
		log,
	)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(v1Http.Deps{
		OrderUC:      orderUC,
		ProductUC:    productUC,
		CategoryUC:   categoryUC,
		UserUC:       userUC,
		Metrics:      m,
		MetricsH:     m.Handler(),
		DB:           a.db,
		MaxImageSize: cfg.Minio.MaxImageSize,
	})
	a.httpSrv = v1Http.NewServer(router.Handler(cfg.Telemetry.ServiceName), cfg.Http)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, log)
	a.grpcSrv.RegisterServices(productUC)

	return a, nil
}

// Run запускает серверы и outbox-воркер и блокируется до сигнала остановки или падения сервера.
func (a *App) Run() error {
	errCh := make(chan error, 2)

	// Closer работает в порядке LIFO: серверы и воркер останавливаются раньше,
	// чем ожидается очистка MinIO и закрываются клиенты.
	a.closer.Add("minio cleanup", func(context.Context) error {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), cleanupWaitTimeout)
		defer waitCancel()
		return a.imagesInfra.WaitForCleanup(waitCtx)
	})

	a.worker.Start(a.bgCtx)
	a.closer.AddFunc("outbox worker", a.worker.Stop)

	go a.grpcSrv.WatchHealth(a.bgCtx, a.db, healthInterval)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- e.Wrap("grpc server", err)
		}
	}()
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- e.Wrap("http server", err)
		}
	}()
	a.closer.Add("http server", a.httpSrv.Stop)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case sig := <-shutdown:
		a.logger.Infof("received %s, stopping gracefully", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown")
		if appErr == nil {
			appErr = err
		}
	}

	a.logger.Infof("application shutdown complete")
	return appErr
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
