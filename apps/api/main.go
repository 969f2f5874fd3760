package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	echoapi "github.com/trezcool/examroutine/apps/api/echo"
	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
	logsvc "github.com/trezcool/examroutine/services/logger"
	metricsvc "github.com/trezcool/examroutine/services/metrics"
	"github.com/trezcool/examroutine/storage/catalog"
	"github.com/trezcool/examroutine/storage/database"
	inmemdb "github.com/trezcool/examroutine/storage/database/inmem"
	sqlxrepos "github.com/trezcool/examroutine/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	rollbarLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	rollbarLogger.Enable(!conf.Debug && conf.RollbarToken != "")
	logger := logsvc.Tee{rollbarLogger, logsvc.NewZapLogger(zl)}

	ctx := context.Background()
	health := make(map[string]func(context.Context) bool)

	// set up store & catalog
	var (
		repo exam.Repository
		cat  exam.Catalog
	)
	if conf.Database.Engine == "inmem" {
		repo = inmemdb.NewExamRepository(inmemdb.Open())
		logger.Info("using the in-memory exam store")
	} else {
		db, err := setUpDB(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error("Failed to close database", err)
			}
		}()
		dbx := sqlx.NewDb(db, conf.Database.Engine)
		repo = sqlxrepos.NewExamRepository(dbx)
		cat = sqlxrepos.NewCatalogRepository(dbx)
		health["database"] = func(ctx context.Context) bool { return db.PingContext(ctx) == nil }
	}
	if conf.Exam.CatalogFile != "" {
		if cat, err = catalog.LoadFile(conf.Exam.CatalogFile); err != nil {
			logger.Fatal(fmt.Sprintf("loading catalog: %v", err), err)
		}
	}
	if cat == nil {
		logger.Fatal("no catalog configured: set exam.catalogFile or use a database")
	}
	if conf.Redis.Address != "" {
		client := catalog.NewRedisClient(conf.Redis.Address)
		defer func() { _ = client.Close() }()
		cache := catalog.NewRedisCache(client, cat, conf.Redis.CatalogTTL, logger)
		health["redis"] = cache.Healthy
		cat = cache
	}

	// set up metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metricsvc.NewRecorder(reg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering metrics: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	exam.InitValidators(validate, translator)

	examSvc := exam.NewService(exam.Deps{
		Repo:       repo,
		Catalog:    cat,
		Logger:     logger,
		Metrics:    recorder,
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Translator: translator,
		ExamSvc:    examSvc,
		Gatherer:   reg,
		Health: func(ctx context.Context) map[string]bool {
			status := make(map[string]bool, len(health))
			for name, check := range health {
				status[name] = check(ctx)
			}
			return status
		},
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}
