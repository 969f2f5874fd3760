package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
	logsvc "github.com/trezcool/examroutine/services/logger"
	"github.com/trezcool/examroutine/storage/catalog"
	"github.com/trezcool/examroutine/storage/database"
	inmemdb "github.com/trezcool/examroutine/storage/database/inmem"
	sqlxrepos "github.com/trezcool/examroutine/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	logger = logsvc.NewZapLogger(zl.Named("admin"))

	cli := commandLine{out: os.Stdout}
	var (
		repo exam.Repository
		cat  exam.Catalog
	)
	if conf.Database.Engine == "inmem" {
		repo = inmemdb.NewExamRepository(inmemdb.Open())
	} else {
		ctx := context.Background()
		db, err := database.Open(conf)
		errAndDie(err)
		defer func() { _ = db.Close() }()
		errAndDie(database.Ping(ctx, db))

		cli.db = sqlx.NewDb(db, conf.Database.Engine)
		repo = sqlxrepos.NewExamRepository(cli.db)
		cat = sqlxrepos.NewCatalogRepository(cli.db)
	}
	if conf.Exam.CatalogFile != "" {
		cat, err = catalog.LoadFile(conf.Exam.CatalogFile)
		errAndDie(err)
	}
	if cat == nil {
		cat, _ = catalog.Parse(nil)
	}
	if conf.Redis.Address != "" {
		client := catalog.NewRedisClient(conf.Redis.Address)
		defer func() { _ = client.Close() }()
		cache := catalog.NewRedisCache(client, cat, conf.Redis.CatalogTTL, logger)
		cli.cache = cache
		cat = cache
	}

	validate := validator.New()
	translator := core.NewTranslator()
	exam.InitValidators(validate, translator)
	cli.svc = exam.NewService(exam.Deps{
		Repo:       repo,
		Catalog:    cat,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Conf:       conf,
	})

	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		_ = zl.Sync()
		os.Exit(1)
	}
	_ = zl.Sync()
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
