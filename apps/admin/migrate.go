package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/storage/catalog"
	"github.com/trezcool/examroutine/storage/database"
	sqlxrepos "github.com/trezcool/examroutine/storage/database/sqlx"
)

var (
	gooseRunFunc     = database.RunMigrations // mockable
	importSchoolFunc = importSchool           // mockable

	errNoDatabase = errors.New("this command needs a database (database.engine is inmem)")
)

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(ctx, cli.db.DB, args[0], args[1:]...)
}

// catalogCache is a shared catalog cache the API reads through.
type catalogCache interface {
	Invalidate(ctx context.Context, schoolID string) error
}

// importCatalog loads every school of a catalog file into the database, teacher assignments included,
// then drops the cached catalog of each imported school.
func (cli *commandLine) importCatalog(ctx context.Context, path string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	fc, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	for _, schoolID := range fc.SchoolIDs() {
		if err = importSchoolFunc(ctx, cli.db, schoolID, fc); err != nil {
			return err
		}
		if cli.cache != nil {
			if err = cli.cache.Invalidate(ctx, schoolID); err != nil {
				return errors.Wrapf(err, "invalidating the cached catalog of school %s", schoolID)
			}
		}
		cli.printf("imported school %s (%d teachers)\n", schoolID, len(fc.Teachers(schoolID)))
	}
	return nil
}

func importSchool(ctx context.Context, db *sqlx.DB, schoolID string, fc *catalog.FileCatalog) error {
	if err := sqlxrepos.ImportCatalog(ctx, db, schoolID, fc); err != nil {
		return err
	}
	for teacherID, classNames := range fc.Teachers(schoolID) {
		if err := sqlxrepos.AssignTeacherClasses(ctx, db, schoolID, teacherID, classNames); err != nil {
			return err
		}
	}
	return nil
}
