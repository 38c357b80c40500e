package main

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/virtualtutor/storage/database"
)

var gooseRunFunc = goose.RunContext // mockable

// migrator runs goose commands against the embedded migrations.
type migrator struct {
	db *sql.DB
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(context.Background(), args[0], cli.migrator.db, database.MigrationsDir, arguments...)
}
