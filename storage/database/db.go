// Package database opens, bootstraps and migrates the Postgres database of the backend.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/fs"
)

// MigrationsDir is the directory of the migrations within the embedded app FS.
const MigrationsDir = "migrations"

const (
	maxPingAttempts = 30
	pingBackoff     = 100 * time.Millisecond
	maintenanceDB   = "postgres"
)

func init() {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		panic(err)
	}
}

// dsn is the connection URL of dbName, as the admin role when asAdmin and one is configured.
func dsn(conf core.DatabaseConfig, dbName string, asAdmin bool) string {
	user := url.UserPassword(conf.User, conf.Password)
	if asAdmin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}
	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if conf.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func connect(ctx context.Context, conf core.DatabaseConfig, dbName string, asAdmin bool) (*sql.DB, error) {
	db, err := sql.Open(conf.Engine, dsn(conf, dbName, asAdmin))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dbName)
	}
	if err = waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "pinging %s", dbName)
	}
	return db, nil
}

// waitReady pings db until it answers, backing off linearly between attempts.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= maxPingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * pingBackoff):
		}
	}
	return errors.Wrap(err, "database not ready")
}

// Open opens the application database and waits for it to be ready.
func Open(conf *core.Config) (*sql.DB, error) {
	return connect(context.Background(), conf.Database, conf.Database.Name, false)
}

func exists(ctx context.Context, db *sql.DB, query, name string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

// CreateIfNotExist creates the application role (as the admin role) then the application database
// (as the application role), skipping whichever already exists.
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()
	dbConf := conf.Database

	if dbConf.User != "" {
		adminDB, err := connect(ctx, dbConf, maintenanceDB, true)
		if err != nil {
			return err
		}
		defer func() { _ = adminDB.Close() }()

		found, err := exists(ctx, adminDB, "SELECT true FROM pg_roles WHERE rolname = $1", dbConf.User)
		if err != nil {
			return errors.Wrap(err, "checking app role")
		}
		if !found {
			stmt := "CREATE USER " + pq.QuoteIdentifier(dbConf.User) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbConf.Password)
			if _, err = adminDB.ExecContext(ctx, stmt); err != nil {
				return errors.Wrap(err, "creating app role")
			}
		}
	}

	appDB, err := connect(ctx, dbConf, maintenanceDB, false)
	if err != nil {
		return err
	}
	defer func() { _ = appDB.Close() }()

	found, err := exists(ctx, appDB, "SELECT true FROM pg_database WHERE datname = $1", dbConf.Name)
	if err != nil {
		return errors.Wrap(err, "checking database")
	}
	if !found {
		if _, err = appDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbConf.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	return errors.Wrap(goose.UpContext(ctx, db, MigrationsDir), "migrating database")
}
