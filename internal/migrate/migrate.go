// Package migrate brings the schema up to date before the server starts
// taking requests. Migrations are compiled into the binary, so a deploy is
// a single artifact.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pulsegate/pulsegate/migrations"
)

// Up applies any pending migrations from the embedded filesystem. Goose
// tracks applied versions in its own table, so reruns are no-ops.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
