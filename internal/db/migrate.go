package db

import (
	"context"
	"database/sql"

	"github.com/rfsouza01/contacthub/internal/db/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate runs the embedded schema migrations. goose wants a database/sql
// handle, so a short-lived stdlib connection is opened next to the pgx pool.
func Migrate(ctx context.Context, dbURL string) error {
	conn, err := sql.Open("pgx", dbURL)

	if err != nil {
		return err
	}

	defer conn.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, conn, ".")
}
