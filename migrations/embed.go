// Package migrations embeds SQL migration files into the binary.
//
// This allows Karen to run migrations without needing the SQL files on the
// filesystem - they're compiled into the executable.
package migrations

import (
	"embed"

	"github.com/mattlunn/karen-sub001/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	// Register embedded migrations with the database package.
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // files are at root of embedded FS
}
