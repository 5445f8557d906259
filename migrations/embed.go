// Package migrations embeds SQL migration files into the binary so
// schema upgrades run without SQL files on the deployment filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/iotbridge-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
