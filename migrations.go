// Package parley holds assets embedded into the service binary.
package parley

import "embed"

//go:embed migrations/*.sql
var MigrationsFS embed.FS
