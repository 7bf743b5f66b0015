// Package apexinspect holds assets embedded into the binaries.
package apexinspect

import "embed"

// MigrationsFS contains the versioned SQL schema applied at startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
