// Package appfs embeds the files the binaries need at runtime:
// SQL migrations, email templates, the game catalog and the common passwords list.
package appfs

import "embed"

//go:embed migrations/*.sql assets assets/templates/email/_*
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	CatalogPath       = "assets/catalog.yaml"
	CommonPasswords   = "assets/common-passwords.txt.gz"
)
