// Package appfs embeds the files shipped with the binaries.
package appfs

import "embed"

const (
	MigrationsDir = "migrations"
	TemplatesDir  = "templates"
)

//go:embed migrations/*.sql templates/*
var FS embed.FS
