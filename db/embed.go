// Package db provides the embedded schema and seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Menu is the default catalog loaded by seed-db.
//
//go:embed seed/menu.json
var Menu []byte
