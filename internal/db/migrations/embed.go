// Package migrations embeds the goose SQL migration set for the
// rendezvous store's schema (spec §6 "Persisted store layout").
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
