// Package database holds the typed queries generated by sqlc from
// sql/queries against the goose migrations in sql/schema.
package database

//go:generate sqlc generate -f ../../sqlc.yaml
