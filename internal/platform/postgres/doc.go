// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver: suggestions, activities, the read-only activity
// history, and the user directory and activity type catalog. It also embeds
// the schema migrations applied with goose.
package postgres
