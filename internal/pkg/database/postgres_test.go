package database_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/pkg/database"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("qualquer")))

	// lib/pq
	assert.True(t, database.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23503"}))

	// pgx, inclusive embrulhado
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, database.IsUniqueViolation(wrapped))
	assert.False(t, database.IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
}

func TestNewPostgresDB_UnknownDriver(t *testing.T) {
	db, err := database.NewPostgresDB("mysql", "dsn")
	require.Error(t, err)
	assert.Nil(t, db)
}
