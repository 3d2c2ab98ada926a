package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/postgres"
)

func TestMigrationNames(t *testing.T) {
	names, err := postgres.MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.Contains(t, names, "002_versions_and_idempotency.sql")
	assert.IsIncreasing(t, names)
}
