package db

import (
	"testing"

	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDialect(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendPostgres, config.BackendMySQL} {
		d, err := Dialect(config.Config{StorageBackend: backend, DBPath: ":memory:"})
		assert.NoError(t, err, backend)
		assert.NotNil(t, d, backend)
	}

	_, err := Dialect(config.Config{StorageBackend: config.BackendRedis})
	assert.Error(t, err)
}
