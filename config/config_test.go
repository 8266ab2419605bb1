package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func postgresSection() Postgres {
	return Postgres{
		Host:         "localhost",
		Port:         5432,
		DbName:       "portfolio",
		User:         "portfolio",
		MigrationDir: "./migrations",
	}
}

func TestValidateFlatfileWithoutPostgresOrRedis(t *testing.T) {
	cfg := &Config{
		Storage: Storage{Backend: "flatfile"},
		Redis:   Redis{Enabled: false},
	}

	assert.NoError(t, cfg.validate())
}

func TestValidatePostgresBackendRequiresConnSettings(t *testing.T) {
	cfg := &Config{
		Storage: Storage{Backend: "postgres"},
		Redis:   Redis{Enabled: false},
	}

	err := cfg.validate()

	assert.ErrorContains(t, err, "PG_HOST")
}

func TestValidatePostgresBackendRequiresMigrationDir(t *testing.T) {
	pg := postgresSection()
	pg.MigrationDir = ""
	cfg := &Config{
		Storage:  Storage{Backend: "postgres"},
		Postgres: pg,
		Redis:    Redis{Enabled: false},
	}

	err := cfg.validate()

	assert.ErrorContains(t, err, "PG_MIGRATION_DIR")
}

func TestValidateRedisEnabledRequiresHost(t *testing.T) {
	cfg := &Config{
		Storage: Storage{Backend: "flatfile"},
		Redis:   Redis{Enabled: true},
	}

	err := cfg.validate()

	assert.ErrorContains(t, err, "REDIS_HOST")
}

func TestValidatePostgresWithRedis(t *testing.T) {
	cfg := &Config{
		Storage:  Storage{Backend: "postgres"},
		Postgres: postgresSection(),
		Redis:    Redis{Enabled: true, Host: "localhost", Port: 6379},
	}

	assert.NoError(t, cfg.validate())
}
