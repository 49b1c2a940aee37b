package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: "5432", User: "omnipos", Password: "secret", DBName: "orders", SSLMode: "disable"}
	assert.Equal(t, "postgres://omnipos:secret@db:5432/orders?sslmode=disable", cfg.DSN())
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}
