package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"app:s3cret@tcp(db.internal:3306)/hostels?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("app", "s3cret", "db.internal", "3306", "hostels"))

	// An empty password drops the colon entirely.
	assert.Equal(t,
		"root@tcp(localhost:3306)/hostels?charset=utf8mb4&parseTime=true&loc=UTC",
		DSN("root", "", "localhost", "3306", "hostels"))
}
