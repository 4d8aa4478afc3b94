package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(db)
	ctx := context.Background()

	mock.ExpectPing()
	require.NoError(t, checker.Check(ctx))
	assert.True(t, checker.IsHealthy())
	assert.Empty(t, checker.Result().LastError)

	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)
	assert.Error(t, checker.Check(ctx))
	assert.False(t, checker.IsHealthy())
	assert.NotEmpty(t, checker.Result().LastError)

	mock.ExpectPing()
	require.NoError(t, checker.Check(ctx))
	assert.True(t, checker.IsHealthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}
