package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCopyFrom(t *testing.T) {
	mock := newMockPool(t)

	cols := []string{"external_id", "name", "city"}
	mock.ExpectCopyFrom(pgx.Identifier{"leads"}, cols).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "leads", cols, [][]any{
		{"ID1", "Acme Cafe", "London"},
		{"ID2", "Beta Bar", "London"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := CopyFrom(context.Background(), mock, "leads", []string{"external_id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
