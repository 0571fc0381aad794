package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	s, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestInit_RunsMigrations(t *testing.T) {
	s := setupTestDB(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, s1.Init(ctx))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNilStore(t *testing.T) {
	var s *Store
	ctx := context.Background()
	assert.ErrorIs(t, s.Init(ctx), errDBNotInitialized)
	_, err := s.ListRuns(ctx, 1)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.GetRun(ctx, "x")
	assert.ErrorIs(t, err, errDBNotInitialized)
	assert.ErrorIs(t, s.SaveRun(ctx, &Run{ID: "x"}, nil), errDBNotInitialized)
	assert.NoError(t, s.Close())
}

func TestResolve(t *testing.T) {
	driver, source, err := resolve("postgres://u:p@localhost:5432/db?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, driverPostgres, driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", source)

	driver, _, err = resolve("postgresql://localhost/db")
	require.NoError(t, err)
	assert.Equal(t, driverPostgres, driver)

	driver, source, err = resolve(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.Equal(t, driverSQLite, driver)
	assert.Contains(t, source, "file:")
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: driverPostgres}
	lite := &Store{driver: driverSQLite}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, pg.rebind(tt.input))
		assert.Equal(t, tt.input, lite.rebind(tt.input))
	}
}
