package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "persist.db")

	st, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "docs/1", testDoc{Name: "alpha", Count: 2}))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close()

	var got testDoc
	ok, err := st.Get(ctx, "docs/1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha", got.Name)
	require.Equal(t, 2, got.Count)
}

func TestSQLiteVersionsAdvance(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "versions.db"))
	require.NoError(t, err)
	defer st.Close()

	sub, err := st.Subscribe(ctx, "docs/1")
	require.NoError(t, err)
	defer sub.Close()
	recvSnapshot(t, sub) // initial, absent

	require.NoError(t, st.Set(ctx, "docs/1", testDoc{Count: 1}))
	first := recvSnapshot(t, sub)
	require.NoError(t, st.Set(ctx, "docs/1", testDoc{Count: 2}))
	second := recvSnapshot(t, sub)

	require.True(t, second.Version > first.Version, "versions must be monotonic: %d then %d", first.Version, second.Version)
}

func TestIsBusy(t *testing.T) {
	require.False(t, isBusy(nil))
	require.False(t, isBusy(context.Canceled))
	require.True(t, isBusy(errorString("SQLITE_BUSY (5): database table is locked")))
	require.True(t, isBusy(errorString("database is locked")))
}

type errorString string

func (e errorString) Error() string { return string(e) }
