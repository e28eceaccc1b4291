package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exam-simulator/internal/app"
	"exam-simulator/internal/domain"
)

func openStore(t *testing.T, limit int) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "exam.db"), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSessionKeys(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, 0)

	_, ok, err := st.Get(ctx, "s1", app.KeyExamData)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Set(ctx, "s1", app.KeyExamData, []byte(`{"timeLimit":60}`)))
	require.NoError(t, st.Set(ctx, "s1", app.KeyExamData, []byte(`{"timeLimit":90}`)))
	value, ok, err := st.Get(ctx, "s1", app.KeyExamData)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"timeLimit":90}`, string(value))

	ids, err := st.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, st.Delete(ctx, "s1", app.SessionKeys...))
	_, ok, err = st.Get(ctx, "s1", app.KeyExamData)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryPrunesOldest(t *testing.T) {
	ctx := context.Background()
	st := openStore(t, 2)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.Append(ctx, domain.HistoryRecord{
			SessionID:  "s",
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
			Correct:    i,
			Total:      3,
			Passed:     i == 3,
		}))
	}
	recs, err := st.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].Correct)
	assert.True(t, recs[0].Passed)
	assert.Equal(t, 2, recs[1].Correct)
	assert.True(t, recs[0].FinishedAt.Equal(base.Add(3*time.Minute)))

	recs, err = st.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
