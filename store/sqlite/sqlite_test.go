package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
	"github.com/warp/lending-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// library drives an engine over s and adds n books, one revision each.
func library(t *testing.T, s *sqlite.Store, n int) (*lending.Engine, *lending.State) {
	t.Helper()
	ctx := context.Background()
	clock := &lending.FixedClock{}
	clock.Set(lending.MustParseDate("2024-03-01"))
	eng, err := lending.NewEngine(s, lending.WithClock(clock))
	require.NoError(t, err)
	st, err := eng.Open(ctx, identity.Valid)
	require.NoError(t, err)

	titles := []string{"Foundation", "Dune", "Solaris", "Ubik", "Neuromancer"}
	for i := 0; i < n; i++ {
		clock.Advance(1)
		_, err := eng.AddBook(ctx, st, lending.BookInput{
			Title: titles[i%len(titles)], Author: "Author", Publisher: "Publisher " + titles[i%len(titles)], Copies: 1,
		})
		require.NoError(t, err)
	}
	return eng, st
}

// =============================================================================
// GATEWAY TESTS
// =============================================================================

func TestLoad_Empty(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Load(context.Background())

	assert.ErrorIs(t, err, lending.ErrSnapshotNotFound)
}

func TestSave_AppendsRevisions(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	// GIVEN: three mutations
	_, st := library(t, s, 3)

	// THEN: three revisions, newest first, and Load returns the newest
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hist, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, 3, hist[0].Resources)
	assert.Equal(t, 1, hist[2].Resources)
	assert.True(t, hist[0].Seq > hist[1].Seq)
	assert.True(t, hist[0].TakenAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
	assert.NotEmpty(t, hist[0].Revision)
	assert.Positive(t, hist[0].Bytes)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Books, 3)
	assert.Equal(t, st.Snapshot().Books, snap.Books)
}

func TestHistory_Limit(t *testing.T) {
	s := setupTestStore(t)
	library(t, s, 4)

	hist, err := s.History(context.Background(), 2)

	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestLoadRevision(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	library(t, s, 3)
	hist, err := s.History(ctx, 0)
	require.NoError(t, err)

	oldest, err := s.LoadRevision(ctx, hist[2].Revision)
	require.NoError(t, err)
	assert.Len(t, oldest.Books, 1)

	_, err = s.LoadRevision(ctx, "no-such-revision")
	assert.ErrorIs(t, err, lending.ErrSnapshotNotFound)
}

func TestReopen_ContinuesFromLatest(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	library(t, s, 2)

	eng, err := lending.NewEngine(s)
	require.NoError(t, err)
	st, err := eng.Open(ctx, identity.Valid)
	require.NoError(t, err)
	b, err := eng.AddBook(ctx, st, lending.BookInput{Title: "Ubik", Author: "Philip K. Dick", Publisher: "Doubleday", Copies: 1})
	require.NoError(t, err)

	assert.Equal(t, "L0000000003", b.ID())
}

// =============================================================================
// PRUNE & JANITOR TESTS
// =============================================================================

func TestPrune_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	library(t, s, 5)

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Books, 5)

	// keep below one still keeps the latest
	removed, err = s.Prune(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJanitor_RunOnce(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	library(t, s, 4)
	j := sqlite.NewJanitor(s, 3)

	assert.EqualValues(t, 1, j.RunOnce(ctx))
	assert.EqualValues(t, 0, j.RunOnce(ctx))
}

func TestJanitor_StartStop(t *testing.T) {
	s := setupTestStore(t)
	library(t, s, 3)
	j := sqlite.NewJanitor(s, 1)
	j.Interval = time.Millisecond

	j.Start()
	j.Start()
	require.Eventually(t, func() bool {
		n, err := s.Count(context.Background())
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
	j.Stop()
	j.Stop()
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	library(t, s, 2)

	require.NoError(t, s.Reset(ctx))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, lending.ErrSnapshotNotFound)
}
