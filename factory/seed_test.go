package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
	"github.com/warp/lending-engine/lending/store"
)

func openLibrary(t *testing.T) (*lending.Engine, *lending.State) {
	t.Helper()
	clock := &lending.FixedClock{}
	clock.Set(lending.MustParseDate("2024-03-01"))
	eng, err := lending.NewEngine(store.NewMemory(), lending.WithClock(clock))
	require.NoError(t, err)
	st, err := eng.Open(context.Background(), identity.Valid)
	require.NoError(t, err)
	return eng, st
}

const seedDoc = `{
  "books": [
    {"key": "foundation", "title": "Foundation", "author": "Isaac Asimov", "publisher": "Gnome Press", "copies": 2}
  ],
  "magazines": [
    {"key": "natgeo", "name": "National Geographic", "publication_date": "2024-03", "publisher": "NGS"}
  ],
  "members": [
    {"national_id": "12345678Z", "name": "Ana García", "phone": "600111222", "address": "Calle Mayor 1"}
  ],
  "casual_users": [
    {"national_id": "X0000000T", "name": "Ben Carter", "phone": "600333444", "address": "Gran Vía 2"}
  ],
  "loans": [{"national_id": "12345678Z", "resource": "foundation"}],
  "consultations": [{"national_id": "X0000000T", "resource": "natgeo"}]
}`

func TestParse(t *testing.T) {
	s, err := factory.Parse([]byte(seedDoc))
	require.NoError(t, err)
	assert.Len(t, s.Books, 1)
	assert.Equal(t, "natgeo", s.Consultations[0].Resource)

	_, err = factory.Parse([]byte(`{"books": {}`))
	assert.Error(t, err)
}

func TestApply_ResolvesKeys(t *testing.T) {
	ctx := context.Background()
	eng, st := openLibrary(t)
	s, err := factory.Parse([]byte(seedDoc))
	require.NoError(t, err)

	res, err := factory.Apply(ctx, eng, st, s)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"foundation": "L0000000001", "natgeo": "R0000000001"}, res.Resources)
	assert.Equal(t, []string{"S0000000001"}, res.Members)
	assert.Equal(t, []string{"X0000000T"}, res.CasualUsers)
	assert.Equal(t, []string{"PREST-0000000001"}, res.Loans)
	assert.Equal(t, []string{"CON-0000000001"}, res.Consultations)
	assert.Empty(t, res.Skipped)
}

func TestApply_TwiceReusesResourcesAndPatrons(t *testing.T) {
	ctx := context.Background()
	eng, st := openLibrary(t)
	sc, ok := factory.FindScenario("foundation")
	require.True(t, ok)
	_, err := factory.Apply(ctx, eng, st, sc.Seed)
	require.NoError(t, err)

	res, err := factory.Apply(ctx, eng, st, sc.Seed)
	require.NoError(t, err)

	assert.Equal(t, "L0000000001", res.Resources["foundation"])
	assert.Empty(t, res.Members)
	assert.ElementsMatch(t, []string{"book L0000000001", "member S0000000001", "member S0000000002"}, res.Skipped)
	assert.Equal(t, 1, st.Catalog.Len())
	assert.Equal(t, 2, st.Registry.Len())
}

func TestApply_ResourceByID(t *testing.T) {
	ctx := context.Background()
	eng, st := openLibrary(t)
	sc, _ := factory.FindScenario("foundation")
	_, err := factory.Apply(ctx, eng, st, sc.Seed)
	require.NoError(t, err)

	res, err := factory.Apply(ctx, eng, st, factory.Seed{
		Loans: []factory.HoldingJSON{{NationalID: "00000001R", Resource: "L0000000001"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"PREST-0000000001"}, res.Loans)
}

func TestApply_StopsAtFirstError(t *testing.T) {
	ctx := context.Background()
	eng, st := openLibrary(t)

	res, err := factory.Apply(ctx, eng, st, factory.Seed{
		Members: []factory.PersonJSON{{NationalID: "12345678Z", Name: "Ana", Phone: "600", Address: "Mayor 1"}},
		Loans: []factory.HoldingJSON{
			{NationalID: "12345678Z", Resource: "missing"},
		},
		Consultations: []factory.HoldingJSON{{NationalID: "12345678Z", Resource: "missing"}},
	})

	assert.True(t, lending.IsNotFound(err))
	assert.Equal(t, []string{"S0000000001"}, res.Members)
	assert.Empty(t, res.Consultations)
}

func TestApply_BadDate(t *testing.T) {
	eng, st := openLibrary(t)

	_, err := factory.Apply(context.Background(), eng, st, factory.Seed{
		Movies: []factory.MovieJSON{{Title: "Dune", PublicationDate: "2021-10", LibraryCopy: true}},
	})

	assert.ErrorIs(t, err, lending.ErrInvalidInput)
}

func TestScenarios_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range factory.Scenarios {
		assert.False(t, seen[s.ID], s.ID)
		seen[s.ID] = true
	}
	_, ok := factory.FindScenario("nope")
	assert.False(t, ok)
}
