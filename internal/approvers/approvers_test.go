package approvers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismakit/internal/store"
)

func fixture(t *testing.T) *Directory {
	t.Helper()
	d, err := New([]Approver{
		{ID: "a", FirstName: "Ann", LastName: "Lee", Email: "ann@x.test", Client: "North", BusinessUnit: "Media", Specialty: "Finance", CompanyUserIDs: []string{"1", "2"}},
		{ID: "b", FirstName: "Bob", LastName: "Stone", Email: "bob@x.test", Client: "South", BusinessUnit: "Digital", Specialty: "Buying", CompanyUserIDs: []string{"1"}},
		{ID: "c", FirstName: "Cleo", LastName: "Annand", Email: "cleo@y.test", Client: "North", BusinessUnit: "Investment", CompanyUserIDs: []string{"2", "3"}},
		{ID: "d", FirstName: "Dev", LastName: "Patel", Email: "dev@y.test", Client: "East", BusinessUnit: "Media", Specialty: "Buying", CompanyUserIDs: []string{"1", "2", "3"}},
	})
	require.NoError(t, err)
	return d
}

func ids(list []Approver) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	list := fixture(t).All()

	tests := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"no criteria", Criteria{}, []string{"a", "b", "c", "d"}},
		{"query first name", Criteria{Query: "bob"}, []string{"b"}},
		{"query last name substring", Criteria{Query: "ANN"}, []string{"a", "c"}},
		{"query email", Criteria{Query: "@y.test"}, []string{"c", "d"}},
		{"query blank", Criteria{Query: "   "}, []string{"a", "b", "c", "d"}},
		{"favorites only", Criteria{FavoritesOnly: true, Favorites: map[string]bool{"b": true, "d": true}}, []string{"b", "d"}},
		{"favorites only empty set", Criteria{FavoritesOnly: true}, []string{}},
		{"favorites ignored when off", Criteria{Favorites: map[string]bool{"b": true}}, []string{"a", "b", "c", "d"}},
		{"business unit disjunctive", Criteria{BusinessUnits: []string{"Digital", "Investment"}}, []string{"b", "c"}},
		{"function", Criteria{Functions: []string{"Buying"}}, []string{"b", "d"}},
		{"client", Criteria{Clients: []string{"North", "East"}}, []string{"a", "c", "d"}},
		{"company user ids conjunctive", Criteria{CompanyUserIDs: []string{"1", "2"}}, []string{"a", "d"}},
		{"company user ids single", Criteria{CompanyUserIDs: []string{"3"}}, []string{"c", "d"}},
		{"facets compose with AND", Criteria{BusinessUnits: []string{"Media"}, CompanyUserIDs: []string{"3"}}, []string{"d"}},
		{"query and facet", Criteria{Query: "a", Clients: []string{"North"}}, []string{"a", "c"}},
		{"nothing matches", Criteria{Clients: []string{"West"}}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Filter(list, tc.c))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFacets(t *testing.T) {
	got := Facets(fixture(t).All())
	want := FacetValues{
		BusinessUnits:  []string{"Digital", "Investment", "Media"},
		Functions:      []string{"Buying", "Finance"},
		Clients:        []string{"East", "North", "South"},
		CompanyUserIDs: []string{"1", "2", "3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Facets() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Embedded(t *testing.T) {
	d, err := Load("")
	require.NoError(t, err)
	assert.Greater(t, d.Len(), 0)
	for _, a := range d.All() {
		assert.NotEmpty(t, a.Email, a.ID)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
approvers:
  - id: x1
    first_name: Xena
    last_name: Ray
    email: xena@x.test
    company_user_ids: [CU-9]
`), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	a, ok := d.Get("x1")
	require.True(t, ok)
	assert.Equal(t, "Xena Ray", a.FullName())
	assert.True(t, a.HasCompanyUserID("CU-9"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("approvers:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate approver id")

	_, err = Parse([]byte("approvers:\n  - email: z@x\n"))
	assert.ErrorContains(t, err, "has no id")

	_, err = Parse([]byte("approvers: ["))
	assert.Error(t, err)
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	kv := mem.Scope(store.ScopeSync)

	f, err := LoadFavorites(ctx, kv)
	require.NoError(t, err)
	assert.Empty(t, f.IDs())

	on, err := f.Toggle(ctx, "b")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = f.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"a", "b"}, f.IDs())

	// Persisted on every toggle.
	reloaded, err := LoadFavorites(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reloaded.IDs())

	on, err = f.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, f.Has("a"))

	mem.FailScope(store.ScopeSync, errors.New("offline"))
	on, err = f.Toggle(ctx, "c")
	var serr *store.StorageError
	require.ErrorAs(t, err, &serr)
	assert.False(t, on)
	assert.False(t, f.Has("c"), "failed write leaves the set unchanged")
}

func TestSelection(t *testing.T) {
	d := fixture(t)
	s := NewSelection(d)

	assert.True(t, s.Toggle("d"))
	assert.True(t, s.Toggle("a"))
	assert.False(t, s.Toggle("zzz"), "unknown ids are ignored")
	assert.Equal(t, []string{"a", "d"}, s.IDs())
	assert.Equal(t, []string{"ann@x.test", "dev@y.test"}, s.Emails())

	assert.False(t, s.Toggle("d"))
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Empty(t, s.IDs())
}

func TestSelectionIndependentOfFavorites(t *testing.T) {
	ctx := context.Background()
	d := fixture(t)
	f, err := LoadFavorites(ctx, store.NewMemory().Scope(store.ScopeSync))
	require.NoError(t, err)
	s := NewSelection(d)

	_, err = f.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, s.IDs())

	s.Toggle("b")
	assert.False(t, f.Has("b"))
}
