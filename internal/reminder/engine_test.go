package reminder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismakit/internal/dom/fakedom"
	"prismakit/internal/store"
)

type engineFixture struct {
	mem    *store.Memory
	repo   *Repository
	engine *Engine
	doc    *fakedom.Document
	now    time.Time
}

// newEngineFixture returns an engine with every built-in disabled so tests
// only see the reminders they save.
func newEngineFixture(t *testing.T, url, body string) *engineFixture {
	t.Helper()
	mem := store.NewMemory()
	repo := NewRepository(mem.Scope(store.ScopeSync))
	disabled := make(map[string]bool)
	for _, r := range BuiltIns(Settings{}) {
		disabled[r.ID] = true
	}
	require.NoError(t, repo.SaveSettings(context.Background(), Settings{Disabled: disabled}))

	f := &engineFixture{
		mem:  mem,
		repo: repo,
		doc:  fakedom.MustParse("<html><body>"+body+"</body></html>", nil),
		now:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.doc.SetURL(url)
	f.engine = NewEngine(repo, mem.Scope(store.ScopeLocal), NewNavigationState())
	f.engine.SetClock(func() time.Time { return f.now })
	return f
}

func (f *engineFixture) save(t *testing.T, r Reminder) Reminder {
	t.Helper()
	saved, err := f.repo.Save(context.Background(), r)
	require.NoError(t, err)
	return saved
}

func TestEngine_ShowsMatchingReminderOncePerNavigation(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, "https://app.example.com/orders", "Submit order")
	r := f.save(t, Reminder{Name: "Orders", URLPattern: "*example.com*", TextTrigger: "submit", Enabled: true, Intro: "Check it"})

	shown, err := f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, shown)

	shown, err = f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Empty(t, shown, "already shown during this navigation")

	f.engine.Navigation().ResetForNavigation()
	shown, err = f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, shown, "no frequency means every navigation")
	assert.Len(t, f.doc.Popups(), 2)
}

func TestEngine_SkipsNonMatching(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, "https://other.test/", "submit")
	f.save(t, Reminder{Name: "Orders", URLPattern: "*example.com*", Enabled: true, Intro: "x"})
	f.save(t, Reminder{Name: "Off", URLPattern: "*other.test*", Enabled: false, Intro: "x"})
	f.save(t, Reminder{Name: "Text", URLPattern: "*other.test*", TextTrigger: "approve", Enabled: true, Intro: "x"})

	shown, err := f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Empty(t, shown)
	assert.Empty(t, f.doc.Popups())
}

func TestEngine_FrequencyDaily(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, "https://app.example.com/", "")
	r := f.save(t, Reminder{Name: "Daily", URLPattern: "*example.com*", Frequency: FrequencyDaily, Enabled: true, Intro: "x"})

	shown, err := f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, shown)

	// New navigation later the same day.
	f.engine.Navigation().ResetForNavigation()
	f.now = f.now.Add(3 * time.Hour)
	shown, err = f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Empty(t, shown)

	f.engine.Navigation().ResetForNavigation()
	f.now = f.now.Add(24 * time.Hour)
	shown, err = f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, shown)
}

func TestEngine_StorageFailureShowsNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("sync scope", func(t *testing.T) {
		f := newEngineFixture(t, "https://app.example.com/", "")
		f.save(t, Reminder{Name: "R", URLPattern: "*example.com*", Enabled: true, Intro: "x"})
		f.mem.FailScope(store.ScopeSync, errors.New("quota exceeded"))

		shown, err := f.engine.Reevaluate(ctx, f.doc)
		require.NoError(t, err)
		assert.Empty(t, shown)
		assert.Empty(t, f.doc.Popups())
	})

	t.Run("local scope", func(t *testing.T) {
		f := newEngineFixture(t, "https://app.example.com/", "")
		f.save(t, Reminder{Name: "R", URLPattern: "*example.com*", Frequency: FrequencyWeekly, Enabled: true, Intro: "x"})
		f.mem.FailScope(store.ScopeLocal, errors.New("disk full"))

		shown, err := f.engine.Reevaluate(ctx, f.doc)
		require.NoError(t, err)
		assert.Empty(t, shown)
		assert.Empty(t, f.doc.Popups())
	})
}

func TestEngine_SanitizesPopupMessage(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t, "https://app.example.com/", "")
	f.save(t, Reminder{
		Name:         "XSS",
		URLPattern:   "*example.com*",
		Enabled:      true,
		PopupMessage: `<h3>Title</h3><p>Body</p><ul><li>One</li></ul><img src=x onerror="alert(1)"><script>alert(2)</script>`,
	})

	_, err := f.engine.Reevaluate(ctx, f.doc)
	require.NoError(t, err)

	popups := f.doc.Popups()
	require.Len(t, popups, 1)
	body := f.doc.HTML()
	assert.NotContains(t, body, "<img")
	assert.NotContains(t, body, "onerror")
	assert.NotContains(t, body, "<script")
	assert.Nil(t, f.doc.Find(".prismakit-popup img"))
	assert.NotNil(t, f.doc.Find(".prismakit-popup h3"))
	assert.NotNil(t, f.doc.Find(".prismakit-popup p"))
	assert.NotNil(t, f.doc.Find(".prismakit-popup ul li"))
}

func TestEngine_BuiltInsFollowSettings(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewRepository(mem.Scope(store.ScopeSync))
	doc := fakedom.MustParse("<html><body>dashboard</body></html>", nil)
	doc.SetURL("https://prisma.mediaocean.com/home")

	e := NewEngine(repo, mem.Scope(store.ScopeLocal), NewNavigationState())
	shown, err := e.Reevaluate(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"builtin-month-end"}, shown)

	require.NoError(t, repo.SaveSettings(ctx, Settings{Disabled: map[string]bool{"builtin-month-end": true}}))
	e.Navigation().ResetForNavigation()
	mem2 := store.NewMemory()
	e = NewEngine(repo, mem2.Scope(store.ScopeLocal), NewNavigationState())
	shown, err = e.Reevaluate(ctx, doc)
	require.NoError(t, err)
	assert.Empty(t, shown)
}

func TestRepository_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewRepository(mem.Scope(store.ScopeSync))

	r, err := repo.Save(ctx, Reminder{Name: "A", URLPattern: "*a*", Title: "T", Bullets: []string{"<b>one</b>"}})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, TriggerAny, r.TriggerLogic)
	assert.Equal(t, "<h3>T</h3><ul><li>&lt;b&gt;one&lt;/b&gt;</li></ul>", r.PopupMessage)

	r.Name = "A2"
	_, err = repo.Save(ctx, r)
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A2", list[0].Name)

	ok, err := repo.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_ListDropsDuplicates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	kv := mem.Scope(store.ScopeSync)
	require.NoError(t, kv.Set(ctx, KeyCustomReminders, []Reminder{
		{ID: "x", Name: "first", URLPattern: "*"},
		{ID: "x", Name: "second", URLPattern: "*"},
		{ID: "y", Name: "third", URLPattern: "*", TriggerLogic: TriggerAll},
	}))

	list, err := NewRepository(kv).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, TriggerAny, list[0].TriggerLogic)
	assert.Equal(t, TriggerAll, list[1].TriggerLogic)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rem     Reminder
		wantErr string
	}{
		{"ok", Reminder{Name: "n", URLPattern: "*x*"}, ""},
		{"missing name", Reminder{URLPattern: "*x*"}, "name is required"},
		{"missing pattern", Reminder{Name: "n"}, "url pattern is required"},
		{"bad logic", Reminder{Name: "n", URLPattern: "*", TriggerLogic: "XOR"}, "unknown trigger logic"},
		{"bad frequency", Reminder{Name: "n", URLPattern: "*", Frequency: "hourly"}, "frequency"},
		{"reserved id", Reminder{ID: "builtin-month-end", Name: "n", URLPattern: "*"}, "reserved"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.rem)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.wantErr), err.Error())
		})
	}
}
