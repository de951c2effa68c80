package playlists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/filters"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/desertthunder/vidx/internal/tasks"
	"github.com/desertthunder/vidx/internal/templates"
	tu "github.com/desertthunder/vidx/internal/testing"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	catalog *tu.Catalog
	owner   *models.User
	other   *models.User
	admin   *models.User
	artist  *models.Artist
	repo    *repositories.VideoRepository
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := tu.OpenDB(t)
	catalog := tu.NewCatalog(t, db)
	opts = append([]Option{WithTemplates(templates.NewLibrary(func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }))}, opts...)
	return &fixture{
		db:      db,
		svc:     NewService(db, tasks.NewEngine(db), opts...),
		catalog: catalog,
		owner:   catalog.User("owner@example.com", false),
		other:   catalog.User("other@example.com", false),
		admin:   catalog.User("admin@example.com", true),
		artist:  catalog.Artist("Prince", "pop", "funk"),
		repo:    repositories.NewVideoRepository(db),
	}
}

func (f *fixture) video(t *testing.T, title string, year int) *models.Video {
	t.Helper()
	return f.catalog.Video(f.artist, models.Video{Title: title, Year: tu.Int(year), Status: models.StatusDownloaded, Duration: tu.Int(200)})
}

func (f *fixture) entryIDs(detail *PlaylistDetail) map[string]struct{} {
	ids := make([]string, len(detail.Entries))
	for i, e := range detail.Entries {
		ids[i] = e.VideoID
	}
	return tu.IDSet(ids...)
}

func nineties() models.Criteria {
	return models.Criteria{YearRange: models.Between(1990, 1999)}
}

func criteria(c models.Criteria) *models.Criteria { return &c }

func everything() *models.Criteria { return &models.Criteria{} }

func TestCreateDynamic(t *testing.T) {
	ctx := context.Background()

	t.Run("PopulatesOnCreate", func(t *testing.T) {
		f := newFixture(t)
		a := f.video(t, "a", 1991)
		b := f.video(t, "b", 1998)
		f.video(t, "c", 1984)

		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "90s", Criteria: criteria(nineties()), AutoUpdate: true})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if !tu.SameSet(f.entryIDs(detail), tu.IDSet(a.ID, b.ID)) {
			t.Errorf("unexpected entries %+v", detail.Entries)
		}
		if detail.Playlist.Stats.EntryCount != 2 || detail.Playlist.Stats.TotalDuration != 400 {
			t.Errorf("unexpected stats %+v", detail.Playlist.Stats)
		}
		if detail.Playlist.LastUpdated == nil || !detail.Playlist.WantsAutoUpdate() {
			t.Errorf("expected reconciled auto-update playlist, got %+v", detail.Playlist)
		}
		if !detail.Playlist.IsOwnedBy(f.owner.ID) {
			t.Error("expected actor to own the playlist")
		}
	})

	t.Run("InvalidCriteriaPersistsNothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "bad", Criteria: criteria(models.Criteria{YearRange: models.Between(2000, 1990)})})
		if !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		list, err := f.svc.List(ctx, f.owner)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected no playlists, got %d", len(list))
		}
	})

	t.Run("RequiresName", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "  ", Criteria: everything()}); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("RequiresCriteria", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "x"})
		if !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if !strings.Contains(err.Error(), "filter_criteria is required") {
			t.Errorf("unexpected message: %v", err)
		}
		if list, _ := f.svc.List(ctx, f.owner); len(list) != 0 {
			t.Errorf("expected nothing persisted, got %d playlists", len(list))
		}
	})

	t.Run("EmptyCriteriaMatchesCatalog", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991)
		f.video(t, "b", 2005)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "all", Criteria: everything()})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if n := len(detail.Entries); n != 2 {
			t.Errorf("expected 2 entries, got %d", n)
		}
	})

	t.Run("RequiresActor", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateDynamic(ctx, nil, CreateDynamicInput{Name: "x", Criteria: everything()}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("FeaturedRequiresAdmin", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "x", Featured: true, Criteria: everything()}); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
		detail, err := f.svc.CreateDynamic(ctx, f.admin, CreateDynamicInput{Name: "x", Featured: true, Criteria: everything()})
		if err != nil {
			t.Fatalf("admin CreateDynamic failed: %v", err)
		}
		if !detail.Playlist.Featured {
			t.Error("expected featured playlist")
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "dup", Criteria: everything()}); err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if _, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "dup", Criteria: everything()}); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	private, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "private", Criteria: everything()})
	if err != nil {
		t.Fatalf("CreateDynamic failed: %v", err)
	}
	public, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "public", Public: true, Criteria: everything()})
	if err != nil {
		t.Fatalf("CreateDynamic failed: %v", err)
	}

	tests := []struct {
		name    string
		actor   *models.User
		id      string
		wantErr error
	}{
		{"OwnerPrivate", f.owner, private.Playlist.ID, nil},
		{"AdminPrivate", f.admin, private.Playlist.ID, nil},
		{"OtherPrivate", f.other, private.Playlist.ID, shared.ErrPermissionDenied},
		{"AnonymousPrivate", nil, private.Playlist.ID, shared.ErrNotAuthenticated},
		{"AnonymousPublic", nil, public.Playlist.ID, nil},
		{"OtherPublic", f.other, public.Playlist.ID, nil},
		{"Missing", f.owner, "missing", shared.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Get(ctx, tt.actor, tt.id)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("PicksUpCatalogChanges", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "90s", Criteria: criteria(nineties())})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}

		result, err := f.svc.Refresh(ctx, f.owner, detail.Playlist.ID)
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if result.ChangesMade {
			t.Error("expected no changes without catalog changes")
		}

		f.video(t, "b", 1995)
		result, err = f.svc.Refresh(ctx, f.admin, detail.Playlist.ID)
		if err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
		if !result.ChangesMade || result.Added != 1 || len(result.Playlist.Entries) != 2 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		f := newFixture(t)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Public: true, Criteria: everything()})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if _, err := f.svc.Refresh(ctx, f.other, detail.Playlist.ID); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("StaticIsNotDynamic", func(t *testing.T) {
		f := newFixture(t)
		detail, err := f.svc.CreateStatic(ctx, f.owner, CreateStaticInput{Name: "mixtape"})
		if err != nil {
			t.Fatalf("CreateStatic failed: %v", err)
		}
		if detail.Playlist.Kind() != models.KindStatic {
			t.Fatalf("expected STATIC, got %s", detail.Playlist.Kind())
		}
		if _, err := f.svc.Refresh(ctx, f.owner, detail.Playlist.ID); !errors.Is(err, shared.ErrNotDynamic) {
			t.Fatalf("expected ErrNotDynamic, got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Refresh(ctx, f.owner, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateCriteria(t *testing.T) {
	ctx := context.Background()

	t.Run("ReReconciles", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991)
		b := f.video(t, "b", 1985)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Criteria: criteria(nineties()), AutoUpdate: true})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}

		off := false
		result, err := f.svc.UpdateCriteria(ctx, f.owner, detail.Playlist.ID, models.Criteria{YearRange: models.Between(1980, 1989)}, &off)
		if err != nil {
			t.Fatalf("UpdateCriteria failed: %v", err)
		}
		if !result.ChangesMade || result.Added != 1 || result.Removed != 1 {
			t.Errorf("unexpected result %+v", result)
		}
		if !tu.SameSet(f.entryIDs(result.Playlist), tu.IDSet(b.ID)) {
			t.Errorf("expected only %s, got %+v", b.ID, result.Playlist.Entries)
		}
		if result.Playlist.Playlist.WantsAutoUpdate() {
			t.Error("expected auto_update to be turned off")
		}
	})

	t.Run("KeepsAutoUpdateWhenOmitted", func(t *testing.T) {
		f := newFixture(t)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", AutoUpdate: true, Criteria: everything()})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		result, err := f.svc.UpdateCriteria(ctx, f.owner, detail.Playlist.ID, nineties(), nil)
		if err != nil {
			t.Fatalf("UpdateCriteria failed: %v", err)
		}
		if !result.Playlist.Playlist.WantsAutoUpdate() {
			t.Error("expected auto_update to be kept")
		}
	})

	t.Run("RepairsMissingCriteria", func(t *testing.T) {
		f := newFixture(t)
		a := f.video(t, "a", 1991)
		f.video(t, "b", 2005)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Criteria: everything()})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if _, err := f.db.Exec(`UPDATE playlists SET filter_criteria = NULL WHERE id = ?`, detail.Playlist.ID); err != nil {
			t.Fatalf("failed to clear criteria: %v", err)
		}

		result, err := f.svc.UpdateCriteria(ctx, f.owner, detail.Playlist.ID, nineties(), nil)
		if err != nil {
			t.Fatalf("UpdateCriteria failed: %v", err)
		}
		if !tu.SameSet(f.entryIDs(result.Playlist), tu.IDSet(a.ID)) {
			t.Errorf("expected only %s, got %+v", a.ID, result.Playlist.Entries)
		}

		got, err := f.svc.Get(ctx, f.owner, detail.Playlist.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		d, ok := got.Playlist.AsDynamic()
		if !ok || d.Criteria.YearRange == nil {
			t.Fatalf("expected criteria to be stored, got %+v", got.Playlist.Membership)
		}
		if d.AutoUpdate {
			t.Error("expected stored auto_update to be kept")
		}
	})

	t.Run("InvalidLeavesPlaylistUntouched", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991)
		detail, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Criteria: criteria(nineties())})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}

		_, err = f.svc.UpdateCriteria(ctx, f.owner, detail.Playlist.ID, models.Criteria{MaxResults: tu.Int(0)}, nil)
		if !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}

		got, err := f.svc.Get(ctx, f.owner, detail.Playlist.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		d, _ := got.Playlist.AsDynamic()
		if d.Criteria.YearRange == nil || len(got.Entries) != 1 {
			t.Errorf("expected criteria and entries untouched, got %+v", got)
		}
	})

	t.Run("PermissionAndKind", func(t *testing.T) {
		f := newFixture(t)
		dyn, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Criteria: everything()})
		if err != nil {
			t.Fatalf("CreateDynamic failed: %v", err)
		}
		if _, err := f.svc.UpdateCriteria(ctx, f.other, dyn.Playlist.ID, nineties(), nil); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}

		static, err := f.svc.CreateStatic(ctx, f.owner, CreateStaticInput{Name: "s"})
		if err != nil {
			t.Fatalf("CreateStatic failed: %v", err)
		}
		if _, err := f.svc.UpdateCriteria(ctx, f.owner, static.Playlist.ID, nineties(), nil); !errors.Is(err, shared.ErrNotDynamic) {
			t.Errorf("expected ErrNotDynamic, got %v", err)
		}
	})
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()

	t.Run("ListTemplates", func(t *testing.T) {
		f := newFixture(t)
		if n := len(f.svc.ListTemplates()); n != 9 {
			t.Errorf("expected 9 templates, got %d", n)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 6; i++ {
			f.video(t, fmt.Sprintf("v%d", i), 1986+i*2)
		}

		detail, err := f.svc.CreateFromTemplate(ctx, f.owner, "the-90s", TemplateOverrides{})
		if err != nil {
			t.Fatalf("CreateFromTemplate failed: %v", err)
		}

		tmpl, _ := f.svc.templates.Lookup("the-90s")
		catalog, err := f.repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := tu.IDSet(filters.VideoIDs(filters.NewEngine(nil).Execute(tmpl.Criteria, catalog))...)
		if len(want) != 4 || !tu.SameSet(f.entryIDs(detail), want) {
			t.Errorf("expected template matches %v, got %+v", want, detail.Entries)
		}
		if detail.Playlist.Name != "The 90s" || detail.Playlist.Public || !detail.Playlist.WantsAutoUpdate() {
			t.Errorf("unexpected defaults on %+v", detail.Playlist)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		f := newFixture(t)
		name, public, auto := "My Rock", true, false
		detail, err := f.svc.CreateFromTemplate(ctx, f.owner, "rock", TemplateOverrides{Name: &name, Public: &public, AutoUpdate: &auto})
		if err != nil {
			t.Fatalf("CreateFromTemplate failed: %v", err)
		}
		p := detail.Playlist
		if p.Name != name || !p.Public || p.WantsAutoUpdate() || p.Description != "Rock music videos" {
			t.Errorf("overrides not applied: %+v", p)
		}
	})

	t.Run("UnknownTemplate", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateFromTemplate(ctx, f.owner, "nope", TemplateOverrides{}); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPreview(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture, n int) {
		for i := 0; i < n; i++ {
			f.catalog.Video(f.artist, models.Video{Title: fmt.Sprintf("Love Song %d", i)})
		}
		f.catalog.Video(f.artist, models.Video{Title: "Something else"})
	}

	t.Run("TotalAndSample", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 10)

		result, err := f.svc.Preview(ctx, models.Criteria{Keywords: []string{"love"}}, 2)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if result.TotalMatches != 10 || len(result.Sample) != 2 {
			t.Errorf("expected 10 matches and 2 samples, got %d/%d", result.TotalMatches, len(result.Sample))
		}
		if result.Sample[0].Title != "Love Song 9" {
			t.Errorf("expected newest first, got %q", result.Sample[0].Title)
		}
	})

	t.Run("LimitClamping", func(t *testing.T) {
		f := newFixture(t, WithSettings(shared.PlaylistsConfig{PreviewLimit: 3, PreviewMaxLimit: 5}))
		seed(t, f, 10)

		result, err := f.svc.Preview(ctx, models.Criteria{}, 0)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if len(result.Sample) != 3 || result.TotalMatches != 11 {
			t.Errorf("expected default limit 3 of 11, got %d of %d", len(result.Sample), result.TotalMatches)
		}

		result, err = f.svc.Preview(ctx, models.Criteria{}, 50)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if len(result.Sample) != 5 {
			t.Errorf("expected clamp to 5, got %d", len(result.Sample))
		}
	})

	t.Run("EvaluationCap", func(t *testing.T) {
		f := newFixture(t, WithSettings(shared.PlaylistsConfig{DefaultMaxResults: 4}))
		seed(t, f, 10)

		result, err := f.svc.Preview(ctx, models.Criteria{MaxResults: tu.Int(100)}, 10)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if result.TotalMatches != 11 {
			t.Errorf("expected the uncapped total of 11, got %d", result.TotalMatches)
		}
		if len(result.Sample) != 4 {
			t.Errorf("expected sample capped at 4, got %d", len(result.Sample))
		}
	})

	t.Run("TotalIgnoresMaxResults", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 10)

		result, err := f.svc.Preview(ctx, models.Criteria{Keywords: []string{"love"}, MaxResults: tu.Int(3)}, 10)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if result.TotalMatches != 10 || len(result.Sample) != 3 {
			t.Errorf("expected 10 matches and 3 samples, got %d/%d", result.TotalMatches, len(result.Sample))
		}
	})

	t.Run("NeverPersists", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f, 3)
		if _, err := f.svc.Preview(ctx, models.Criteria{}, 10); err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		list, err := f.svc.List(ctx, f.owner)
		if err != nil || len(list) != 0 {
			t.Errorf("expected no playlists, got %d (%v)", len(list), err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Preview(ctx, models.Criteria{DurationRange: models.AtLeast(-1)}, 1); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestUpdateAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.video(t, "a", 1991)

	if _, err := f.svc.CreateDynamic(ctx, f.owner, CreateDynamicInput{Name: "p", Criteria: criteria(nineties()), AutoUpdate: true}); err != nil {
		t.Fatalf("CreateDynamic failed: %v", err)
	}

	if _, err := f.svc.UpdateAll(ctx, f.owner, time.Hour, nil); !errors.Is(err, shared.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := f.svc.UpdateAll(ctx, nil, time.Hour, nil); !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := f.svc.UpdateAll(ctx, f.admin, -time.Hour, nil); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	summary, err := f.svc.UpdateAll(ctx, f.admin, 0, nil)
	if err != nil {
		t.Fatalf("UpdateAll failed: %v", err)
	}
	if summary.Checked != 1 || summary.Updated != 1 || summary.Changed != 0 || summary.Errors != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}
