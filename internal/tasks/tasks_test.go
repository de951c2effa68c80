package tasks

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vidx/internal/filters"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/repositories"
	"github.com/desertthunder/vidx/internal/shared"
	tu "github.com/desertthunder/vidx/internal/testing"
)

type fixture struct {
	db      *sql.DB
	catalog *tu.Catalog
	owner   *models.User
	artist  *models.Artist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := tu.OpenDB(t)
	catalog := tu.NewCatalog(t, db)
	return &fixture{
		db:      db,
		catalog: catalog,
		owner:   catalog.User("owner@example.com", false),
		artist:  catalog.Artist("Nirvana", "rock"),
	}
}

func (f *fixture) video(t *testing.T, title string, year int, status models.VideoStatus, duration int) *models.Video {
	t.Helper()
	return f.catalog.Video(f.artist, models.Video{Title: title, Year: tu.Int(year), Status: status, Duration: tu.Int(duration)})
}

func (f *fixture) dynamic(t *testing.T, name string, criteria models.Criteria, autoUpdate bool) *models.Playlist {
	t.Helper()
	p := models.NewDynamicPlaylist(f.owner.ID, name, "", false, criteria, autoUpdate)
	if err := repositories.NewPlaylistRepository(f.db).Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}
	return p
}

func (f *fixture) entries(t *testing.T, playlistID string) []models.PlaylistEntry {
	t.Helper()
	entries, err := repositories.NewEntryRepository(f.db).List(context.Background(), playlistID)
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	return entries
}

func nineties() models.Criteria {
	return models.Criteria{YearRange: models.Between(1990, 1999), Status: []string{"DOWNLOADED"}}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("PopulatesMatchingVideosNewestFirst", func(t *testing.T) {
		f := newFixture(t)
		a := f.video(t, "a", 1991, models.StatusDownloaded, 200)
		f.video(t, "b", 1985, models.StatusDownloaded, 200)
		c := f.video(t, "c", 1995, models.StatusDownloaded, 300)
		f.video(t, "d", 1997, models.StatusWanted, 200)
		e := f.video(t, "e", 1999, models.StatusDownloaded, 100)

		p := f.dynamic(t, "90s", nineties(), true)
		engine := NewEngine(f.db)

		result, err := engine.Reconcile(ctx, p.ID)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if !result.ChangesMade || result.Added != 3 || result.Removed != 0 {
			t.Errorf("unexpected result %+v", result)
		}

		entries := f.entries(t, p.ID)
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		want := []string{e.ID, c.ID, a.ID}
		for i, entry := range entries {
			if entry.VideoID != want[i] {
				t.Errorf("position %d: expected %s, got %s", i+1, want[i], entry.VideoID)
			}
			if entry.Position != i+1 {
				t.Errorf("expected position %d, got %d", i+1, entry.Position)
			}
			if entry.AddedBy != f.owner.ID {
				t.Errorf("expected added_by owner, got %q", entry.AddedBy)
			}
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991, models.StatusDownloaded, 200)
		f.video(t, "b", 1993, models.StatusDownloaded, 200)
		p := f.dynamic(t, "90s", nineties(), true)
		engine := NewEngine(f.db)

		if _, err := engine.Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		before := f.entries(t, p.ID)

		result, err := engine.Reconcile(ctx, p.ID)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if result.ChangesMade {
			t.Errorf("expected no changes on second run, got %+v", result)
		}

		after := f.entries(t, p.ID)
		if len(before) != len(after) {
			t.Fatalf("entry count changed from %d to %d", len(before), len(after))
		}
		for i := range before {
			if before[i].ID != after[i].ID || before[i].Position != after[i].Position {
				t.Errorf("entry %d changed: %+v -> %+v", i, before[i], after[i])
			}
		}
	})

	t.Run("EntrySetEqualsEngineOutput", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 8; i++ {
			status := models.StatusDownloaded
			if i%3 == 0 {
				status = models.StatusFailed
			}
			f.video(t, "v", 1990+i, status, 60*i)
		}
		criteria := nineties()
		p := f.dynamic(t, "90s", criteria, true)
		engine := NewEngine(f.db)

		if _, err := engine.Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		catalog, err := repositories.NewVideoRepository(f.db).List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := tu.IDSet(filters.VideoIDs(engine.Filters().Execute(criteria, catalog))...)
		if got := f.catalog.EntryVideoIDs(p.ID); !tu.SameSet(got, want) {
			t.Errorf("entry set %v does not match engine output %v", got, want)
		}
	})

	t.Run("RemovalsKeepPositionsAndAppendAfterMax", func(t *testing.T) {
		f := newFixture(t)
		a := f.video(t, "a", 1991, models.StatusDownloaded, 100)
		b := f.video(t, "b", 1992, models.StatusDownloaded, 100)
		c := f.video(t, "c", 1993, models.StatusDownloaded, 100)
		p := f.dynamic(t, "90s", nineties(), true)
		engine := NewEngine(f.db)

		if _, err := engine.Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		videos := repositories.NewVideoRepository(f.db)
		if err := videos.UpdateStatus(ctx, b.ID, models.StatusIgnored); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		d := f.video(t, "d", 1994, models.StatusDownloaded, 100)

		result, err := engine.Reconcile(ctx, p.ID)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if result.Added != 1 || result.Removed != 1 || !result.ChangesMade {
			t.Errorf("unexpected result %+v", result)
		}

		got := map[string]int{}
		for _, entry := range f.entries(t, p.ID) {
			got[entry.VideoID] = entry.Position
		}
		// c=1, b=2 (removed), a=3 from the first run, d appended after max.
		want := map[string]int{c.ID: 1, a.ID: 3, d.ID: 4}
		for id, pos := range want {
			if got[id] != pos {
				t.Errorf("video %s: expected position %d, got %d", id, pos, got[id])
			}
		}
		if len(got) != 3 {
			t.Errorf("expected 3 entries, got %d", len(got))
		}
	})

	t.Run("CompactPositions", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991, models.StatusDownloaded, 100)
		b := f.video(t, "b", 1992, models.StatusDownloaded, 100)
		f.video(t, "c", 1993, models.StatusDownloaded, 100)
		p := f.dynamic(t, "90s", nineties(), true)
		engine := NewEngine(f.db, WithCompactPositions(true))

		if _, err := engine.Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if err := repositories.NewVideoRepository(f.db).UpdateStatus(ctx, b.ID, models.StatusIgnored); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if _, err := engine.Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		for i, entry := range f.entries(t, p.ID) {
			if entry.Position != i+1 {
				t.Errorf("expected dense position %d, got %d", i+1, entry.Position)
			}
		}
	})

	t.Run("Truncation", func(t *testing.T) {
		f := newFixture(t)
		var newest []*models.Video
		for i := 0; i < 5; i++ {
			newest = append(newest, f.video(t, "v", 1990+i, models.StatusDownloaded, 10))
		}
		criteria := nineties()
		criteria.MaxResults = tu.Int(2)
		p := f.dynamic(t, "capped", criteria, true)

		if _, err := NewEngine(f.db).Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		want := tu.IDSet(newest[4].ID, newest[3].ID)
		if got := f.catalog.EntryVideoIDs(p.ID); !tu.SameSet(got, want) {
			t.Errorf("expected the two newest videos, got %v", got)
		}
	})

	t.Run("StatsInvariant", func(t *testing.T) {
		f := newFixture(t)
		f.video(t, "a", 1991, models.StatusDownloaded, 120)
		f.video(t, "b", 1992, models.StatusDownloaded, 240)
		f.catalog.Video(f.artist, models.Video{Title: "no duration", Year: tu.Int(1993), Status: models.StatusDownloaded})
		p := f.dynamic(t, "90s", nineties(), true)

		if _, err := NewEngine(f.db).Reconcile(ctx, p.ID); err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		got, err := repositories.NewPlaylistRepository(f.db).Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		entries := f.entries(t, p.ID)
		total := 0
		for _, e := range entries {
			total += e.Video.DurationSeconds()
		}
		if got.Stats.EntryCount != len(entries) || got.Stats.TotalDuration != total || total != 360 {
			t.Errorf("stats %+v do not match entries (%d, %ds)", got.Stats, len(entries), total)
		}
		if got.LastUpdated == nil {
			t.Error("expected last_updated to be set")
		}
	})

	t.Run("StaticIsRejectedUntouched", func(t *testing.T) {
		f := newFixture(t)
		v := f.video(t, "a", 1991, models.StatusDownloaded, 100)
		p := models.NewStaticPlaylist(f.owner.ID, "mixtape", "", false)
		if err := repositories.NewPlaylistRepository(f.db).Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := repositories.NewEntryRepository(f.db).Append(ctx, p.ID, f.owner.ID, []string{v.ID}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		_, err := NewEngine(f.db).Reconcile(ctx, p.ID)
		if !errors.Is(err, shared.ErrNotDynamic) {
			t.Fatalf("expected ErrNotDynamic, got %v", err)
		}

		entries := f.entries(t, p.ID)
		if len(entries) != 1 || entries[0].VideoID != v.ID {
			t.Errorf("expected entries untouched, got %+v", entries)
		}
		got, _ := repositories.NewPlaylistRepository(f.db).Get(ctx, p.ID)
		if got.LastUpdated != nil {
			t.Error("expected last_updated untouched")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t)
		if _, err := NewEngine(f.db).Reconcile(ctx, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConcurrentRefreshes", func(t *testing.T) {
		f := newFixture(t)
		for i := 0; i < 5; i++ {
			f.video(t, "v", 1990+i, models.StatusDownloaded, 10)
		}
		p := f.dynamic(t, "90s", nineties(), true)
		engine := NewEngine(f.db)

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := engine.Reconcile(ctx, p.ID); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent reconcile failed: %v", err)
		}

		if n := len(f.entries(t, p.ID)); n != 5 {
			t.Errorf("expected 5 entries, got %d", n)
		}
	})

	t.Run("LockTimeout", func(t *testing.T) {
		f := newFixture(t)
		p := f.dynamic(t, "90s", nineties(), true)
		locker := NewLocalLocker()
		engine := NewEngine(f.db, WithLocker(locker), WithLockTimeout(20*time.Millisecond))

		unlock, err := locker.Lock(ctx, lockKey(p.ID))
		if err != nil {
			t.Fatalf("Lock failed: %v", err)
		}
		defer unlock()

		if _, err := engine.Reconcile(ctx, p.ID); !errors.Is(err, shared.ErrLockTimeout) {
			t.Fatalf("expected ErrLockTimeout, got %v", err)
		}
	})
}
