// package filters evaluates dynamic playlist criteria against a catalog snapshot.
//
// Evaluation is pure: it never mutates its inputs or touches storage, so the same
// [Engine] serves reconciliation, previews and concurrent callers.
package filters

import (
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
)

// Engine evaluates [models.Criteria]. The logger only receives warnings about skipped criteria values.
type Engine struct {
	logger *log.Logger
}

// NewEngine creates an Engine. A nil logger discards warnings.
func NewEngine(logger *log.Logger) *Engine {
	return &Engine{logger: logger}
}

// Execute returns the catalog videos matching criteria, most recently added first,
// truncated to the criteria's effective max_results.
//
// Ordering is a stable sort on CreatedAt so equal timestamps keep catalog order.
// Which of several equally-timestamped videos survives the cutoff is otherwise unspecified.
func (e *Engine) Execute(criteria models.Criteria, catalog []models.Video) []models.Video {
	m := e.compile(criteria)

	out := make([]models.Video, 0, len(catalog))
	for _, v := range catalog {
		if m.match(&v) {
			out = append(out, v)
		}
	}

	sortNewestFirst(out)

	if limit := criteria.EffectiveMaxResults(); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count returns the number of matches before truncation.
func (e *Engine) Count(criteria models.Criteria, catalog []models.Video) int {
	m := e.compile(criteria)
	n := 0
	for i := range catalog {
		if m.match(&catalog[i]) {
			n++
		}
	}
	return n
}

// Match reports whether a single video satisfies criteria.
func (e *Engine) Match(criteria models.Criteria, v models.Video) bool {
	return e.compile(criteria).match(&v)
}

// VideoIDs projects videos onto their ids, preserving order.
func VideoIDs(videos []models.Video) []string {
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	return ids
}

func sortNewestFirst(videos []models.Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}

// matcher is criteria normalized once for repeated evaluation.
type matcher struct {
	genres    map[string]struct{}
	artists   []string
	years     *models.Range
	durations *models.Range
	quality   map[string]struct{}
	status    map[models.VideoStatus]struct{}
	statusSet bool
	keywords  []string
}

func (e *Engine) compile(c models.Criteria) *matcher {
	m := &matcher{
		artists:   lowerAll(c.Artists),
		years:     c.YearRange,
		durations: c.DurationRange,
		keywords:  lowerAll(c.Keywords),
	}

	if len(c.Genres) > 0 {
		m.genres = make(map[string]struct{}, len(c.Genres))
		for _, g := range c.Genres {
			m.genres[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
		}
	}

	if len(c.Quality) > 0 {
		m.quality = make(map[string]struct{}, len(c.Quality))
		for _, q := range c.Quality {
			m.quality[q] = struct{}{}
		}
	}

	if len(c.Status) > 0 {
		m.status = make(map[models.VideoStatus]struct{}, len(c.Status))
		for _, s := range c.Status {
			status, ok := models.ParseVideoStatus(s)
			if !ok {
				e.warn("skipping unrecognized status in filter criteria", "status", s)
				continue
			}
			m.status[status] = struct{}{}
		}
		// A group whose values were all skipped imposes no restriction.
		m.statusSet = len(m.status) > 0
	}

	return m
}

func (m *matcher) match(v *models.Video) bool {
	if m.genres != nil && !m.matchGenres(v) {
		return false
	}
	if len(m.artists) > 0 && !containsAny(strings.ToLower(v.ArtistName), m.artists) {
		return false
	}
	if m.years != nil && (v.Year == nil || !m.years.Contains(*v.Year)) {
		return false
	}
	if m.durations != nil && (v.Duration == nil || !m.durations.Contains(*v.Duration)) {
		return false
	}
	if m.quality != nil {
		if _, ok := m.quality[v.Quality]; !ok {
			return false
		}
	}
	if m.statusSet {
		if _, ok := m.status[v.Status]; !ok {
			return false
		}
	}
	if len(m.keywords) > 0 {
		title, desc := strings.ToLower(v.Title), strings.ToLower(v.Description)
		if !containsAny(title, m.keywords) && !containsAny(desc, m.keywords) {
			return false
		}
	}
	return true
}

func (m *matcher) matchGenres(v *models.Video) bool {
	for _, g := range v.Genres {
		if _, ok := m.genres[strings.ToLower(strings.TrimSpace(g))]; ok {
			return true
		}
	}
	for _, g := range v.ArtistGenres {
		if _, ok := m.genres[strings.ToLower(strings.TrimSpace(g))]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) warn(msg string, kv ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, kv...)
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
