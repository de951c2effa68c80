// package templates holds the fixed library of dynamic playlist presets.
package templates

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// Template is a named preset of filter criteria.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Criteria    models.Criteria `json:"filter_criteria"`
}

// Summary is the listing form of a [Template].
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Library is an immutable, ordered registry of templates. It is safe for concurrent use.
//
// Presets relative to the current date are resolved against the library clock on every lookup.
type Library struct {
	templates []preset
	byID      map[string]int
	now       func() time.Time
}

// preset is a template whose criteria may depend on the current time.
type preset struct {
	Template
	relative func(now time.Time) models.Criteria
}

func (p preset) resolve(now time.Time) Template {
	t := p.Template
	if p.relative != nil {
		t.Criteria = p.relative(now)
	} else {
		t.Criteria = t.Criteria.Clone()
	}
	return t
}

var (
	defaultOnce    sync.Once
	defaultLibrary *Library
)

// Default returns the process-wide library, built on first use and resolved against [time.Now].
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLibrary = NewLibrary(time.Now)
	})
	return defaultLibrary
}

// NewLibrary builds the preset library. A nil clock defaults to [time.Now].
func NewLibrary(clock func() time.Time) *Library {
	if clock == nil {
		clock = time.Now
	}

	presets := []preset{
		{
			Template: Template{
				ID:          "recent-releases",
				Name:        "Recent Releases",
				Description: "Downloaded videos released in the last two years",
			},
			relative: func(now time.Time) models.Criteria {
				return models.Criteria{
					YearRange: models.AtLeast(now.Year() - 2),
					Status:    []string{string(models.StatusDownloaded)},
				}
			},
		},
		fixed("the-80s", "The 80s", "Music videos from 1980 to 1989", models.Criteria{YearRange: models.Between(1980, 1989)}),
		fixed("the-90s", "The 90s", "Music videos from 1990 to 1999", models.Criteria{YearRange: models.Between(1990, 1999)}),
		fixed("short-videos", "Short Videos", "Videos of four minutes or less", models.Criteria{DurationRange: models.AtMost(240)}),
		fixed("hd-quality", "HD Quality", "Videos available in 720p or better",
			models.Criteria{Quality: []string{"720p", "1080p", "1440p", "2160p"}}),
		genre("rock", "Rock", "rock", "alternative rock", "hard rock"),
		genre("electronic", "Electronic", "electronic", "house", "techno"),
		genre("hip-hop", "Hip-Hop", "hip-hop", "rap"),
		genre("pop", "Pop", "pop"),
	}

	lib := &Library{templates: presets, byID: make(map[string]int, len(presets)), now: clock}
	for i, t := range presets {
		lib.byID[t.ID] = i
	}
	return lib
}

func fixed(id, name, description string, criteria models.Criteria) preset {
	return preset{Template: Template{ID: id, Name: name, Description: description, Criteria: criteria}}
}

func genre(id, name string, genres ...string) preset {
	return fixed(id, name, fmt.Sprintf("%s music videos", name), models.Criteria{Genres: genres})
}

// List returns template summaries in library order.
func (l *Library) List() []Summary {
	out := make([]Summary, len(l.templates))
	for i, t := range l.templates {
		out[i] = Summary{ID: t.ID, Name: t.Name, Description: t.Description}
	}
	return out
}

// Lookup returns a copy of the template with id. Callers may modify the result freely.
func (l *Library) Lookup(id string) (Template, error) {
	i, ok := l.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: template %s", shared.ErrNotFound, id)
	}
	return l.templates[i].resolve(l.now()), nil
}

// Len returns the number of templates.
func (l *Library) Len() int {
	return len(l.templates)
}
