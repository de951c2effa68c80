package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/vidx/internal/shared"
)

const (
	// DefaultMaxResults caps a filter that omits max_results.
	DefaultMaxResults = 1000
	// MaxResultsLimit is the largest max_results a filter may request.
	MaxResultsLimit = 10000
)

// Range is an inclusive bound. Either end may be omitted.
type Range struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Contains reports whether n lies within the bounds.
func (r *Range) Contains(n int) bool {
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}

func (r *Range) clone() *Range {
	if r == nil {
		return nil
	}
	out := &Range{}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

// Between builds a closed [Range].
func Between(min, max int) *Range {
	return &Range{Min: &min, Max: &max}
}

// AtMost builds a [Range] with only an upper bound.
func AtMost(max int) *Range {
	return &Range{Max: &max}
}

// AtLeast builds a [Range] with only a lower bound.
func AtLeast(min int) *Range {
	return &Range{Min: &min}
}

// Criteria is the filter document of a dynamic playlist.
//
// Omitted groups impose no restriction. Unknown keys are ignored when decoding.
type Criteria struct {
	Genres        []string `json:"genres,omitempty"`
	Artists       []string `json:"artists,omitempty"`
	YearRange     *Range   `json:"year_range,omitempty"`
	DurationRange *Range   `json:"duration_range,omitempty"`
	Quality       []string `json:"quality,omitempty"`
	Status        []string `json:"status,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	MaxResults    *int     `json:"max_results,omitempty"`
}

// ParseCriteria decodes a JSON criteria document. A null or empty document yields empty criteria.
func ParseCriteria(data []byte) (Criteria, error) {
	var c Criteria
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Criteria{}, fmt.Errorf("%w: malformed filter criteria: %v", shared.ErrValidation, err)
	}
	return c, nil
}

// DecodeCriteria is [ParseCriteria] for documents that may be absent. An empty or null document yields nil,
// while an explicit empty object yields criteria matching the whole catalog.
func DecodeCriteria(data []byte) (*Criteria, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	c, err := ParseCriteria(data)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Encode returns the canonical JSON encoding stored alongside a playlist.
func (c Criteria) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Validate confirms ranges are ordered and enumerable groups are well formed.
//
// Unrecognized status values are not rejected; evaluation skips them with a warning.
func (c Criteria) Validate() error {
	if err := validateRange("year_range", c.YearRange, false); err != nil {
		return err
	}
	if err := validateRange("duration_range", c.DurationRange, true); err != nil {
		return err
	}
	if c.MaxResults != nil {
		if *c.MaxResults <= 0 {
			return fmt.Errorf("%w: max_results must be positive", shared.ErrValidation)
		}
		if *c.MaxResults > MaxResultsLimit {
			return fmt.Errorf("%w: max_results cannot exceed %d", shared.ErrValidation, MaxResultsLimit)
		}
	}

	groups := []struct {
		name   string
		values []string
	}{
		{"genres", c.Genres},
		{"artists", c.Artists},
		{"quality", c.Quality},
		{"status", c.Status},
		{"keywords", c.Keywords},
	}
	for _, g := range groups {
		for _, v := range g.values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: %s cannot contain empty values", shared.ErrValidation, g.name)
			}
		}
	}
	return nil
}

func validateRange(name string, r *Range, nonNegative bool) error {
	if r == nil {
		return nil
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return fmt.Errorf("%w: %s min %d is greater than max %d", shared.ErrValidation, name, *r.Min, *r.Max)
	}
	if nonNegative {
		if (r.Min != nil && *r.Min < 0) || (r.Max != nil && *r.Max < 0) {
			return fmt.Errorf("%w: %s bounds cannot be negative", shared.ErrValidation, name)
		}
	}
	return nil
}

// EffectiveMaxResults returns max_results or [DefaultMaxResults] when unset.
func (c Criteria) EffectiveMaxResults() int {
	if c.MaxResults == nil {
		return DefaultMaxResults
	}
	return *c.MaxResults
}

// WithMaxResults returns a copy capped at n.
func (c Criteria) WithMaxResults(n int) Criteria {
	out := c.Clone()
	out.MaxResults = &n
	return out
}

// Clone returns a deep copy.
func (c Criteria) Clone() Criteria {
	out := Criteria{
		Genres:        cloneStrings(c.Genres),
		Artists:       cloneStrings(c.Artists),
		YearRange:     c.YearRange.clone(),
		DurationRange: c.DurationRange.clone(),
		Quality:       cloneStrings(c.Quality),
		Status:        cloneStrings(c.Status),
		Keywords:      cloneStrings(c.Keywords),
	}
	if c.MaxResults != nil {
		n := *c.MaxResults
		out.MaxResults = &n
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
