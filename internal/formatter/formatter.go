// package formatter renders playlists with their entries as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats in display order.
var Formats = []Format{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat maps a user supplied name onto a [Format]. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case "md", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// Extension returns the file extension used when writing f to disk.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Export is a playlist together with its ordered entries.
type Export struct {
	Playlist *models.Playlist      `json:"playlist"`
	Entries  []models.PlaylistEntry `json:"entries"`
}

// Render converts export to the given format.
func Render(export *Export, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatJSON:
		return ExportToJSON(export)
	case FormatText, "":
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// Write renders export and writes it to w.
func Write(w io.Writer, export *Export, format Format) error {
	data, err := Render(export, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}

// ExportToCSV converts an Export to CSV with columns: Position, Video ID, Title, Artist, Year, Duration, Quality, Status
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Video ID", "Title", "Artist", "Year", "Duration", "Quality", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range export.Entries {
		video := entryVideo(entry)
		record := []string{
			strconv.Itoa(entry.Position),
			entry.VideoID,
			video.Title,
			video.ArtistName,
			optionalInt(video.Year),
			optionalInt(video.Duration),
			video.Quality,
			string(video.Status),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown. Dynamic playlists include their criteria as a JSON block.
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Playlist

	buf.WriteString(fmt.Sprintf("# %s\n\n", p.Name))

	if p.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", p.Description))
	}

	buf.WriteString(fmt.Sprintf("**Kind**: %s\n", p.Kind()))
	buf.WriteString(fmt.Sprintf("**Videos**: %d\n", p.Stats.EntryCount))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", shared.FormatDuration(p.Stats.TotalDuration)))
	buf.WriteString(fmt.Sprintf("**Visibility**: %s\n", shared.VisibilityString(p.Public)))
	if p.LastUpdated != nil {
		buf.WriteString(fmt.Sprintf("**Last Updated**: %s\n", p.LastUpdated.UTC().Format("2006-01-02 15:04 MST")))
	}
	buf.WriteString("\n")

	if d, ok := p.AsDynamic(); ok {
		criteria, err := shared.MarshalJSON(d.Criteria, true)
		if err != nil {
			return nil, fmt.Errorf("failed to encode criteria: %w", err)
		}
		buf.WriteString("## Criteria\n\n```json\n")
		buf.Write(criteria)
		buf.WriteString("\n```\n\n")
	}

	buf.WriteString("## Videos\n\n")
	for _, entry := range export.Entries {
		video := entryVideo(entry)
		yearPart := ""
		if video.Year != nil {
			yearPart = fmt.Sprintf(" (%d)", *video.Year)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", entry.Position, video.ArtistName, video.Title, yearPart,
			shared.FormatDuration(video.DurationSeconds())))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Playlist

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", p.Name))
	if p.Description != "" {
		buf.WriteString(fmt.Sprintf("Description: %s\n", p.Description))
	}
	buf.WriteString(fmt.Sprintf("Kind: %s\n", p.Kind()))
	buf.WriteString(fmt.Sprintf("Videos: %d (%s)\n\n", p.Stats.EntryCount, shared.FormatDuration(p.Stats.TotalDuration)))

	for _, entry := range export.Entries {
		video := entryVideo(entry)
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", entry.Position, video.ArtistName, video.Title))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the export as indented JSON
func ExportToJSON(export *Export) ([]byte, error) {
	entries := export.Entries
	if entries == nil {
		entries = []models.PlaylistEntry{}
	}
	return shared.MarshalJSON(Export{Playlist: export.Playlist, Entries: entries}, true)
}

// WriteExport renders export to a file. An empty path defaults to {playlist.ID} plus the format's extension.
func WriteExport(export *Export, format Format, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + format.Extension()
	}

	data, err := Render(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}

func entryVideo(entry models.PlaylistEntry) models.Video {
	if entry.Video == nil {
		return models.Video{ID: entry.VideoID}
	}
	return *entry.Video
}

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
