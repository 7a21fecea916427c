// package formatter renders dashboard stats and content listings as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt", "":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected csv, markdown, text or json)", s)
	}
}

// Ext returns the file extension used when writing the format.
func (f Format) Ext() string {
	switch f {
	case Markdown:
		return ".md"
	case Text:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Table is a titled grid of string cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// ToCSV writes the headers followed by every row
func (t *Table) ToCSV() ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders a heading, a row count and a pipe table.
func (t *Table) ToMarkdown() []byte {
	var buf bytes.Buffer

	if t.Title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", t.Title))
	}
	buf.WriteString(fmt.Sprintf("**Rows**: %d\n\n", len(t.Rows)))

	buf.WriteString("| " + strings.Join(escapeCells(t.Headers), " | ") + " |\n")
	sep := make([]string, len(t.Headers))
	for i := range sep {
		sep[i] = "---"
	}
	buf.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range t.Rows {
		buf.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}

	return buf.Bytes()
}

// ToText renders left-aligned columns padded to the widest cell.
func (t *Table) ToText() []byte {
	var buf bytes.Buffer

	if t.Title != "" {
		buf.WriteString(t.Title + "\n\n")
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 || i >= len(widths) {
				parts[i] = cell
				continue
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-len([]rune(cell)))
		}
		buf.WriteString(strings.TrimRight(strings.Join(parts, "  "), " ") + "\n")
	}

	line(t.Headers)
	for _, row := range t.Rows {
		line(row)
	}

	return buf.Bytes()
}

// Render encodes the table in the given format.
//
// JSON renders each row as an object keyed by header.
func (t *Table) Render(f Format) ([]byte, error) {
	switch f {
	case CSV:
		return t.ToCSV()
	case Markdown:
		return t.ToMarkdown(), nil
	case Text:
		return t.ToText(), nil
	case JSON:
		records := make([]map[string]string, 0, len(t.Rows))
		for _, row := range t.Rows {
			rec := make(map[string]string, len(t.Headers))
			for i, h := range t.Headers {
				if i < len(row) {
					rec[h] = row[i]
				}
			}
			records = append(records, rec)
		}
		return shared.MarshalJSON(records, true)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

// StatsTable lists every dashboard counter followed by the leading category and genre.
func StatsTable(stats *models.Stats) *Table {
	t := &Table{Title: "Dashboard", Headers: []string{"Metric", "Value"}}
	for _, c := range stats.Totals.Counters() {
		t.Rows = append(t.Rows, []string{c.Label, strconv.Itoa(c.Value)})
	}
	t.Rows = append(t.Rows,
		[]string{"Top Category", stats.TopCategory()},
		[]string{"Top Genre", stats.TopGenre()},
	)
	return t
}

// SongsTable lists songs with their visibility.
func SongsTable(songs []models.Song) *Table {
	t := &Table{Title: "Songs", Headers: []string{"ID", "Title", "Artist", "Categories", "Visibility", "Plays"}}
	for _, s := range songs {
		t.Rows = append(t.Rows, []string{
			s.ID,
			s.Title,
			s.Artist,
			strings.Join(s.Categories, ", "),
			shared.VisibilityString(s.Hidden),
			strconv.Itoa(s.PlaysCount),
		})
	}
	return t
}

// CategoriesTable lists categories with their artwork URL.
func CategoriesTable(categories []models.Category) *Table {
	t := &Table{Title: "Categories", Headers: []string{"ID", "Name", "Slug", "Image"}}
	for _, c := range categories {
		t.Rows = append(t.Rows, []string{c.ID, c.Name, c.Slug, c.ImageURL})
	}
	return t
}

// GenresTable lists genres.
func GenresTable(genres []models.Genre) *Table {
	t := &Table{Title: "Genres", Headers: []string{"ID", "Name", "Slug"}}
	for _, g := range genres {
		t.Rows = append(t.Rows, []string{g.ID, g.Name, g.Slug})
	}
	return t
}

// PlaylistsTable lists playlists with their owner and size.
func PlaylistsTable(playlists []models.Playlist) *Table {
	t := &Table{Title: "Playlists", Headers: []string{"ID", "Name", "Owner", "Songs"}}
	for _, p := range playlists {
		t.Rows = append(t.Rows, []string{p.ID, p.Name, p.Owner, strconv.Itoa(p.SongCount)})
	}
	return t
}

// Export renders v in the given format.
//
// JSON encodes v directly so nested fields survive; other formats require a table.
func Export(v any, t *Table, f Format) ([]byte, error) {
	if f == JSON {
		return shared.MarshalJSON(v, true)
	}
	if t == nil {
		return nil, fmt.Errorf("%s export needs a table", f)
	}
	return t.Render(f)
}

// WriteExport writes data to path, creating parent directories.
//
// When path has no extension the format's extension is appended.
// Returns the path written.
func WriteExport(path string, f Format, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty export path")
	}
	if filepath.Ext(path) == "" {
		path += f.Ext()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// DownloadImage fetches category artwork and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}
