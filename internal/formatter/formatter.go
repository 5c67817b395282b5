// package formatter renders playback state for terminals and files (JSON, plain text, Markdown)
package formatter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
)

// Format names accepted by [Render].
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

const maxImageBytes = 10 << 20

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour. Negative values clamp to zero.
func FormatDuration(ms int) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Artists joins the song's artist names with commas.
func Artists(song *models.Song) string {
	if song == nil {
		return ""
	}
	return strings.Join(song.Artists.Name, ", ")
}

// Render dispatches to the exporter for format.
func Render(song *models.Song, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		return ToJSON(song, true)
	case FormatText:
		return ToText(song), nil
	case FormatMarkdown:
		return ToMarkdown(song, ""), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, text or markdown)", format)
	}
}

// ToJSON encodes song in its wire shape. A nil song encodes as null.
func ToJSON(song *models.Song, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(song, "", "  ")
	} else {
		data, err = json.Marshal(song)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode song: %w", err)
	}
	return append(data, '\n'), nil
}

// ToText renders a short human-readable summary.
func ToText(song *models.Song) []byte {
	if song == nil {
		return []byte("Nothing playing\n")
	}

	var buf bytes.Buffer
	state := "Playing"
	if !song.IsPlaying {
		state = "Paused"
	}

	fmt.Fprintf(&buf, "%s: %s - %s\n", state, Artists(song), song.Title)
	if song.Album.Name != "" {
		fmt.Fprintf(&buf, "Album: %s", song.Album.Name)
		if song.Album.ReleaseDate != "" {
			fmt.Fprintf(&buf, " (%s)", song.Album.ReleaseDate)
		}
		buf.WriteString("\n")
	}
	fmt.Fprintf(&buf, "Position: %s / %s\n", FormatDuration(song.Progress), FormatDuration(song.Duration))
	if song.URL != "" {
		fmt.Fprintf(&buf, "Link: %s\n", song.URL)
	}
	return buf.Bytes()
}

// ToMarkdown renders the song as a Markdown card. coverFile, when set, replaces the remote album image.
func ToMarkdown(song *models.Song, coverFile string) []byte {
	if song == nil {
		return []byte("_Nothing playing_\n")
	}

	var buf bytes.Buffer
	if song.URL != "" {
		fmt.Fprintf(&buf, "# [%s](%s)\n\n", song.Title, song.URL)
	} else {
		fmt.Fprintf(&buf, "# %s\n\n", song.Title)
	}

	cover := coverFile
	if cover == "" {
		cover = song.Album.Image
	}
	if cover != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", cover)
	}

	links := make([]string, 0, len(song.Artists.Name))
	for i, name := range song.Artists.Name {
		if i < len(song.Artists.URL) && song.Artists.URL[i] != "" {
			links = append(links, fmt.Sprintf("[%s](%s)", name, song.Artists.URL[i]))
		} else {
			links = append(links, name)
		}
	}

	fmt.Fprintf(&buf, "**Artists**: %s\n", strings.Join(links, ", "))
	fmt.Fprintf(&buf, "**Album**: %s\n", song.Album.Name)
	if song.Album.ReleaseDate != "" {
		fmt.Fprintf(&buf, "**Released**: %s\n", song.Album.ReleaseDate)
	}
	fmt.Fprintf(&buf, "**Duration**: %s\n", FormatDuration(song.Duration))
	return buf.Bytes()
}

// DownloadImage fetches the image at url and returns the raw bytes.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// WriteCover downloads the album image of song to path.
func WriteCover(ctx context.Context, client *http.Client, song *models.Song, path string) error {
	if song == nil || song.Album.Image == "" {
		return fmt.Errorf("song has no album image")
	}

	data, err := DownloadImage(ctx, client, song.Album.Image)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	return nil
}
