package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
)

var _ list.Item = historyItem{}

// historyItem wraps a previously played [models.Song] to implement [list.Item].
type historyItem struct {
	song models.Song
}

func (i historyItem) FilterValue() string { return i.song.Title }
func (i historyItem) Title() string       { return i.song.Title }
func (i historyItem) Description() string {
	desc := formatter.Artists(&i.song)
	if i.song.Album.Name != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.song.Album.Name)
	}
	return desc
}

func newHistoryList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recently Played"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}
