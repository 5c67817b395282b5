package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/server"
)

const (
	historyLimit = 50
	tickInterval = time.Second
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConnectingView ViewState = iota
	IdleView
	PlayingView
	DisconnectedView
)

// Stream delivers broadcast events; [server.Client] is the production implementation.
type Stream interface {
	Receive() (server.Event, error)
	Close() error
}

// ConnectFunc opens a new [Stream].
type ConnectFunc func(ctx context.Context) (Stream, error)

// Model represents the watcher state.
type Model struct {
	ctx         context.Context
	connect     ConnectFunc
	target      string
	stream      Stream
	view        ViewState
	song        *models.Song
	receivedAt  time.Time
	played      []list.Item
	history     list.Model
	showHistory bool
	err         error
	width       int
	height      int
	bar         progress.Model
	help        help.Model
	keys        keyMap
	now         func() time.Time
}

// NewModel creates a watcher that connects with connect; target is only displayed.
func NewModel(ctx context.Context, target string, connect ConnectFunc) *Model {
	return &Model{
		ctx:     ctx,
		connect: connect,
		target:  target,
		view:    ConnectingView,
		history: newHistoryList(),
		bar:     progress.New(progress.WithSolidFill("#1DB954"), progress.WithoutPercentage()),
		help:    help.New(),
		keys:    newKeyMap(),
		now:     time.Now,
	}
}

// Init connects and starts the position ticker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.dial(), tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-8, 10)
		m.history.SetSize(msg.Width-4, max(msg.Height-12, 5))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	if m.showHistory {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgConnected:
		data := msg.data.(connectedData)
		if data.err != nil {
			m.disconnect(data.err)
			return m, nil
		}
		if m.stream != nil && m.stream != data.stream {
			m.stream.Close()
		}
		m.stream = data.stream
		m.err = nil
		m.view = IdleView
		m.keys.reconnect.SetEnabled(false)
		return m, m.waitForEvent()

	case MsgEvent:
		m.apply(msg.data.(server.Event))
		return m, m.waitForEvent()

	case MsgDisconnected:
		err, _ := msg.data.(error)
		m.disconnect(err)
		return m, nil

	case MsgTick:
		return m, tick()
	}
	return m, nil
}

// apply moves the current song into history when the track changes.
func (m *Model) apply(event server.Event) {
	if event.Name != server.EventNowPlaying {
		return
	}

	if m.song != nil && !m.song.SameTrack(event.Data) {
		m.played = append([]list.Item{historyItem{song: *m.song}}, m.played...)
		if len(m.played) > historyLimit {
			m.played = m.played[:historyLimit]
		}
		m.history.SetItems(m.played)
	}

	m.song = event.Data
	m.receivedAt = m.now()
	if m.song == nil {
		m.view = IdleView
	} else {
		m.view = PlayingView
	}
}

func (m *Model) disconnect(err error) {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.err = err
	m.view = DisconnectedView
	m.keys.reconnect.SetEnabled(true)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.stream != nil {
			m.stream.Close()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.reconnect):
		m.view = ConnectingView
		m.keys.reconnect.SetEnabled(false)
		return m, m.dial()
	case key.Matches(msg, m.keys.history):
		m.showHistory = !m.showHistory
		return m, nil
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.showHistory {
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) dial() tea.Cmd {
	return func() tea.Msg {
		stream, err := m.connect(m.ctx)
		return connectedMsg(stream, err)
	}
}

// waitForEvent blocks on the stream for the next frame.
func (m *Model) waitForEvent() tea.Cmd {
	stream := m.stream
	return func() tea.Msg {
		if stream == nil {
			return disconnectedMsg(nil)
		}
		event, err := stream.Receive()
		if err != nil {
			return disconnectedMsg(err)
		}
		return eventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Position estimates the playback position, advancing locally between events while playing.
func (m *Model) Position() int {
	if m.song == nil {
		return 0
	}
	if !m.song.IsPlaying {
		return m.song.Progress
	}
	pos := m.song.Progress + int(m.now().Sub(m.receivedAt).Milliseconds())
	return min(pos, m.song.Duration)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case ConnectingView:
		body = styles.muted.Render(fmt.Sprintf("Connecting to %s...", m.target))
	case IdleView:
		body = styles.muted.Render("Nothing playing")
	case PlayingView:
		body = m.renderSong()
	case DisconnectedView:
		reason := "connection closed"
		if m.err != nil {
			reason = m.err.Error()
		}
		body = styles.err.Render(fmt.Sprintf("Disconnected: %s", reason))
	}

	sections := []string{styles.title.Render("Now Playing"), body}
	if m.showHistory {
		if len(m.played) == 0 {
			sections = append(sections, "", styles.muted.Render("No history yet"))
		} else {
			sections = append(sections, "", m.history.View())
		}
	}
	sections = append(sections, "", styles.help.Render(m.help.View(m.keys)))
	return strings.Join(sections, "\n")
}

func (m *Model) renderSong() string {
	song := m.song
	pos := m.Position()

	ratio := 0.0
	if song.Duration > 0 {
		ratio = float64(pos) / float64(song.Duration)
	}

	title := styles.track.Render(song.Title)
	if !song.IsPlaying {
		title += " " + styles.warn.Render("(paused)")
	}

	album := song.Album.Name
	if song.Album.ReleaseDate != "" {
		album = fmt.Sprintf("%s (%s)", album, song.Album.ReleaseDate)
	}

	lines := []string{
		title,
		formatter.Artists(song),
		styles.muted.Render(album),
		"",
		m.bar.ViewAs(ratio),
		fmt.Sprintf("%s / %s", formatter.FormatDuration(pos), formatter.FormatDuration(song.Duration)),
	}
	return styles.border.Render(strings.Join(lines, "\n"))
}
