package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/server"
)

// MsgKind enumerates all message types in the watcher.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgConnected MsgKind = iota
	MsgEvent
	MsgDisconnected
	MsgTick
)

type connectedData struct {
	stream Stream
	err    error
}

// connectedMsg is the constructor for [MsgConnected]
func connectedMsg(stream Stream, err error) Msg {
	return Msg{kind: MsgConnected, data: connectedData{stream, err}}
}

// eventMsg is the constructor for [MsgEvent]
func eventMsg(event server.Event) Msg {
	return Msg{kind: MsgEvent, data: event}
}

// disconnectedMsg is the constructor for [MsgDisconnected]
func disconnectedMsg(err error) Msg {
	return Msg{kind: MsgDisconnected, data: err}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
