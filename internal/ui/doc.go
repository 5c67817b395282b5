// Package ui implements the `watch` terminal subscriber using bubbletea's Elm architecture.
//
// The (view) [Model] connects through a [ConnectFunc], then blocks on the [Stream] for broadcast
// frames, one command at a time. Between frames the playback position advances locally once a
// second, so the progress bar moves without extra traffic.
//
// Views: [ConnectingView], [IdleView] (null frame), [PlayingView], [DisconnectedView]. Tracks that
// were replaced are kept in a history list toggled with h; r reconnects after a disconnect.
package ui
