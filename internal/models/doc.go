// Package models defines the playback value types shared by the upstream clients, the broadcast hub, and the terminal client.
//
// A [Song] is immutable once constructed: every poll produces a new value and nothing mutates an old one.
// Its JSON form is the wire payload of the nowPlayingData event.
package models
