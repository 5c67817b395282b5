package tasks

import "github.com/desertthunder/nowplaying/internal/models"

// Decision is the outcome of comparing a poll result against the current snapshot.
type Decision struct {
	Emit bool         // Whether subscribers should receive an event
	Song *models.Song // Event payload when Emit is set; nil means playback stopped
	Next *models.Song // Snapshot to store, nil when nothing is playing
}

// Decide applies the change policy to a snapshot (prev) and a fresh poll result (cur).
//
// A nil or paused cur counts as nothing playing. Two playing songs only differ when the track
// changed (see [models.Song.SameTrack]); progress churn on the same track refreshes the snapshot
// without an event, so late subscribers are replayed an up to date position.
func Decide(prev, cur *models.Song) Decision {
	if !cur.Playing() {
		if prev == nil {
			return Decision{}
		}
		return Decision{Emit: true}
	}

	if prev != nil && prev.SameTrack(cur) {
		return Decision{Next: cur}
	}
	return Decision{Emit: true, Song: cur, Next: cur}
}
