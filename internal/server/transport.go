package server

import (
	"github.com/desertthunder/nowplaying/internal/models"
)

// EventNowPlaying names the frame carrying playback state.
const EventNowPlaying = "nowPlayingData"

// Event is one real-time frame sent to subscribers.
//
// A nil Data is encoded as null and means playback stopped.
type Event struct {
	Name string       `json:"event"`
	Data *models.Song `json:"data"`
}

// NowPlayingEvent wraps song in a [EventNowPlaying] frame.
func NowPlayingEvent(song *models.Song) Event {
	return Event{Name: EventNowPlaying, Data: song}
}
