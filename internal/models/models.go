package models

// Song is the internal representation of a playing track.
type Song struct {
	Title     string  `json:"title"`
	Duration  int     `json:"duration"` // milliseconds
	Progress  int     `json:"progress"` // milliseconds
	IsPlaying bool    `json:"is_playing"`
	Album     Album   `json:"album"`
	Artists   Artists `json:"artists"`
	URL       string  `json:"url"`
}

// Album describes the release a [Song] belongs to.
type Album struct {
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	ReleaseDate string `json:"release_date"`
}

// Artists holds parallel lists of artist names and profile URLs.
type Artists struct {
	Name []string `json:"name"`
	URL  []string `json:"url"`
}

// SameTrack reports whether s and other identify the same track.
//
// Continuously changing fields (progress) and the playing flag are ignored.
func (s *Song) SameTrack(other *Song) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Title == other.Title && s.URL == other.URL && s.Album.Name == other.Album.Name
}

// Playing reports whether s holds an actively playing track. A nil song is not playing.
func (s *Song) Playing() bool {
	return s != nil && s.IsPlaying
}

// Remaining returns the milliseconds left in the track, never negative.
func (s *Song) Remaining() int {
	if s == nil || s.Progress >= s.Duration {
		return 0
	}
	return s.Duration - s.Progress
}
