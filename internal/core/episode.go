package core

// ArtworkImage is one rendition of an episode's artwork.
// Surfaces expect a range of sizes (96-512px squares).
type ArtworkImage struct {
	URL  string `json:"url"`
	Size int    `json:"size"`
}

// Episode identifies a playable podcast episode. An Episode is immutable
// for the life of a playback session; switching to a different episode
// resets the session.
type Episode struct {
	ID        string         `json:"id"`
	AudioURL  string         `json:"audio_url"`
	Title     string         `json:"title"`
	ShowTitle string         `json:"show_title"`
	Artwork   []ArtworkImage `json:"artwork"`
}

// Same reports whether two episode references identify the same episode.
// Either side may be nil.
func (e *Episode) Same(other *Episode) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ID == other.ID
}
