// package models defines the data model for the apostle admin console
package models

import "encoding/json"

// DefaultDisplayName is used when the API returns a principal without any name field.
const DefaultDisplayName = "Admin"

// Principal identifies the signed-in administrator.
type Principal struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

// Name returns the display name, falling back to [DefaultDisplayName].
//
// Safe on a nil receiver so front ends can render a degraded session without checks.
func (p *Principal) Name() string {
	if p == nil || p.DisplayName == "" {
		return DefaultDisplayName
	}
	return p.DisplayName
}

// Totals holds the dashboard counters returned by the stats endpoint.
type Totals struct {
	Users        int `json:"users"`
	Artists      int `json:"artists"`
	Songs        int `json:"songs"`
	Albums       int `json:"albums"`
	Playlists    int `json:"playlists"`
	Categories   int `json:"categories"`
	Genres       int `json:"genres"`
	HiddenSongs  int `json:"hiddenSongs"`
	HiddenAlbums int `json:"hiddenAlbums"`
	SongLikes    int `json:"songLikes"`
	AlbumLikes   int `json:"albumLikes"`
	RecentPlays  int `json:"recentPlays"`
}

// Counter is a single labelled value in the order the dashboard displays them.
type Counter struct {
	Label string
	Value int
}

// Counters lists every total with its dashboard label.
func (t Totals) Counters() []Counter {
	return []Counter{
		{"Total Users", t.Users},
		{"Artists", t.Artists},
		{"Songs", t.Songs},
		{"Albums", t.Albums},
		{"Playlists", t.Playlists},
		{"Categories", t.Categories},
		{"Genres", t.Genres},
		{"Hidden Songs", t.HiddenSongs},
		{"Hidden Albums", t.HiddenAlbums},
		{"Song Likes", t.SongLikes},
		{"Album Likes", t.AlbumLikes},
		{"Recent Plays", t.RecentPlays},
	}
}

// TopEntry is a ranked taxonomy slug with its play count.
type TopEntry struct {
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// Stats is the payload of the admin stats endpoint.
type Stats struct {
	Totals        Totals     `json:"totals"`
	TopCategories []TopEntry `json:"topCategories"`
	TopGenres     []TopEntry `json:"topGenres"`
}

// TopCategory returns the leading category slug, or "—" when there is none.
func (s *Stats) TopCategory() string { return topSlug(s.TopCategories) }

// TopGenre returns the leading genre slug, or "—" when there is none.
func (s *Stats) TopGenre() string { return topSlug(s.TopGenres) }

func topSlug(entries []TopEntry) string {
	if len(entries) == 0 || entries[0].Slug == "" {
		return "—"
	}
	return entries[0].Slug
}

// Song is a library track as seen by the moderation screens.
type Song struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist,omitempty"`
	Categories []string `json:"category,omitempty"`
	Hidden     bool     `json:"isHidden"`
	PlaysCount int      `json:"playsCount"`
}

// UnmarshalJSON accepts the legacy "_id" identifier field.
func (s *Song) UnmarshalJSON(data []byte) error {
	type alias Song
	var v struct {
		alias
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Song(v.alias)
	if s.ID == "" {
		s.ID = v.LegacyID
	}
	return nil
}

// Category is a content taxonomy entry with optional artwork.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UnmarshalJSON accepts the legacy "_id" identifier field.
func (c *Category) UnmarshalJSON(data []byte) error {
	type alias Category
	var v struct {
		alias
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Category(v.alias)
	if c.ID == "" {
		c.ID = v.LegacyID
	}
	return nil
}

// Genre is a musical genre taxonomy entry.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// UnmarshalJSON accepts the legacy "_id" identifier field.
func (g *Genre) UnmarshalJSON(data []byte) error {
	type alias Genre
	var v struct {
		alias
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*g = Genre(v.alias)
	if g.ID == "" {
		g.ID = v.LegacyID
	}
	return nil
}

// Playlist is a user playlist listed for moderation.
type Playlist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner,omitempty"`
	SongCount int    `json:"songCount"`
}

// UnmarshalJSON accepts the legacy "_id" identifier field.
func (p *Playlist) UnmarshalJSON(data []byte) error {
	type alias Playlist
	var v struct {
		alias
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Playlist(v.alias)
	if p.ID == "" {
		p.ID = v.LegacyID
	}
	return nil
}
