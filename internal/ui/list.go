package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/shared"
)

var _ list.Item = songItem{}

// songItem wraps [models.Song] to implement [list.Item].
type songItem struct {
	song models.Song
}

func (i songItem) FilterValue() string { return i.song.Title + " " + i.song.Artist }
func (i songItem) Title() string {
	if i.song.Hidden {
		return fmt.Sprintf("%s (hidden)", i.song.Title)
	}
	return i.song.Title
}
func (i songItem) Description() string {
	parts := []string{}
	if i.song.Artist != "" {
		parts = append(parts, i.song.Artist)
	}
	if len(i.song.Categories) > 0 {
		parts = append(parts, strings.Join(i.song.Categories, ", "))
	}
	parts = append(parts, shared.VisibilityString(i.song.Hidden), fmt.Sprintf("%d plays", i.song.PlaysCount))
	return strings.Join(parts, " • ")
}

func songItems(songs []models.Song) []list.Item {
	items := make([]list.Item, len(songs))
	for i, s := range songs {
		items[i] = songItem{song: s}
	}
	return items
}
