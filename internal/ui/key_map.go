package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	next      key.Binding
	dashboard key.Binding
	songs     key.Binding
	settings  key.Binding
	refresh   key.Binding
	hide      key.Binding
	unhide    key.Binding
	remove    key.Binding
	yes       key.Binding
	no        key.Binding
	logout    key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		dashboard: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		songs:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "songs")),
		settings:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "settings")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		hide:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hide")),
		unhide:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unhide")),
		remove:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		yes:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:        key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		logout:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.dashboard, k.songs, k.settings, k.refresh},
		{k.hide, k.unhide, k.remove, k.yes, k.no},
		{k.logout, k.quit},
	}
}
