package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// gen is the view generation the message was issued under. Fetch results from
// an earlier generation are dropped.
type Msg struct {
	kind MsgKind
	gen  int
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSessionChanged MsgKind = iota
	MsgLoginDone
	MsgLogoutDone
	MsgStatsFetched
	MsgSongsFetched
	MsgModerationProgress
	MsgModerationDone
)

type statsResult struct {
	stats *models.Stats
	err   error
}

type songsResult struct {
	songs []models.Song
	err   error
}

type moderationResult struct {
	result *tasks.ModerationResult
	err    error
}

// sessionChangedMsg is the constructor for [MsgSessionChanged]
func sessionChangedMsg() Msg {
	return Msg{kind: MsgSessionChanged}
}

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(err error) Msg {
	return Msg{kind: MsgLoginDone, data: err}
}

// logoutDoneMsg is the constructor for [MsgLogoutDone]
func logoutDoneMsg() Msg {
	return Msg{kind: MsgLogoutDone}
}

// statsFetchedMsg is the constructor for [MsgStatsFetched]
func statsFetchedMsg(gen int, stats *models.Stats, err error) Msg {
	return Msg{kind: MsgStatsFetched, gen: gen, data: statsResult{stats, err}}
}

// songsFetchedMsg is the constructor for [MsgSongsFetched]
func songsFetchedMsg(gen int, songs []models.Song, err error) Msg {
	return Msg{kind: MsgSongsFetched, gen: gen, data: songsResult{songs, err}}
}

// moderationProgressMsg is the constructor for [MsgModerationProgress]
func moderationProgressMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgModerationProgress, data: update}
}

// moderationDoneMsg is the constructor for [MsgModerationDone]
func moderationDoneMsg(result *tasks.ModerationResult, err error) Msg {
	return Msg{kind: MsgModerationDone, data: moderationResult{result, err}}
}
