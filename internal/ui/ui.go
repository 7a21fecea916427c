package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/session"
	"github.com/desertthunder/apostle/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoginView ViewState = iota
	DashboardView
	SongsView
	ConfirmView
	ModerateView
	SettingsView
)

// Session is the part of [session.Service] the TUI drives.
type Session interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (cancel func())
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	RequireCredential() (string, error)
}

// Content fetches what the dashboard and songs views display.
type Content interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Songs(ctx context.Context, opts services.ListOptions) ([]models.Song, error)
}

// Moderator applies moderation actions, see [tasks.ContentEngine].
type Moderator interface {
	Moderate(ctx context.Context, prog chan<- tasks.ProgressUpdate, action tasks.Action, ids []string, opts tasks.ModerateOpts) (*tasks.ModerationResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	gen       int
	sess      Session
	content   Content
	moderator Moderator
	logger    *log.Logger

	width  int
	height int

	snap        session.Snapshot
	changes     chan struct{}
	unsubscribe func()

	form       loginForm
	submitting bool

	stats    *models.Stats
	statsErr error
	loading  bool
	notice   string
	warned   bool

	songList list.Model
	songs    []models.Song
	songsErr error

	action       tasks.Action
	target       *models.Song
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	modResult    *tasks.ModerationResult
	modErr       error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies and subscribes to session changes.
//
// Call [Model.Close] once the program exits.
func NewModel(ctx context.Context, sess Session, content Content, moderator Moderator, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Model{
		ctx:       ctx,
		view:      LoginView,
		sess:      sess,
		content:   content,
		moderator: moderator,
		logger:    logger,
		snap:      sess.Snapshot(),
		changes:   make(chan struct{}, 1),
		form:      newLoginForm(),
		songList:  list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.unsubscribe = sess.Subscribe(func(session.Snapshot) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Close stops listening for session changes.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Current returns the active view.
func (m *Model) Current() ViewState { return m.view }

// Init starts on the dashboard for a restored session, otherwise on the login form.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForSession()}
	if m.snap.Authenticated {
		cmds = append(cmds, m.switchView(DashboardView))
	} else {
		cmds = append(cmds, m.form.focus())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case LoginView:
			return m.handleLoginKeys(msg)
		case DashboardView:
			return m.handleDashboardKeys(msg)
		case SongsView:
			return m.handleSongsKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ModerateView:
			return m.handleModerateKeys(msg)
		case SettingsView:
			return m.handleSettingsKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSessionChanged:
		m.snap = m.sess.Snapshot()
		var cmd tea.Cmd
		if !m.snap.Authenticated && !m.snap.Pending && m.view != LoginView {
			cmd = m.switchView(LoginView)
		}
		return m, tea.Batch(m.waitForSession(), cmd)

	case MsgLoginDone:
		m.submitting = false
		m.snap = m.sess.Snapshot()
		if err, _ := msg.data.(error); err != nil {
			m.logger.Error("login failed", "error", err)
		}
		if m.snap.Authenticated {
			m.form.reset()
			return m, m.switchView(DashboardView)
		}
		return m, nil

	case MsgLogoutDone:
		m.snap = m.sess.Snapshot()
		m.stats, m.songs = nil, nil
		m.songList.SetItems(nil)
		return m, m.switchView(LoginView)

	case MsgStatsFetched:
		if msg.gen != m.gen {
			m.logger.Debug("dropping stale stats", "gen", msg.gen, "current", m.gen)
			return m, nil
		}
		res := msg.data.(statsResult)
		m.loading = false
		m.stats, m.statsErr = res.stats, res.err
		if res.err != nil {
			m.logger.Error("failed to fetch stats", "error", res.err)
		}
		return m, nil

	case MsgSongsFetched:
		if msg.gen != m.gen {
			m.logger.Debug("dropping stale songs", "gen", msg.gen, "current", m.gen)
			return m, nil
		}
		res := msg.data.(songsResult)
		m.loading = false
		m.songsErr = res.err
		if res.err != nil {
			m.logger.Error("failed to fetch songs", "error", res.err)
			return m, nil
		}
		m.songs = res.songs
		cmd := m.songList.SetItems(songItems(res.songs))
		m.songList.Title = "Songs"
		m.resize()
		return m, cmd

	case MsgModerationProgress:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.doneChan)

	case MsgModerationDone:
		res := msg.data.(moderationResult)
		m.modResult, m.modErr = res.result, res.err
		m.progressChan, m.doneChan = nil, nil
		if res.result != nil {
			m.logger.Info("moderation finished", "action", res.result.Action, "ok", res.result.Successful, "failed", res.result.Failed)
		}
		return m, nil
	}
	return m, nil
}

// switchView moves to v and starts its fetch. Every switch starts a new
// generation so results for the view being left are discarded.
func (m *Model) switchView(v ViewState) tea.Cmd {
	m.gen++
	m.view = v

	switch v {
	case LoginView:
		return m.form.focus()
	case DashboardView:
		m.warned = false
		m.notice = ""
		return m.loadDashboard()
	case SongsView:
		m.loading = true
		m.songsErr = nil
		return m.fetchSongs()
	}
	return nil
}

// loadDashboard fetches stats, or shows the missing-credential warning once per visit.
func (m *Model) loadDashboard() tea.Cmd {
	if _, err := m.sess.RequireCredential(); err != nil {
		m.loading = false
		if !m.warned {
			m.warned = true
			m.notice = err.Error()
			m.logger.Warn("dashboard opened without a credential")
		}
		return nil
	}
	m.loading = true
	m.statsErr = nil
	return m.fetchStats()
}

func (m *Model) handleNav(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.dashboard):
		return m.switchView(DashboardView), true
	case key.Matches(msg, m.keys.songs):
		return m.switchView(SongsView), true
	case key.Matches(msg, m.keys.settings):
		return m.switchView(SettingsView), true
	case key.Matches(msg, m.keys.next):
		switch m.view {
		case DashboardView:
			return m.switchView(SongsView), true
		case SongsView:
			return m.switchView(SettingsView), true
		default:
			return m.switchView(DashboardView), true
		}
	}
	return nil, false
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		return m, m.form.cycle()
	case "enter":
		if m.form.focused == fieldEmail {
			return m, m.form.cycle()
		}
		return m, m.submitLogin()
	}

	return m, m.form.update(msg)
}

// submitLogin validates the form and starts a login unless one is in flight.
func (m *Model) submitLogin() tea.Cmd {
	if m.submitting || m.snap.Pending {
		return nil
	}

	email, password := m.form.values()
	if email == "" || password == "" {
		m.form.invalid = "Email and password are required"
		return nil
	}
	m.form.invalid = ""
	m.submitting = true

	return func() tea.Msg {
		return loginDoneMsg(m.sess.Login(m.ctx, email, password))
	}
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.handleNav(msg); ok {
		return m, cmd
	}
	if key.Matches(msg, m.keys.refresh) {
		m.gen++
		return m, m.loadDashboard()
	}
	return m, nil
}

func (m *Model) handleSongsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.songList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}

	if cmd, ok := m.handleNav(msg); ok {
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.refresh):
		return m, m.switchView(SongsView)
	case key.Matches(msg, m.keys.hide):
		return m, m.confirm(tasks.Hide)
	case key.Matches(msg, m.keys.unhide):
		return m, m.confirm(tasks.Unhide)
	case key.Matches(msg, m.keys.remove):
		return m, m.confirm(tasks.Delete)
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

// confirm asks before applying action to the selected song.
func (m *Model) confirm(action tasks.Action) tea.Cmd {
	item, ok := m.songList.SelectedItem().(songItem)
	if !ok {
		return nil
	}
	song := item.song
	m.action = action
	m.target = &song
	m.view = ConfirmView
	return nil
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ModerateView
		return m, m.startModeration()
	case key.Matches(msg, m.keys.no), msg.String() == "q":
		m.view = SongsView
		m.target = nil
	}
	return m, nil
}

func (m *Model) handleModerateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.progressChan != nil {
		return m, nil
	}
	switch msg.String() {
	case "enter", "esc", "r":
		m.target = nil
		return m, m.switchView(SongsView)
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if cmd, ok := m.handleNav(msg); ok {
		return m, cmd
	}
	if key.Matches(msg, m.keys.logout) && !m.snap.Pending {
		return m, func() tea.Msg {
			m.sess.Logout(m.ctx)
			return logoutDoneMsg()
		}
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case LoginView:
		cmd = m.form.update(msg)
	case SongsView:
		m.songList, cmd = m.songList.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.songList.SetSize(m.width-4, m.height-8)
	m.form.setWidth(m.width - 10)
	m.help.Width = m.width
}

func (m *Model) waitForSession() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return sessionChangedMsg()
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) fetchStats() tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		stats, err := m.content.Stats(m.ctx)
		return statsFetchedMsg(gen, stats, err)
	}
}

func (m *Model) fetchSongs() tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		songs, err := m.content.Songs(m.ctx, services.ListOptions{})
		return songsFetchedMsg(gen, songs, err)
	}
}

func (m *Model) startModeration() tea.Cmd {
	if m.target == nil {
		return nil
	}
	prog := make(chan tasks.ProgressUpdate, 50)
	done := make(chan Msg, 1)
	m.progressChan, m.doneChan = prog, done
	m.progress = tasks.ProgressUpdate{}
	m.modResult, m.modErr = nil, nil

	action, ids := m.action, []string{m.target.ID}
	go func() {
		result, err := m.moderator.Moderate(m.ctx, prog, action, ids, tasks.ModerateOpts{NumWorkers: 1})
		close(prog)
		done <- moderationDoneMsg(result, err)
	}()

	return waitForProgress(prog, done)
}

func waitForProgress(prog <-chan tasks.ProgressUpdate, done <-chan Msg) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-prog; ok {
			return moderationProgressMsg(update)
		}
		return <-done
	}
}

// actionVerb is the present participle shown while action runs.
func actionVerb(a tasks.Action) string {
	switch a {
	case tasks.Hide:
		return "Hiding"
	case tasks.Unhide:
		return "Unhiding"
	case tasks.Delete:
		return "Deleting"
	}
	return string(a)
}
