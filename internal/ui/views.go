package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/desertthunder/apostle/internal/tasks"
)

const placeholder = "—"

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoginView:
		return m.renderLogin()
	case DashboardView:
		return m.renderTabs() + m.renderDashboard()
	case SongsView:
		return m.renderTabs() + m.renderSongs()
	case ConfirmView:
		return m.renderConfirm()
	case ModerateView:
		return m.renderModerate()
	case SettingsView:
		return m.renderTabs() + m.renderSettings()
	default:
		return ""
	}
}

func (m *Model) renderTabs() string {
	names := []struct {
		view  ViewState
		label string
	}{
		{DashboardView, "Dashboard"},
		{SongsView, "Songs"},
		{SettingsView, "Settings"},
	}

	tabs := make([]string, len(names))
	for i, n := range names {
		if n.view == m.view {
			tabs[i] = styles.active.Render(n.label)
		} else {
			tabs[i] = styles.tab.Render(n.label)
		}
	}
	who := styles.label.Render("signed in as " + m.snap.Principal.Name())
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "  " + who + "\n\n"
}

func (m *Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Apostle Admin"))
	b.WriteString("\n")
	b.WriteString(m.form.view())
	b.WriteString("\n\n")

	switch {
	case m.submitting || m.snap.Pending:
		b.WriteString(styles.help.Render("Signing in..."))
	case m.form.invalid != "":
		b.WriteString(styles.err.Render(m.form.invalid))
	case m.snap.LastError != "":
		b.WriteString(styles.err.Render(m.snap.LastError))
	}
	b.WriteString("\n\n")

	submit := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in"))
	quit := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.next, submit, quit}))
	return b.String()
}

func (m *Model) renderDashboard() string {
	var b strings.Builder

	if m.notice != "" {
		b.WriteString(styles.warn.Render("⚠ "+m.notice) + "\n\n")
	}

	switch {
	case m.loading:
		b.WriteString(styles.help.Render("Loading stats..."))
	case m.statsErr != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Failed to load stats: %v", m.statsErr)))
	case m.stats != nil:
		counters := m.stats.Totals.Counters()
		cards := make([]string, len(counters))
		for i, c := range counters {
			cards[i] = styles.card.Render(styles.label.Render(c.Label) + "\n" + styles.value.Render(fmt.Sprint(c.Value)))
		}

		perRow := 4
		if m.width > 0 && m.width < 100 {
			perRow = 2
		}
		var rows []string
		for i := 0; i < len(cards); i += perRow {
			end := min(i+perRow, len(cards))
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
		}
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rows...))
		b.WriteString(fmt.Sprintf("\n\nTop category: %s    Top genre: %s",
			styles.value.Render(m.stats.TopCategory()), styles.value.Render(m.stats.TopGenre())))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.next, m.keys.quit}))
	return b.String()
}

func (m *Model) renderSongs() string {
	var body string
	switch {
	case m.loading && len(m.songs) == 0:
		body = styles.help.Render("Loading songs...")
	case m.songsErr != nil:
		body = styles.err.Render(fmt.Sprintf("Failed to load songs: %v", m.songsErr))
	default:
		body = m.songList.View()
	}

	helpKeys := []key.Binding{m.keys.hide, m.keys.unhide, m.keys.remove, m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", body, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderConfirm() string {
	if m.target == nil {
		return ""
	}
	title := styles.title.Render(fmt.Sprintf("%s '%s'?", strings.ToUpper(string(m.action[:1]))+string(m.action[1:]), m.target.Title))

	info := fmt.Sprintf("ID: %s\nVisibility: %s", m.target.ID, shared.VisibilityString(m.target.Hidden))
	if m.action == tasks.Delete {
		info += "\n\n" + styles.warn.Render("Deleting a song cannot be undone.")
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderModerate() string {
	if m.progressChan != nil {
		title := styles.title.Render(actionVerb(m.action) + " song")
		return fmt.Sprintf("%s\n\n%s (%d/%d)\n%s", title, m.progress.Phase, m.progress.Step, m.progress.Total, m.progress.Message)
	}

	var status string
	switch {
	case m.modErr != nil:
		status = styles.err.Render(fmt.Sprintf("Moderation failed: %v", m.modErr))
	case m.modResult == nil:
		status = styles.err.Render("No result available")
	case m.modResult.Failed > 0:
		status = styles.err.Render(fmt.Sprintf("%s failed for %d of %d songs", actionVerb(m.modResult.Action), m.modResult.Failed, m.modResult.Total))
		for _, r := range m.modResult.Results {
			if r.Error != nil {
				status += fmt.Sprintf("\n  • %s: %v", r.SongID, r.Error)
			}
		}
	default:
		status = styles.ok.Render(fmt.Sprintf("✓ %s applied to %d song(s)", m.modResult.Action, m.modResult.Successful))
	}

	back := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "back to songs"))
	return fmt.Sprintf("%s\n\n%s", status, m.help.ShortHelpView([]key.Binding{back, m.keys.quit}))
}

func (m *Model) renderSettings() string {
	p := m.snap.Principal
	email, phone, id := placeholder, placeholder, placeholder
	if p != nil {
		email = orPlaceholder(p.Email)
		phone = orPlaceholder(p.PhoneNumber)
		id = orPlaceholder(p.ID)
	}

	status := styles.ok.Render("Authenticated")
	if !m.snap.Authenticated {
		status = styles.warn.Render("Signed out")
	}

	rows := [][2]string{
		{"Name", p.Name()},
		{"Email", email},
		{"Phone", phone},
		{"Admin ID", id},
		{"Session", status},
		{"Credential", shared.MaskToken(m.snap.AccessCredential)},
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("Profile"))
	b.WriteString("\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n", styles.label.Render(fmt.Sprintf("%-11s", r[0])), r[1]))
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.logout, m.keys.next, m.keys.quit}))
	return b.String()
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
