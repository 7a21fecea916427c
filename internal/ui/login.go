package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldEmail = iota
	fieldPassword
)

// loginForm holds the email and password inputs.
type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focused  int
	invalid  string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "admin@example.com"
	email.Prompt = "Email    "
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	return loginForm{email: email, password: password}
}

func (f *loginForm) values() (string, string) {
	return strings.TrimSpace(f.email.Value()), f.password.Value()
}

func (f *loginForm) focus() tea.Cmd {
	if f.focused == fieldPassword {
		f.email.Blur()
		return f.password.Focus()
	}
	f.password.Blur()
	return f.email.Focus()
}

func (f *loginForm) cycle() tea.Cmd {
	f.focused = (f.focused + 1) % 2
	return f.focus()
}

// reset clears the password and focuses it, keeping the email for the next login.
func (f *loginForm) reset() {
	f.password.Reset()
	f.invalid = ""
	f.focused = fieldPassword
}

func (f *loginForm) setWidth(w int) {
	if w < 20 {
		w = 20
	}
	f.email.Width = w
	f.password.Width = w
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focused == fieldEmail {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func (f *loginForm) view() string {
	return f.email.View() + "\n" + f.password.View()
}
