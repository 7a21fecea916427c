package session

import (
	"github.com/desertthunder/apostle/internal/models"
)

// Snapshot is the observable state of the session. Values are copies; mutating
// one has no effect on the [Service].
type Snapshot struct {
	Principal         *models.Principal
	Authenticated     bool
	AccessCredential  string
	RefreshCredential string
	Pending           bool
	LastError         string
}

// Empty reports whether the snapshot holds no identity and no credential.
func (s Snapshot) Empty() bool {
	return !s.Authenticated && s.Principal == nil && s.AccessCredential == "" && s.RefreshCredential == ""
}

func (s Snapshot) clone() Snapshot {
	if s.Principal != nil {
		p := *s.Principal
		s.Principal = &p
	}
	return s
}

// EventKind names a session transition.
type EventKind int

const (
	LoginStarted EventKind = iota + 1
	RegisterStarted
	LogoutStarted
	LoginSucceeded
	RegisterSucceeded
	OperationFailed
	LoggedOut
	ErrorCleared
	Rehydrated
	CredentialsCleared
)

var eventNames = map[EventKind]string{
	LoginStarted:       "login_started",
	RegisterStarted:    "register_started",
	LogoutStarted:      "logout_started",
	LoginSucceeded:     "login_succeeded",
	RegisterSucceeded:  "register_succeeded",
	OperationFailed:    "operation_failed",
	LoggedOut:          "logged_out",
	ErrorCleared:       "error_cleared",
	Rehydrated:         "rehydrated",
	CredentialsCleared: "credentials_cleared",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a transition request. Only the fields relevant to Kind are read.
type Event struct {
	Kind      EventKind
	Principal *models.Principal
	Access    string
	Refresh   string
	Message   string
	// Restored is the state loaded by [Rehydrated].
	Restored Snapshot
}

// Reduce computes the state that follows prev after ev. It has no side effects.
func Reduce(prev Snapshot, ev Event) Snapshot {
	next := prev.clone()

	switch ev.Kind {
	case LoginStarted, RegisterStarted:
		next.Pending = true
		next.LastError = ""
	case LogoutStarted:
		next.Pending = true
	case LoginSucceeded, RegisterSucceeded:
		next.Authenticated = true
		next.Pending = false
		next.LastError = ""
		next.Principal = ev.Principal
		next.AccessCredential = ev.Access
		if ev.Refresh != "" {
			next.RefreshCredential = ev.Refresh
		}
	case OperationFailed:
		next.Pending = false
		next.LastError = ev.Message
	case LoggedOut, CredentialsCleared:
		next = Snapshot{}
	case ErrorCleared:
		next.LastError = ""
	case Rehydrated:
		next = ev.Restored.clone()
		next.Pending = false
		next.LastError = ""
	}

	if next.Principal != nil && next.Principal == ev.Principal {
		p := *ev.Principal
		next.Principal = &p
	}
	return next
}
