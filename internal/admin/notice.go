package admin

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the kind of a notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a transient message for the user. A notice with a TTL is
// dismissed automatically once it expires.
type Notice struct {
	ID       string
	Severity Severity
	Message  string
	TTL      time.Duration
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
	Dismiss(id string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice)  {}
func (nopNotifier) Dismiss(string) {}

func newNotice(sev Severity, msg string) Notice {
	return Notice{ID: uuid.NewString(), Severity: sev, Message: msg}
}
