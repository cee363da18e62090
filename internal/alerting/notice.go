package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/coresight/coresight/internal/models"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Notice is one message to deliver: an alert, the entity it concerns and
// whether it announces the alert's resolution. Every provider renders
// its text through the methods below.
type Notice struct {
	Alert    models.Alert `json:"alert"`
	Entity   string       `json:"entity,omitempty"`
	Address  string       `json:"address,omitempty"`
	Resolved bool         `json:"resolved"`
}

// NewNotice builds a Notice. e may be nil.
func NewNotice(a *models.Alert, e *models.Entity, resolved bool) *Notice {
	n := &Notice{Alert: *a, Resolved: resolved}
	if e != nil {
		n.Entity = e.Label()
		if e.Address != n.Entity {
			n.Address = e.Address
		}
	}
	return n
}

// Target names the entity as "name (address)".
func (n *Notice) Target() string {
	switch {
	case n.Entity != "" && n.Address != "":
		return fmt.Sprintf("%s (%s)", n.Entity, n.Address)
	case n.Entity != "":
		return n.Entity
	default:
		return n.Address
	}
}

// Title is the headline, e.g. "[CoreSight CRITICAL] availability alert on db1".
func (n *Notice) Title() string {
	tag := strings.ToUpper(n.Alert.Severity)
	if n.Resolved {
		tag = "RESOLVED"
	}
	title := fmt.Sprintf("[CoreSight %s] %s alert", tag, n.Alert.Type)
	if n.Entity != "" {
		title += " on " + n.Entity
	}
	return title
}

// Text is the human message. Resolutions say how long the alert was open.
func (n *Notice) Text() string {
	if !n.Resolved {
		return n.Alert.Message
	}
	if n.Alert.ResolvedAt != nil && !n.Alert.CreatedAt.IsZero() {
		open := n.Alert.ResolvedAt.Sub(n.Alert.CreatedAt).Round(time.Second)
		return fmt.Sprintf("Recovered after %s: %s", open, n.Alert.Message)
	}
	return "Recovered: " + n.Alert.Message
}

// Summary fits on one line, for SMS and chat channels.
func (n *Notice) Summary() string {
	s := n.Title() + ": " + n.Text()
	if n.Address != "" {
		s += " [" + n.Address + "]"
	}
	return s
}

// Body is the multi-line form used by email and push channels.
func (n *Notice) Body() string {
	var b strings.Builder
	b.WriteString(n.Text())
	b.WriteString("\n\n")
	if target := n.Target(); target != "" {
		fmt.Fprintf(&b, "Entity:   %s\n", target)
	}
	fmt.Fprintf(&b, "Type:     %s\n", n.Alert.Type)
	fmt.Fprintf(&b, "Severity: %s\n", n.Alert.Severity)
	created := n.Alert.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	fmt.Fprintf(&b, "Raised:   %s\n", created.UTC().Format(timeLayout))
	if n.Resolved && n.Alert.ResolvedAt != nil {
		fmt.Fprintf(&b, "Resolved: %s\n", n.Alert.ResolvedAt.UTC().Format(timeLayout))
	}
	return b.String()
}
