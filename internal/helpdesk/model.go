package helpdesk

import (
	"strconv"
	"time"

	"github.com/storelabs/storelabs/internal/errors"
)

// TimeLayout is the timestamp layout stored in hashes and log entries.
const TimeLayout = "2006-01-02T15:04:05Z"

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusClosed     = "closed"
)

// User is a helpdesk customer.
type User struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	JoinedAt time.Time
}

func (u User) fields() map[string]interface{} {
	return map[string]interface{}{
		"name":      u.Name,
		"email":     u.Email,
		"phone":     u.Phone,
		"joined_at": formatTime(u.JoinedAt),
	}
}

func userFromHash(id string, h map[string]string) (*User, error) {
	joined, err := parseTime(h["joined_at"])
	if err != nil {
		return nil, errors.NewMalformedRecord("user "+id+" joined_at", err)
	}
	return &User{ID: id, Name: h["name"], Email: h["email"], Phone: h["phone"], JoinedAt: joined}, nil
}

// Agent is a support agent. Load counts the tickets assigned to it.
type Agent struct {
	ID     string
	Name   string
	Email  string
	Load   int
	Skills []string
}

func (a Agent) fields() map[string]interface{} {
	f := map[string]interface{}{
		"name": a.Name,
		"load": a.Load,
	}
	if a.Email != "" {
		f["email"] = a.Email
	}
	return f
}

func agentFromHash(id string, h map[string]string) (*Agent, error) {
	a := &Agent{ID: id, Name: h["name"], Email: h["email"]}
	if v := h["load"]; v != "" {
		load, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.NewMalformedRecord("agent "+id+" load", err)
		}
		a.Load = load
	}
	return a, nil
}

// Ticket is a support request.
type Ticket struct {
	ID            string
	UserID        string
	Subject       string
	Status        string
	Priority      int
	CreatedAt     time.Time
	AssignedAgent string
	SLADueAt      time.Time
}

func (t Ticket) fields() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        t.UserID,
		"subject":        t.Subject,
		"status":         t.Status,
		"priority":       t.Priority,
		"created_at":     formatTime(t.CreatedAt),
		"assigned_agent": t.AssignedAgent,
		"sla_due_at":     formatTime(t.SLADueAt),
	}
}

func ticketFromHash(id string, h map[string]string) (*Ticket, error) {
	t := &Ticket{
		ID:            id,
		UserID:        h["user_id"],
		Subject:       h["subject"],
		Status:        h["status"],
		AssignedAgent: h["assigned_agent"],
	}
	var err error
	if t.Priority, err = strconv.Atoi(h["priority"]); err != nil {
		return nil, errors.NewMalformedRecord("ticket "+id+" priority", err)
	}
	if t.CreatedAt, err = parseTime(h["created_at"]); err != nil {
		return nil, errors.NewMalformedRecord("ticket "+id+" created_at", err)
	}
	if t.SLADueAt, err = parseTime(h["sla_due_at"]); err != nil {
		return nil, errors.NewMalformedRecord("ticket "+id+" sla_due_at", err)
	}
	return t, nil
}

// LogEntry renders one ticket log line.
func LogEntry(at time.Time, event string) string {
	return formatTime(at) + ": " + event
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(TimeLayout, s)
}
