package helpdesk

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ModelKeys lists the keys SetupModel creates.
var ModelKeys = []string{
	UserKey("U001"),
	EmailIndexKey("alice@example.com"),
	AgentKey("A001"),
	AgentSkillsKey("A001"),
	TicketKey("T001"),
	TicketLogKey("T001"),
	PriorityQueueKey,
	AgentOpenTicketsKey("A001"),
}

// SetupModel creates one entity of each kind and the id counters, and
// returns the Redis type of every key it wrote.
func (s *Store) SetupModel(ctx context.Context) (map[string]string, error) {
	joined := time.Date(2025, time.October, 5, 8, 0, 0, 0, time.UTC)
	created := joined.Add(5 * time.Minute)

	if err := s.CreateUser(ctx, User{ID: "U001", Name: "Alice Smith", Email: "alice@example.com", Phone: "111-1111", JoinedAt: joined}); err != nil {
		return nil, err
	}
	if err := s.CreateAgent(ctx, Agent{ID: "A001", Name: "Agent One", Email: "a1@support.com", Skills: []string{"returns", "billing"}}); err != nil {
		return nil, err
	}
	if err := s.CreateTicket(ctx, Ticket{
		ID:            "T001",
		UserID:        "U001",
		Subject:       "Payment failed",
		Status:        StatusOpen,
		Priority:      20,
		CreatedAt:     created,
		AssignedAgent: "A001",
		SLADueAt:      created.Add(72 * time.Hour),
	}); err != nil {
		return nil, err
	}
	if err := queryErr("log T001", s.client.RPush(ctx, TicketLogKey("T001"), LogEntry(created.Add(time.Minute), "created")).Err()); err != nil {
		return nil, err
	}
	if err := s.SetSequences(ctx, map[string]int64{SeqUsers: 1, SeqAgents: 1, SeqTickets: 1}); err != nil {
		return nil, err
	}

	types, err := s.KeyTypes(ctx, ModelKeys...)
	if err != nil {
		return nil, err
	}
	for _, k := range ModelKeys {
		s.logger.WithFields(logrus.Fields{"key": k, "type": types[k]}).Info("model key")
	}
	return types, nil
}

type ticketSeed struct {
	ID       string
	UserID   string
	Subject  string
	Priority int
}

// Fixtures used by the CRUD tasks.
var (
	crudUsers = []User{
		{ID: "U002", Name: "Bilal Shah", Email: "bilal@example.com", Phone: "111-2222"},
		{ID: "U003", Name: "Fatima Noor", Email: "fatima@example.com", Phone: "111-3333"},
		{ID: "U004", Name: "Omar Qureshi", Email: "omar@example.com", Phone: "111-4444"},
		{ID: "U005", Name: "Sara Iqbal", Email: "sara@example.com", Phone: "111-5555"},
		{ID: "U006", Name: "Hassan Ahmed", Email: "hassan@example.com", Phone: "111-6666"},
	}
	crudAgents = []Agent{
		{ID: "A002", Name: "Ayesha", Skills: []string{"returns", "billing"}},
		{ID: "A003", Name: "Usman", Skills: []string{"technical", "orders"}},
		{ID: "A004", Name: "Bilal Agent", Skills: []string{"shipping", "returns"}},
	}
	crudTickets = []ticketSeed{
		{"T002", "U002", "Refund request", 5},
		{"T003", "U003", "App crashes on checkout", 10},
		{"T004", "U004", "Urgent: account hacked", 20},
		{"T005", "U005", "Wrong item delivered", 5},
		{"T006", "U006", "Payment failed", 1},
		{"T007", "U002", "Shipping delay", 10},
		{"T008", "U003", "Account locked", 20},
		{"T009", "U004", "Change address", 1},
	}
	crudAssignments = [][2]string{{"T002", "A002"}, {"T003", "A003"}, {"T004", "A002"}}
)

// CreateData creates five users, three agents and eight tickets, assigns
// three tickets and writes two log entries per ticket.
func (s *Store) CreateData(ctx context.Context) error {
	now := s.now()
	for _, u := range crudUsers {
		u.JoinedAt = now
		if err := s.CreateUser(ctx, u); err != nil {
			return err
		}
	}
	for _, a := range crudAgents {
		if err := s.CreateAgent(ctx, a); err != nil {
			return err
		}
	}
	for _, t := range crudTickets {
		if err := s.CreateTicket(ctx, Ticket{
			ID:        t.ID,
			UserID:    t.UserID,
			Subject:   t.Subject,
			Status:    StatusOpen,
			Priority:  t.Priority,
			CreatedAt: now,
			SLADueAt:  now.Add(24 * time.Hour),
		}); err != nil {
			return err
		}
	}
	for _, as := range crudAssignments {
		if err := s.Assign(ctx, as[0], as[1]); err != nil {
			return err
		}
	}
	for _, t := range crudTickets {
		if err := s.AppendLog(ctx, t.ID, "created", "awaiting agent"); err != nil {
			return err
		}
	}
	s.logger.WithFields(logrus.Fields{
		"users":    len(crudUsers),
		"agents":   len(crudAgents),
		"tickets":  len(crudTickets),
		"assigned": len(crudAssignments),
	}).Info("create tasks finished")
	return nil
}

// ReadResult collects what the read tasks observed.
type ReadResult struct {
	UserByEmail   *User
	TopPriority   []QueueEntry
	AgentTickets  []Ticket
	TicketLog     []string
	StatusCounts  map[string]int
	ReturnsAgents []Agent
}

// ReadTasks runs the six read tasks.
func (s *Store) ReadTasks(ctx context.Context) (*ReadResult, error) {
	res := &ReadResult{}
	var err error
	if res.UserByEmail, err = s.UserByEmail(ctx, "fatima@example.com"); err != nil {
		return res, err
	}
	if res.TopPriority, err = s.TopPriority(ctx, 3); err != nil {
		return res, err
	}
	if res.AgentTickets, err = s.AgentOpenTickets(ctx, "A002"); err != nil {
		return res, err
	}
	if res.TicketLog, err = s.TicketLog(ctx, "T004"); err != nil {
		return res, err
	}
	if res.StatusCounts, err = s.CountByStatus(ctx); err != nil {
		return res, err
	}
	if res.ReturnsAgents, err = s.AgentsWithSkill(ctx, "returns"); err != nil {
		return res, err
	}
	s.logger.WithFields(logrus.Fields{
		"user":           res.UserByEmail.ID,
		"top":            len(res.TopPriority),
		"agent_tickets":  len(res.AgentTickets),
		"log_entries":    len(res.TicketLog),
		"status_counts":  res.StatusCounts,
		"returns_agents": len(res.ReturnsAgents),
	}).Info("read tasks finished")
	return res, nil
}

// UpdateResult holds the agent loads after the update tasks.
type UpdateResult struct {
	Loads    map[string]int
	SLADueAt time.Time
}

// UpdateTasks walks T002 through in_progress and on_hold, reassigns T004
// from A002 to A003, extends T002's SLA by three days and fixes its subject.
func (s *Store) UpdateTasks(ctx context.Context) (*UpdateResult, error) {
	res := &UpdateResult{Loads: make(map[string]int)}
	for _, st := range []string{StatusInProgress, StatusOnHold} {
		if err := s.SetStatus(ctx, "T002", st); err != nil {
			return res, err
		}
	}
	if err := s.Reassign(ctx, "T004", "A002", "A003"); err != nil {
		return res, err
	}
	var err error
	if res.SLADueAt, err = s.ExtendSLA(ctx, "T002", 72*time.Hour); err != nil {
		return res, err
	}
	for _, id := range []string{"A002", "A003"} {
		if res.Loads[id], err = s.AgentLoad(ctx, id); err != nil {
			return res, err
		}
	}
	if err := s.UpdateSubject(ctx, "T002", "Refund request (updated)"); err != nil {
		return res, err
	}
	s.logger.WithField("loads", res.Loads).Info("update tasks finished")
	return res, nil
}

// DeleteTasks closes T003, hard deletes T005 and removes user U005.
func (s *Store) DeleteTasks(ctx context.Context) error {
	if err := s.CloseTicket(ctx, "T003"); err != nil {
		return err
	}
	if err := s.DeleteTicket(ctx, "T005"); err != nil {
		return err
	}
	if err := s.DeleteUser(ctx, "U005"); err != nil {
		return err
	}
	s.logger.Info("delete tasks finished")
	return nil
}
