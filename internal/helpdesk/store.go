package helpdesk

import (
	"context"
	"sort"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/config"
	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
)

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 500

// ErrNotFound is returned when a user, agent or ticket does not exist.
var ErrNotFound = errors.New(errors.ErrCategoryQuery, errors.CodeNotFound, "helpdesk entity not found")

// Store runs helpdesk operations against one Redis database.
type Store struct {
	client *goredis.Client
	logger logrus.FieldLogger
	stats  *report.Stats
	now    func() time.Time
}

// Connect opens a client for cfg and pings the server.
func Connect(ctx context.Context, cfg config.RedisConfig, logger logrus.FieldLogger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewConnectionError("ping redis at "+cfg.Addr, err)
	}
	return NewStore(client, logger), nil
}

// NewStore wraps an existing client.
func NewStore(client *goredis.Client, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		client: client,
		logger: logger.WithField("component", "helpdesk"),
		stats:  report.NewStats(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for log entries and SLA deadlines.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Stats returns the collected operation timings.
func (s *Store) Stats() *report.Stats {
	return s.stats
}

func (s *Store) timed(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return s.stats.Time(ctx, op, fn)
}

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*errors.LabError); ok {
		return e
	}
	return errors.NewQueryError(op, err)
}

// CreateUser stores u and its email index.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	return s.timed(ctx, "create_user", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, UserKey(u.ID), u.fields())
			p.Set(ctx, EmailIndexKey(u.Email), u.ID, 0)
			return nil
		})
		return queryErr("create user "+u.ID, err)
	})
}

// CreateAgent stores a and its skill set.
func (s *Store) CreateAgent(ctx context.Context, a Agent) error {
	return s.timed(ctx, "create_agent", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, AgentKey(a.ID), a.fields())
			if len(a.Skills) > 0 {
				p.SAdd(ctx, AgentSkillsKey(a.ID), toArgs(a.Skills)...)
			}
			return nil
		})
		return queryErr("create agent "+a.ID, err)
	})
}

// CreateTicket stores t and queues it by priority. A preassigned agent gets
// the ticket in its open set; its load is left to Assign.
func (s *Store) CreateTicket(ctx context.Context, t Ticket) error {
	return s.timed(ctx, "create_ticket", func(ctx context.Context) error {
		key := TicketKey(t.ID)
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key, t.fields())
			p.ZAdd(ctx, PriorityQueueKey, goredis.Z{Score: float64(t.Priority), Member: key})
			if t.AssignedAgent != "" {
				p.SAdd(ctx, AgentOpenTicketsKey(t.AssignedAgent), key)
			}
			return nil
		})
		return queryErr("create ticket "+t.ID, err)
	})
}

// AppendLog appends events to the ticket log, each stamped with the clock.
func (s *Store) AppendLog(ctx context.Context, ticketID string, events ...string) error {
	if len(events) == 0 {
		return nil
	}
	return s.timed(ctx, "append_log", func(ctx context.Context) error {
		at := s.now()
		entries := make([]interface{}, len(events))
		for i, e := range events {
			entries[i] = LogEntry(at, e)
		}
		return queryErr("append log "+ticketID, s.client.RPush(ctx, TicketLogKey(ticketID), entries...).Err())
	})
}

// SetSequences sets the id counters.
func (s *Store) SetSequences(ctx context.Context, seqs map[string]int64) error {
	args := make([]interface{}, 0, 2*len(seqs))
	for name, v := range seqs {
		args = append(args, SeqKey(name), v)
	}
	return queryErr("set sequences", s.client.MSet(ctx, args...).Err())
}

// NextID increments the named counter and returns its new value.
func (s *Store) NextID(ctx context.Context, name string) (int64, error) {
	n, err := s.client.Incr(ctx, SeqKey(name)).Result()
	return n, queryErr("next id "+name, err)
}

// Assign gives ticketID to agentID and bumps the agent's load.
func (s *Store) Assign(ctx context.Context, ticketID, agentID string) error {
	return s.timed(ctx, "assign", func(ctx context.Context) error {
		key := TicketKey(ticketID)
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key, "assigned_agent", agentID)
			p.SAdd(ctx, AgentOpenTicketsKey(agentID), key)
			p.HIncrBy(ctx, AgentKey(agentID), "load", 1)
			return nil
		})
		return queryErr("assign "+ticketID, err)
	})
}

// UserByEmail resolves a user through the email index.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u *User
	err := s.timed(ctx, "user_by_email", func(ctx context.Context) error {
		id, err := s.client.Get(ctx, EmailIndexKey(email)).Result()
		if err == goredis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return queryErr("resolve email "+email, err)
		}
		u, err = s.User(ctx, id)
		return err
	})
	return u, err
}

// User loads one user hash.
func (s *Store) User(ctx context.Context, id string) (*User, error) {
	h, err := s.client.HGetAll(ctx, UserKey(id)).Result()
	if err != nil {
		return nil, queryErr("get user "+id, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return userFromHash(id, h)
}

// Agent loads one agent hash and its skills.
func (s *Store) Agent(ctx context.Context, id string) (*Agent, error) {
	h, err := s.client.HGetAll(ctx, AgentKey(id)).Result()
	if err != nil {
		return nil, queryErr("get agent "+id, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	a, err := agentFromHash(id, h)
	if err != nil {
		return nil, err
	}
	if a.Skills, err = s.client.SMembers(ctx, AgentSkillsKey(id)).Result(); err != nil {
		return nil, queryErr("get skills "+id, err)
	}
	sort.Strings(a.Skills)
	return a, nil
}

// Ticket loads one ticket hash.
func (s *Store) Ticket(ctx context.Context, id string) (*Ticket, error) {
	h, err := s.client.HGetAll(ctx, TicketKey(id)).Result()
	if err != nil {
		return nil, queryErr("get ticket "+id, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return ticketFromHash(id, h)
}

// QueueEntry is one ticket in the priority queue.
type QueueEntry struct {
	TicketID string
	Priority float64
}

// TopPriority returns the n highest priority tickets, highest first.
func (s *Store) TopPriority(ctx context.Context, n int) ([]QueueEntry, error) {
	var out []QueueEntry
	err := s.timed(ctx, "top_priority", func(ctx context.Context) error {
		zs, err := s.client.ZRevRangeWithScores(ctx, PriorityQueueKey, 0, int64(n-1)).Result()
		if err != nil {
			return queryErr("top priority", err)
		}
		for _, z := range zs {
			key, _ := z.Member.(string)
			out = append(out, QueueEntry{TicketID: TicketID(key), Priority: z.Score})
		}
		return nil
	})
	return out, err
}

// AgentOpenTickets returns the tickets in the agent's open set sorted by id.
func (s *Store) AgentOpenTickets(ctx context.Context, agentID string) ([]Ticket, error) {
	var out []Ticket
	err := s.timed(ctx, "agent_open_tickets", func(ctx context.Context) error {
		keys, err := s.client.SMembers(ctx, AgentOpenTicketsKey(agentID)).Result()
		if err != nil {
			return queryErr("open tickets "+agentID, err)
		}
		sort.Strings(keys)
		for _, key := range keys {
			t, err := s.Ticket(ctx, TicketID(key))
			if err == ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, *t)
		}
		return nil
	})
	return out, err
}

// TicketLog returns every log entry of a ticket, oldest first.
func (s *Store) TicketLog(ctx context.Context, ticketID string) ([]string, error) {
	entries, err := s.client.LRange(ctx, TicketLogKey(ticketID), 0, -1).Result()
	return entries, queryErr("ticket log "+ticketID, err)
}

// CountByStatus scans the ticket hashes and counts them per status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.timed(ctx, "count_by_status", func(ctx context.Context) error {
		return s.scan(ctx, TicketKey("*"), func(key string) error {
			if TicketID(key) == "" {
				return nil
			}
			status, err := s.client.HGet(ctx, key, "status").Result()
			if err != nil && err != goredis.Nil {
				return queryErr("status of "+key, err)
			}
			counts[status]++
			return nil
		})
	})
	return counts, err
}

// AgentsWithSkill returns the agents whose skill set contains skill, sorted
// by id.
func (s *Store) AgentsWithSkill(ctx context.Context, skill string) ([]Agent, error) {
	var out []Agent
	err := s.timed(ctx, "agents_with_skill", func(ctx context.Context) error {
		var ids []string
		err := s.scan(ctx, AgentSkillsKey("*"), func(key string) error {
			id := AgentIDFromSkillsKey(key)
			if id == "" {
				return nil
			}
			ok, err := s.client.SIsMember(ctx, key, skill).Result()
			if err != nil {
				return queryErr("skill check "+key, err)
			}
			if ok {
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		sort.Strings(ids)
		for _, id := range ids {
			a, err := s.Agent(ctx, id)
			if err != nil {
				return err
			}
			out = append(out, *a)
		}
		return nil
	})
	return out, err
}

// SetStatus moves a ticket to status and logs the transition.
func (s *Store) SetStatus(ctx context.Context, ticketID, status string) error {
	return s.timed(ctx, "set_status", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, TicketKey(ticketID), "status", status)
			p.RPush(ctx, TicketLogKey(ticketID), LogEntry(s.now(), status))
			return nil
		})
		return queryErr("set status "+ticketID, err)
	})
}

// Reassign moves a ticket from one agent to another, adjusting both loads.
func (s *Store) Reassign(ctx context.Context, ticketID, from, to string) error {
	return s.timed(ctx, "reassign", func(ctx context.Context) error {
		key := TicketKey(ticketID)
		_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key, "assigned_agent", to)
			p.SRem(ctx, AgentOpenTicketsKey(from), key)
			p.SAdd(ctx, AgentOpenTicketsKey(to), key)
			p.HIncrBy(ctx, AgentKey(from), "load", -1)
			p.HIncrBy(ctx, AgentKey(to), "load", 1)
			p.RPush(ctx, TicketLogKey(ticketID), LogEntry(s.now(), "reassigned "+from+"→"+to))
			return nil
		})
		return queryErr("reassign "+ticketID, err)
	})
}

// ExtendSLA sets the ticket's SLA deadline to now plus d.
func (s *Store) ExtendSLA(ctx context.Context, ticketID string, d time.Duration) (time.Time, error) {
	due := s.now().Add(d)
	err := s.timed(ctx, "extend_sla", func(ctx context.Context) error {
		return queryErr("extend sla "+ticketID, s.client.HSet(ctx, TicketKey(ticketID), "sla_due_at", formatTime(due)).Err())
	})
	return due, err
}

// UpdateSubject replaces the ticket subject.
func (s *Store) UpdateSubject(ctx context.Context, ticketID, subject string) error {
	return s.timed(ctx, "update_subject", func(ctx context.Context) error {
		return queryErr("update subject "+ticketID, s.client.HSet(ctx, TicketKey(ticketID), "subject", subject).Err())
	})
}

// AgentLoad returns the agent's load counter.
func (s *Store) AgentLoad(ctx context.Context, agentID string) (int, error) {
	n, err := s.client.HGet(ctx, AgentKey(agentID), "load").Int()
	if err == goredis.Nil {
		return 0, ErrNotFound
	}
	return n, queryErr("agent load "+agentID, err)
}

// CloseTicket closes a ticket: it leaves the queue and its agent's open set
// and the agent's load drops by one.
func (s *Store) CloseTicket(ctx context.Context, ticketID string) error {
	return s.timed(ctx, "close_ticket", func(ctx context.Context) error {
		key := TicketKey(ticketID)
		agent, err := s.client.HGet(ctx, key, "assigned_agent").Result()
		if err == goredis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return queryErr("close "+ticketID, err)
		}
		_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key, "status", StatusClosed)
			p.ZRem(ctx, PriorityQueueKey, key)
			if agent != "" {
				p.SRem(ctx, AgentOpenTicketsKey(agent), key)
				p.HIncrBy(ctx, AgentKey(agent), "load", -1)
			}
			p.RPush(ctx, TicketLogKey(ticketID), LogEntry(s.now(), StatusClosed))
			return nil
		})
		return queryErr("close "+ticketID, err)
	})
}

// DeleteTicket removes a ticket, its log and its queue entry.
func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	return s.timed(ctx, "delete_ticket", func(ctx context.Context) error {
		key := TicketKey(ticketID)
		agent, err := s.client.HGet(ctx, key, "assigned_agent").Result()
		if err != nil && err != goredis.Nil {
			return queryErr("delete "+ticketID, err)
		}
		_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key, TicketLogKey(ticketID))
			p.ZRem(ctx, PriorityQueueKey, key)
			if agent != "" {
				p.SRem(ctx, AgentOpenTicketsKey(agent), key)
			}
			return nil
		})
		return queryErr("delete "+ticketID, err)
	})
}

// DeleteUser removes a user and its email index entry.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.timed(ctx, "delete_user", func(ctx context.Context) error {
		email, err := s.client.HGet(ctx, UserKey(userID), "email").Result()
		if err == goredis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return queryErr("delete user "+userID, err)
		}
		return queryErr("delete user "+userID, s.client.Del(ctx, UserKey(userID), EmailIndexKey(email)).Err())
	})
}

// KeyTypes returns the Redis type of each key.
func (s *Store) KeyTypes(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		t, err := s.client.Type(ctx, k).Result()
		if err != nil {
			return nil, queryErr("type "+k, err)
		}
		out[k] = t
	}
	return out, nil
}

// Cleanup deletes every key outside the helpdesk prefix and returns how
// many were removed.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	return s.deleteMatching(ctx, "cleanup", "*", func(key string) bool {
		return !strings.HasPrefix(key, Prefix)
	})
}

// Purge deletes every helpdesk key.
func (s *Store) Purge(ctx context.Context) (int, error) {
	return s.deleteMatching(ctx, "purge", Prefix+"*", func(string) bool { return true })
}

func (s *Store) deleteMatching(ctx context.Context, op, pattern string, keep func(string) bool) (int, error) {
	var deleted int
	err := s.timed(ctx, op, func(ctx context.Context) error {
		var keys []string
		if err := s.scan(ctx, pattern, func(key string) error {
			if keep(key) {
				keys = append(keys, key)
			}
			return nil
		}); err != nil {
			return err
		}
		for len(keys) > 0 {
			n := scanCount
			if n > len(keys) {
				n = len(keys)
			}
			removed, err := s.client.Del(ctx, keys[:n]...).Result()
			if err != nil {
				return queryErr(op, err)
			}
			deleted += int(removed)
			keys = keys[n:]
		}
		return nil
	})
	if err == nil {
		s.logger.WithFields(logrus.Fields{"op": op, "deleted": deleted}).Info("keys deleted")
	}
	return deleted, err
}

func (s *Store) scan(ctx context.Context, match string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return queryErr("scan "+match, iter.Err())
}

func toArgs(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
