// Package helpdesk models a support helpdesk in Redis: users, agents,
// tickets with activity logs, and a priority queue, all under the help:
// key prefix.
package helpdesk

import "strings"

// Prefix namespaces every helpdesk key.
const Prefix = "help:"

// PriorityQueueKey is the sorted set of ticket keys scored by priority.
const PriorityQueueKey = Prefix + "queue:priority"

// Sequence names for the id counters.
const (
	SeqUsers   = "users"
	SeqAgents  = "agents"
	SeqTickets = "tickets"
)

func UserKey(id string) string { return Prefix + "user:" + id }

func EmailIndexKey(email string) string { return Prefix + "idx:user_email:" + email }

func AgentKey(id string) string { return Prefix + "agent:" + id }

func AgentSkillsKey(id string) string { return AgentKey(id) + ":skills" }

func AgentOpenTicketsKey(id string) string { return AgentKey(id) + ":open_tickets" }

func TicketKey(id string) string { return Prefix + "ticket:" + id }

func TicketLogKey(id string) string { return TicketKey(id) + ":log" }

func SeqKey(name string) string { return Prefix + "seq:" + name }

// TicketID returns the id of a ticket hash key, or "" when key is not one
// (log lists and other ticket sub-keys included).
func TicketID(key string) string {
	rest := strings.TrimPrefix(key, Prefix+"ticket:")
	if rest == key || rest == "" || strings.Contains(rest, ":") {
		return ""
	}
	return rest
}

// AgentIDFromSkillsKey extracts the agent id from a skills set key.
func AgentIDFromSkillsKey(key string) string {
	rest := strings.TrimPrefix(key, Prefix+"agent:")
	if rest == key || !strings.HasSuffix(rest, ":skills") {
		return ""
	}
	id := strings.TrimSuffix(rest, ":skills")
	if id == "" || strings.Contains(id, ":") {
		return ""
	}
	return id
}
