package client

import (
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Gee2424/HubFreelance-sub001/internal/cache"
	"github.com/Gee2424/HubFreelance-sub001/internal/conversation"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// AuthResponse is returned by login and token exchange.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      data.User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func validateCredentials(email, password string) error {
	var v validator
	_, err := mail.ParseAddress(email)
	v.check(err == nil, "email", "must be a valid email address")
	v.check(len(password) >= 6, "password", "must be at least 6 characters")
	return v.err()
}

// Login signs in with a local credential and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, credentials{email, password}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Exchange trades an identity-provider access token for a local token.
func (c *Client) Exchange(ctx context.Context, accessToken string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"accessToken": accessToken}
	if err := c.do(ctx, http.MethodPost, "/api/auth/exchange", nil, in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (*data.User, error) {
	u, err := read[data.User](ctx, c, MeKey())
	if u.ID == 0 {
		return nil, err
	}
	return &u, err
}

// NewUser is the body of the sign-up mirror endpoint.
type NewUser struct {
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	Password   string    `json:"password"`
	Role       data.Role `json:"role"`
	ProviderID string    `json:"providerId,omitempty"`
}

// Validate checks u before it is sent.
func (u NewUser) Validate() error {
	var v validator
	_, err := mail.ParseAddress(u.Email)
	v.check(err == nil, "email", "must be a valid email address")
	v.check(strings.TrimSpace(u.Username) != "", "username", "is required")
	v.check(len(u.Password) >= 6, "password", "must be at least 6 characters")
	v.check(u.Role == "" || u.Role.Valid(), "role", "is not a known role")
	return v.err()
}

// CreateUser creates the local account.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*data.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	var out data.User
	err := c.cache.Mutate(ctx, cache.Mutation{InvalidatePaths: []string{pathUsers}}, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, pathUsers, nil, u, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists accounts. Staff only.
func (c *Client) Users(ctx context.Context) ([]data.User, error) {
	return read[[]data.User](ctx, c, UsersKey())
}

// User returns one account.
func (c *Client) User(ctx context.Context, id int64) (*data.User, error) {
	u, err := read[data.User](ctx, c, UserKey(id))
	if u.ID == 0 {
		return nil, err
	}
	return &u, err
}

// UpdateUser edits a profile.
func (c *Client) UpdateUser(ctx context.Context, id int64, upd data.UserUpdate) (*data.User, error) {
	var v validator
	v.check(upd.Username == nil || strings.TrimSpace(*upd.Username) != "", "username", "must not be empty")
	v.check(upd.Role == nil || upd.Role.Valid(), "role", "is not a known role")
	if err := v.err(); err != nil {
		return nil, err
	}
	var out data.User
	m := cache.Mutation{
		Invalidates:     []cache.Key{MeKey()},
		InvalidatePaths: []string{pathUsers, UserKey(id).Path()},
	}
	err := c.cache.Mutate(ctx, m, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPatch, pathUsers+"/"+itoa(id), nil, upd, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// JobQuery selects jobs on the server.
type JobQuery struct {
	ClientID int64
	Status   data.JobStatus
	Category string
}

func (q JobQuery) values() url.Values {
	v := url.Values{}
	if q.ClientID != 0 {
		v.Set("clientId", itoa(q.ClientID))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

// Jobs lists jobs matching q.
func (c *Client) Jobs(ctx context.Context, q JobQuery) ([]data.Job, error) {
	return read[[]data.Job](ctx, c, JobsKey(q))
}

// Job returns one job.
func (c *Client) Job(ctx context.Context, id int64) (*data.Job, error) {
	j, err := read[data.Job](ctx, c, JobKey(id))
	if j.ID == 0 {
		return nil, err
	}
	return &j, err
}

// JobInput is the body of a new job posting.
type JobInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Skills      []string `json:"skills"`
	Budget      *float64 `json:"budget,omitempty"`
	HourlyRate  *float64 `json:"hourlyRate,omitempty"`
}

// Validate checks j before it is sent.
func (j JobInput) Validate() error {
	var v validator
	v.check(strings.TrimSpace(j.Title) != "", "title", "is required")
	v.check(strings.TrimSpace(j.Description) != "", "description", "is required")
	v.check(j.Budget == nil || *j.Budget > 0, "budget", "must be positive")
	v.check(j.HourlyRate == nil || *j.HourlyRate > 0, "hourlyRate", "must be positive")
	return v.err()
}

// CreateJob posts a job.
func (c *Client) CreateJob(ctx context.Context, j JobInput) (*data.Job, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	var out data.Job
	m := cache.Mutation{InvalidatePaths: []string{pathJobs, pathActivities}}
	err := c.cache.Mutate(ctx, m, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, pathJobs, nil, j, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Proposals lists proposals of jobID, or all visible ones for 0.
func (c *Client) Proposals(ctx context.Context, jobID int64) ([]data.Proposal, error) {
	return read[[]data.Proposal](ctx, c, ProposalsKey(jobID))
}

// ProposalInput is the body of a bid.
type ProposalInput struct {
	JobID             int64   `json:"jobId"`
	BidAmount         float64 `json:"bidAmount"`
	EstimatedDuration string  `json:"estimatedDuration"`
	CoverLetter       string  `json:"coverLetter"`
}

// Validate checks p before it is sent.
func (p ProposalInput) Validate() error {
	var v validator
	v.check(p.JobID > 0, "jobId", "is required")
	v.check(p.BidAmount > 0, "bidAmount", "must be positive")
	v.check(strings.TrimSpace(p.CoverLetter) != "", "coverLetter", "is required")
	return v.err()
}

// SubmitProposal bids on a job.
func (c *Client) SubmitProposal(ctx context.Context, p ProposalInput) (*data.Proposal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out data.Proposal
	m := cache.Mutation{InvalidatePaths: []string{pathProposals, pathActivities}}
	err := c.cache.Mutate(ctx, m, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, pathProposals, nil, p, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DecideProposal accepts or rejects a pending proposal.
func (c *Client) DecideProposal(ctx context.Context, id int64, status data.ProposalStatus) (*data.Proposal, error) {
	var v validator
	v.check(status == data.ProposalAccepted || status == data.ProposalRejected, "status", "must be accepted or rejected")
	if err := v.err(); err != nil {
		return nil, err
	}
	var out data.Proposal
	m := cache.Mutation{InvalidatePaths: []string{pathProposals, pathJobs, pathActivities}}
	err := c.cache.Mutate(ctx, m, func(ctx context.Context) error {
		in := map[string]data.ProposalStatus{"status": status}
		return c.do(ctx, http.MethodPatch, pathProposals+"/"+itoa(id), nil, in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Inbox returns every message involving the current user.
func (c *Client) Inbox(ctx context.Context) ([]data.Message, error) {
	return read[[]data.Message](ctx, c, InboxKey())
}

// Thread returns the messages exchanged with counterpartID, oldest first.
func (c *Client) Thread(ctx context.Context, counterpartID int64) ([]data.Message, error) {
	return read[[]data.Message](ctx, c, ThreadKey(counterpartID), cache.TTL(cache.ChatPollInterval))
}

// Conversations groups the inbox of userID by counterpart, newest first.
// n <= 0 returns all of them.
func (c *Client) Conversations(ctx context.Context, userID int64, n int) ([]conversation.Conversation, error) {
	msgs, err := c.Inbox(ctx)
	if msgs == nil && err != nil {
		return nil, err
	}
	convs := conversation.Aggregate(msgs, userID)
	if n > 0 {
		convs = conversation.Top(convs, n)
	}
	return convs, err
}

// MessageInput is the body of a new message.
type MessageInput struct {
	ReceiverID int64  `json:"receiverId"`
	JobID      *int64 `json:"jobId,omitempty"`
	Content    string `json:"content"`
}

// Validate checks m before it is sent.
func (m MessageInput) Validate() error {
	var v validator
	v.check(m.ReceiverID > 0, "receiverId", "is required")
	content := strings.TrimSpace(m.Content)
	v.check(content != "", "content", "must not be empty")
	v.check(utf8.RuneCountInString(content) <= data.MaxMessageLength, "content", "is too long")
	return v.err()
}

// SendMessage sends m. The thread shows the message at once; it is rolled
// back if the send fails.
func (c *Client) SendMessage(ctx context.Context, m MessageInput) (*data.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	pending := data.Message{ReceiverID: m.ReceiverID, JobID: m.JobID, Content: m.Content, CreatedAt: time.Now().UTC()}
	var out data.Message
	mut := cache.Mutation{
		Invalidates:     []cache.Key{ThreadKey(m.ReceiverID), InboxKey()},
		InvalidatePaths: []string{pathActivities},
		Optimistic: &cache.Optimistic{
			Key: ThreadKey(m.ReceiverID),
			Update: func(prev any) any {
				msgs, _ := prev.([]data.Message)
				return append(append([]data.Message(nil), msgs...), pending)
			},
		},
	}
	err := c.cache.Mutate(ctx, mut, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, pathMessages, nil, m, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks a received message read.
func (c *Client) MarkRead(ctx context.Context, id int64) (*data.Message, error) {
	var out data.Message
	err := c.cache.Mutate(ctx, cache.Mutation{Invalidates: []cache.Key{InboxKey()}}, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPatch, pathMessages+"/"+itoa(id)+"/read", nil, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(ThreadKey(out.SenderID))
	return &out, nil
}

// Activities returns the newest feed entries.
func (c *Client) Activities(ctx context.Context, limit int) ([]data.Activity, error) {
	return read[[]data.Activity](ctx, c, ActivitiesKey(limit))
}

// TicketInput is the body of a support request.
type TicketInput struct {
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Priority    data.TicketPriority `json:"priority,omitempty"`
}

// Validate checks t before it is sent.
func (t TicketInput) Validate() error {
	var v validator
	v.check(strings.TrimSpace(t.Subject) != "", "subject", "is required")
	v.check(strings.TrimSpace(t.Description) != "", "description", "is required")
	v.check(t.Priority == "" || t.Priority.Valid(), "priority", "must be low, normal or high")
	return v.err()
}

// CreateTicket opens a support ticket.
func (c *Client) CreateTicket(ctx context.Context, t TicketInput) (*data.Ticket, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var out data.Ticket
	err := c.cache.Mutate(ctx, cache.Mutation{InvalidatePaths: []string{pathTickets}}, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, pathTickets, nil, t, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Tickets lists support tickets. Staff only.
func (c *Client) Tickets(ctx context.Context) ([]data.Ticket, error) {
	return read[[]data.Ticket](ctx, c, TicketsKey())
}
