package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

// record appends a feed activity. The write that caused it has already
// succeeded, so failures are only logged.
func (s *Server) record(ctx context.Context, actorID int64, p data.ActivityPayload) {
	a, err := data.NewActivity(actorID, p)
	if err == nil {
		err = s.stores.Activities.Record(ctx, a)
	}
	if err != nil {
		slog.Warn("failed to record activity", "type", p.ActivityType(), "actor", actorID, "err", err)
	}
}

// listJobs lists jobs filtered by clientId, status and category.
func (s *Server) listJobs(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	f := data.JobFilter{Category: c.QueryParam("category"), Limit: limit}
	if raw := c.QueryParam("clientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clientId")
		}
		f.ClientID = &id
	}
	if st := data.JobStatus(c.QueryParam("status")); st != "" {
		if !st.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = st
	}
	jobs, err := s.stores.Jobs.ListJobs(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

type jobRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Skills      []string `json:"skills"`
	Budget      *float64 `json:"budget"`
	HourlyRate  *float64 `json:"hourlyRate"`
}

// createJob posts a job owned by the caller.
func (s *Server) createJob(c echo.Context) error {
	var req jobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if (req.Budget != nil && *req.Budget <= 0) || (req.HourlyRate != nil && *req.HourlyRate <= 0) {
		return echo.NewHTTPError(http.StatusBadRequest, "budget and hourly rate must be positive")
	}

	claims := claimsOf(c)
	job := &data.Job{
		ClientID:    claims.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Skills:      req.Skills,
		Budget:      req.Budget,
		HourlyRate:  req.HourlyRate,
	}
	ctx := c.Request().Context()
	if err := s.stores.Jobs.CreateJob(ctx, job); err != nil {
		return err
	}
	s.record(ctx, claims.UserID, data.JobPosted{JobID: job.ID, JobTitle: job.Title})
	return c.JSON(http.StatusCreated, job)
}

func (s *Server) getJob(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	job, err := s.stores.Jobs.GetJob(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// proposalScope narrows a proposal listing to what a role may see:
// freelancers their own bids, clients the bids on their jobs, staff all.
type proposalScope struct {
	userID int64
	base   data.ProposalFilter
}

func (p proposalScope) Client() data.ProposalFilter {
	f := p.base
	f.ClientID = &p.userID
	return f
}

func (p proposalScope) Freelancer() data.ProposalFilter {
	f := p.base
	f.FreelancerID = &p.userID
	return f
}

func (p proposalScope) Admin() data.ProposalFilter   { return p.base }
func (p proposalScope) Support() data.ProposalFilter { return p.base }
func (p proposalScope) QA() data.ProposalFilter      { return p.base }

// listProposals lists proposals visible to the caller, optionally of one
// job.
func (s *Server) listProposals(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	base := data.ProposalFilter{Limit: limit}
	if raw := c.QueryParam("jobId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid jobId")
		}
		base.JobID = &id
	}

	claims := claimsOf(c)
	f, err := data.VisitRole[data.ProposalFilter](data.Role(claims.Role), proposalScope{userID: claims.UserID, base: base})
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	props, err := s.stores.Proposals.ListProposals(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, props)
}

type proposalRequest struct {
	JobID             int64   `json:"jobId"`
	BidAmount         float64 `json:"bidAmount"`
	EstimatedDuration string  `json:"estimatedDuration"`
	CoverLetter       string  `json:"coverLetter"`
}

// createProposal bids on an open job.
func (s *Server) createProposal(c echo.Context) error {
	var req proposalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.JobID <= 0 || req.BidAmount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "jobId and a positive bidAmount are required")
	}

	ctx := c.Request().Context()
	job, err := s.stores.Jobs.GetJob(ctx, req.JobID)
	if err != nil {
		return err
	}
	if job.Status != data.JobOpen {
		return echo.NewHTTPError(http.StatusConflict, "job is not open for proposals")
	}

	claims := claimsOf(c)
	prop := &data.Proposal{
		JobID:             job.ID,
		FreelancerID:      claims.UserID,
		BidAmount:         req.BidAmount,
		EstimatedDuration: req.EstimatedDuration,
		CoverLetter:       req.CoverLetter,
	}
	if err := s.stores.Proposals.CreateProposal(ctx, prop); err != nil {
		return err
	}
	s.record(ctx, claims.UserID, data.ProposalSubmitted{JobID: job.ID, JobTitle: job.Title, BidAmount: prop.BidAmount})
	return c.JSON(http.StatusCreated, prop)
}

// decideProposal accepts or rejects a pending proposal on one of the
// caller's jobs. Admins may decide any proposal.
func (s *Server) decideProposal(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Status data.ProposalStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status != data.ProposalAccepted && req.Status != data.ProposalRejected {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be accepted or rejected")
	}

	ctx := c.Request().Context()
	prop, err := s.stores.Proposals.GetProposal(ctx, id)
	if err != nil {
		return err
	}
	job, err := s.stores.Jobs.GetJob(ctx, prop.JobID)
	if err != nil {
		return err
	}
	claims := claimsOf(c)
	if job.ClientID != claims.UserID && data.Role(claims.Role) != data.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only the job owner may decide proposals")
	}

	prop, err = s.stores.Proposals.DecideProposal(ctx, id, req.Status)
	if err != nil {
		return err
	}
	if prop.Status == data.ProposalAccepted {
		s.record(ctx, claims.UserID, data.ContractCreated{JobID: job.ID, JobTitle: job.Title, FreelancerID: prop.FreelancerID})
	}
	return c.JSON(http.StatusOK, prop)
}

type ticketRequest struct {
	Subject     string              `json:"subject"`
	Description string              `json:"description"`
	Priority    data.TicketPriority `json:"priority"`
}

// createTicket opens a support ticket for the caller.
func (s *Server) createTicket(c echo.Context) error {
	var req ticketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject is required")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "priority must be low, normal or high")
	}
	tk := &data.Ticket{
		UserID:      claimsOf(c).UserID,
		Subject:     strings.TrimSpace(req.Subject),
		Description: req.Description,
		Priority:    req.Priority,
	}
	if err := s.stores.Tickets.CreateTicket(c.Request().Context(), tk); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tk)
}

func (s *Server) listTickets(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	tickets, err := s.stores.Tickets.ListTickets(c.Request().Context(), data.TicketStatus(c.QueryParam("status")), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tickets)
}

func (s *Server) listActivities(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	acts, err := s.stores.Activities.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acts)
}
