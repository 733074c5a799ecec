package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Gee2424/HubFreelance-sub001/internal/client"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/feed"
)

func newJobsCmd(a *app) *cobra.Command {
	var (
		filter client.JobFilter
		status string
		mine   bool
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			filter.Status = data.JobStatus(status)
			if filter.Status != "" && !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			q := client.JobQuery{Status: filter.Status}
			if mine {
				q.ClientID = s.User().ID
			}
			jobs, err := s.Client().Jobs(cmd.Context(), q)
			if err != nil {
				return err
			}
			a.printJobs(client.FilterJobs(jobs, filter))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "open, in_progress, completed or canceled")
	f.StringVar(&filter.Category, "category", "", "category")
	f.StringSliceVar(&filter.Skills, "skill", nil, "required skill (repeatable)")
	f.StringVarP(&filter.Query, "query", "q", "", "text in title or description")
	f.Float64Var(&filter.MinBudget, "min-budget", 0, "minimum budget")
	f.Float64Var(&filter.MaxBudget, "max-budget", 0, "maximum budget")
	f.BoolVar(&mine, "mine", false, "only jobs I posted")
	return cmd
}

func newPostJobCmd(a *app) *cobra.Command {
	var (
		in             client.JobInput
		budget, hourly float64
	)
	cmd := &cobra.Command{
		Use:   "post-job",
		Short: "Post a new job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if budget > 0 {
				in.Budget = &budget
			}
			if hourly > 0 {
				in.HourlyRate = &hourly
			}
			job, err := s.Client().CreateJob(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Posted job #%d %q\n", job.ID, job.Title)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "job title")
	f.StringVar(&in.Description, "description", "", "job description")
	f.StringVar(&in.Category, "category", "", "category")
	f.StringSliceVar(&in.Skills, "skill", nil, "required skill (repeatable)")
	f.Float64Var(&budget, "budget", 0, "fixed budget")
	f.Float64Var(&hourly, "hourly", 0, "hourly rate")
	return cmd
}

func newProposalsCmd(a *app) *cobra.Command {
	var jobID int64
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List the proposals visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			props, err := s.Client().Proposals(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			a.printProposals(props)
			return nil
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "only proposals on this job")
	return cmd
}

func newBidCmd(a *app) *cobra.Command {
	var in client.ProposalInput
	cmd := &cobra.Command{
		Use:   "bid <job-id>",
		Short: "Submit a proposal on a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if in.JobID, err = parseID(args[0]); err != nil {
				return err
			}
			p, err := s.Client().SubmitProposal(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Submitted proposal #%d for %s\n", p.ID, money(p.BidAmount))
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&in.BidAmount, "amount", 0, "bid amount")
	f.StringVar(&in.EstimatedDuration, "duration", "", "estimated duration")
	f.StringVar(&in.CoverLetter, "cover", "", "cover letter")
	return cmd
}

func newDecideCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "decide <proposal-id> accepted|rejected",
		Short:     "Accept or reject a proposal on your job",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(data.ProposalAccepted), string(data.ProposalRejected)},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := s.Client().DecideProposal(cmd.Context(), id, data.ProposalStatus(args[1]))
			if err != nil {
				return err
			}
			a.printf("Proposal #%d is now %s\n", p.ID, p.Status.Badge().Label)
			return nil
		},
	}
}

func newActivityCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the recent activity feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			acts, err := s.Client().Activities(cmd.Context(), limit)
			if err != nil {
				return err
			}
			a.printFeed(feed.RenderAll(acts, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func newTicketCmd(a *app) *cobra.Command {
	var (
		in   client.TicketInput
		prio string
		list bool
	)
	cmd := &cobra.Command{
		Use:   "ticket [subject]",
		Short: "Open a support ticket, or list tickets with --list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if list {
				tickets, err := s.Client().Tickets(cmd.Context())
				if err != nil {
					return err
				}
				a.printTickets(tickets)
				return nil
			}
			if len(args) == 1 {
				in.Subject = args[0]
			}
			in.Priority = data.TicketPriority(prio)
			tk, err := s.Client().CreateTicket(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Opened ticket #%d (%s)\n", tk.ID, tk.Reference)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Description, "description", "", "details")
	f.StringVar(&prio, "priority", "", "low, normal or high")
	f.BoolVar(&list, "list", false, "list tickets instead (staff only)")
	return cmd
}

func (a *app) printJobs(jobs []data.Job) {
	if len(jobs) == 0 {
		a.printf("No jobs found.\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tBUDGET\tSTATUS\tPOSTED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Title, j.Category, budget(j), j.Status, humanize.Time(j.CreatedAt))
	}
	_ = w.Flush()
}

func (a *app) printProposals(props []data.Proposal) {
	if len(props) == 0 {
		a.printf("No proposals.\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOB\tFREELANCER\tBID\tSTATUS")
	for _, p := range props {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", p.ID, p.JobID, p.FreelancerID, money(p.BidAmount), p.Status.Badge().Label)
	}
	_ = w.Flush()
}

func (a *app) printTickets(tickets []data.Ticket) {
	if len(tickets) == 0 {
		a.printf("No tickets.\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREF\tSUBJECT\tPRIORITY\tSTATUS\tOPENED")
	for _, t := range tickets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Reference, t.Subject, t.Priority, t.Status, humanize.Time(t.CreatedAt))
	}
	_ = w.Flush()
}

func (a *app) printFeed(items []feed.Item) {
	if len(items) == 0 {
		a.printf("Nothing has happened yet.\n")
		return
	}
	for _, it := range items {
		a.printf("%s  %s (%s)\n", it.Icon, it.Message, it.Ago)
	}
}

func budget(j data.Job) string {
	switch {
	case j.Budget != nil:
		return money(*j.Budget)
	case j.HourlyRate != nil:
		return money(*j.HourlyRate) + "/h"
	}
	return "-"
}

func money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
