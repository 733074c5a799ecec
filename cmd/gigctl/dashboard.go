package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gee2424/HubFreelance-sub001/internal/client"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/feed"
)

// panel is one section of the dashboard.
type panel struct {
	title string
	show  func(ctx context.Context) error
}

// dashboardPanels picks the sections each role sees.
type dashboardPanels struct {
	a *app
	s *client.Session
}

func (d dashboardPanels) Client() []panel {
	return []panel{d.myJobs(), d.proposals("Proposals on my jobs"), d.conversations()}
}

func (d dashboardPanels) Freelancer() []panel {
	return []panel{d.openJobs(), d.proposals("My proposals"), d.conversations()}
}

func (d dashboardPanels) Admin() []panel {
	return []panel{d.users(), d.tickets(), d.activity()}
}

func (d dashboardPanels) Support() []panel {
	return []panel{d.tickets(), d.conversations()}
}

func (d dashboardPanels) QA() []panel {
	return []panel{d.tickets(), d.activity()}
}

func (d dashboardPanels) myJobs() panel {
	return panel{title: "My jobs", show: func(ctx context.Context) error {
		jobs, err := d.s.Client().Jobs(ctx, client.JobQuery{ClientID: d.s.User().ID})
		if err != nil {
			return err
		}
		d.a.printJobs(jobs)
		return nil
	}}
}

func (d dashboardPanels) openJobs() panel {
	return panel{title: "Open jobs", show: func(ctx context.Context) error {
		jobs, err := d.s.Client().Jobs(ctx, client.JobQuery{Status: data.JobOpen})
		if err != nil {
			return err
		}
		d.a.printJobs(jobs)
		return nil
	}}
}

func (d dashboardPanels) proposals(title string) panel {
	return panel{title: title, show: func(ctx context.Context) error {
		props, err := d.s.Client().Proposals(ctx, 0)
		if err != nil {
			return err
		}
		d.a.printProposals(props)
		return nil
	}}
}

func (d dashboardPanels) conversations() panel {
	return panel{title: "Recent conversations", show: func(ctx context.Context) error {
		convs, err := d.s.Client().Conversations(ctx, d.s.User().ID, 5)
		if err != nil {
			return err
		}
		d.a.printConversations(convs)
		return nil
	}}
}

func (d dashboardPanels) users() panel {
	return panel{title: "Users", show: func(ctx context.Context) error {
		users, err := d.s.Client().Users(ctx)
		if err != nil {
			return err
		}
		counts := map[data.Role]int{}
		for _, u := range users {
			counts[u.Role]++
		}
		for _, r := range data.Roles {
			d.a.printf("  %-10s %d\n", r, counts[r])
		}
		return nil
	}}
}

func (d dashboardPanels) tickets() panel {
	return panel{title: "Support tickets", show: func(ctx context.Context) error {
		tickets, err := d.s.Client().Tickets(ctx)
		if err != nil {
			return err
		}
		d.a.printTickets(tickets)
		return nil
	}}
}

func (d dashboardPanels) activity() panel {
	return panel{title: "Activity", show: func(ctx context.Context) error {
		acts, err := d.s.Client().Activities(ctx, 10)
		if err != nil {
			return err
		}
		d.a.printFeed(feed.RenderAll(acts, time.Now()))
		return nil
	}}
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the overview for your role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			role, err := s.Role()
			if err != nil {
				return err
			}
			panels, err := data.VisitRole[[]panel](role, dashboardPanels{a: a, s: s})
			if err != nil {
				return err
			}
			a.printf("%s dashboard for %s\n", role, s.User().Username)
			for _, p := range panels {
				a.printf("\n== %s ==\n", p.title)
				if err := p.show(cmd.Context()); err != nil {
					a.printf("unavailable: %v\n", err)
				}
			}
			return nil
		},
	}
}
