package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Gee2424/HubFreelance-sub001/internal/client"
	"github.com/Gee2424/HubFreelance-sub001/internal/conversation"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

func newConversationsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"inbox"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			convs, err := s.Client().Conversations(cmd.Context(), s.User().ID, limit)
			if err != nil {
				return err
			}
			a.printConversations(convs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of conversations")
	return cmd
}

func newSendCmd(a *app) *cobra.Command {
	var jobID int64
	cmd := &cobra.Command{
		Use:   "send <user-id> <message>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			to, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := client.MessageInput{ReceiverID: to, Content: strings.Join(args[1:], " ")}
			if jobID > 0 {
				in.JobID = &jobID
			}
			msg, err := s.Client().SendMessage(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Sent message #%d\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&jobID, "job", 0, "job the message is about")
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <user-id>",
		Short: "Open a live conversation; type a line to send it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			counterpart, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.chat(cmd.Context(), s, counterpart)
		},
	}
}

// chat prints the thread with counterpart and keeps it current until ctx is
// cancelled or input ends.
func (a *app) chat(ctx context.Context, s *client.Session, counterpart int64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := s.Client()
	me := s.User().ID
	bridge := client.OpenBridge(ctx, c, counterpart)
	defer bridge.Close()
	a.printf("-- chatting with #%d (%s mode), Ctrl-D to leave --\n", counterpart, bridge.Mode())

	var lastID int64
	refresh := func() error {
		thread, err := c.Thread(ctx, counterpart)
		if err != nil {
			return err
		}
		for _, m := range thread {
			if m.ID <= lastID {
				continue
			}
			lastID = m.ID
			a.printMessage(m, me)
			if m.ReceiverID == me && !m.Read {
				if _, err := c.MarkRead(ctx, m.ID); err != nil {
					a.printf("! could not mark #%d read: %v\n", m.ID, err)
				}
			}
		}
		return nil
	}
	if err := refresh(); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-bridge.Changes():
			if err := refresh(); err != nil {
				a.printf("! refresh failed: %v\n", err)
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := c.SendMessage(ctx, client.MessageInput{ReceiverID: counterpart, Content: line}); err != nil {
				a.printf("! not sent: %v\n", err)
				continue
			}
			if err := refresh(); err != nil {
				a.printf("! refresh failed: %v\n", err)
			}
		}
	}
}

func (a *app) printMessage(m data.Message, me int64) {
	who := fmt.Sprintf("#%d", m.SenderID)
	if m.SenderID == me {
		who = "you"
	}
	a.printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), who, m.Content)
}

func (a *app) printConversations(convs []conversation.Conversation) {
	if len(convs) == 0 {
		a.printf("No conversations yet.\n")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WITH\tUNREAD\tLAST MESSAGE\tWHEN")
	for _, cv := range convs {
		fmt.Fprintf(w, "#%d\t%d\t%s\t%s\n", cv.CounterpartID, cv.Unread, snippet(cv.LatestMessage.Content, 40), humanize.Time(cv.LatestMessage.CreatedAt))
	}
	_ = w.Flush()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
