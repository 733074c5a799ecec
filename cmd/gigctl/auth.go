package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Gee2424/HubFreelance-sub001/internal/client"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

func newLoginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			r := bufio.NewReader(a.in)
			if email == "" {
				var err error
				if email, err = promptLine(a, r, "Email"); err != nil {
					return err
				}
			}
			password, err := promptPassword(a, r, "Password")
			if err != nil {
				return err
			}
			u, err := a.session.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.printf("Signed in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var in client.SignUpInput
	var role string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			r, err := data.ParseRole(role)
			if err != nil {
				return err
			}
			in.Role = r
			if in.Password, err = promptPassword(a, bufio.NewReader(a.in), "Choose a password"); err != nil {
				return err
			}
			u, err := a.session.SignUp(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.printf("Welcome, %s. Your %s account is ready.\n", u.Username, u.Role)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Username, "username", "", "public handle")
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&role, "role", string(data.RoleClient), "client or freelancer")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if err := a.session.SignOut(); err != nil {
				return err
			}
			a.printf("Signed out\n")
			return nil
		},
	}
}

func newMeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			u := s.User()
			a.printf("ID:       %d\nEmail:    %s\nUsername: %s\nName:     %s\nRole:     %s\nWallet:   %s\n",
				u.ID, u.Email, u.Username, u.FullName, u.Role, money(u.WalletBalance))
			return nil
		},
	}
}

func promptLine(a *app, r *bufio.Reader, label string) (string, error) {
	for {
		a.printf("%s: ", label)
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
		a.printf("%s cannot be empty.\n", label)
	}
}

// promptPassword reads a password with masked input when stdin is a
// terminal and falls back to a plain line otherwise.
func promptPassword(a *app, r *bufio.Reader, label string) (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.printf("%s: ", label)
		b, err := term.ReadPassword(int(f.Fd()))
		a.printf("\n")
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return promptLine(a, r, label)
}
