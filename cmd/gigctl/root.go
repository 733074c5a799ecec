package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Gee2424/HubFreelance-sub001/internal/client"
	"github.com/Gee2424/HubFreelance-sub001/internal/identity"
	"github.com/Gee2424/HubFreelance-sub001/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

var errNotSignedIn = errors.New("not signed in; run gigctl login")

// app holds what every command shares: flags, the API session and the
// optional realtime connection.
type app struct {
	in  io.Reader
	out io.Writer

	apiURL      string
	grpcAddr    string
	grpcTLS     bool
	tokenFile   string
	identityURL string
	identityKey string
	verbose     bool

	session *client.Session
	conn    *grpc.ClientConn
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: in, out: out}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "gigctl",
		Short: "HubFreelance command line client",
		Long: `gigctl talks to a HubFreelance API server: browse and post jobs,
bid on them, chat with clients and freelancers and follow the activity feed.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if a.verbose {
				level = "debug"
			}
			slog.SetDefault(logging.New(os.Stderr, level, "text"))
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", envOr("GIGCTL_API", "http://localhost:8080"), "API base URL")
	flags.StringVar(&a.grpcAddr, "grpc", os.Getenv("GIGCTL_GRPC"), "realtime gRPC address; empty polls instead")
	flags.BoolVar(&a.grpcTLS, "grpc-tls", false, "use TLS for the realtime connection")
	flags.StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "where the session token is kept")
	flags.StringVar(&a.identityURL, "identity-url", os.Getenv("GIGCTL_IDENTITY_URL"), "identity provider URL; empty uses local login")
	flags.StringVar(&a.identityKey, "identity-key", os.Getenv("GIGCTL_IDENTITY_KEY"), "identity provider public key")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newMeCmd(a),
		newJobsCmd(a),
		newPostJobCmd(a),
		newProposalsCmd(a),
		newBidCmd(a),
		newDecideCmd(a),
		newConversationsCmd(a),
		newChatCmd(a),
		newSendCmd(a),
		newActivityCmd(a),
		newTicketCmd(a),
		newDashboardCmd(a),
	)
	return root
}

// open builds the session once.
func (a *app) open() error {
	if a.session != nil {
		return nil
	}
	var opts []client.Option
	if a.grpcAddr != "" {
		creds := insecure.NewCredentials()
		if a.grpcTLS {
			creds = credentials.NewClientTLSFromCert(nil, "")
		}
		conn, err := grpc.NewClient(a.grpcAddr, grpc.WithTransportCredentials(creds))
		if err != nil {
			return fmt.Errorf("realtime connection: %w", err)
		}
		a.conn = conn
		opts = append(opts, client.WithRealtime(conn))
	}

	var provider identity.Provider
	if a.identityURL != "" {
		provider = identity.NewGoTrue(a.identityURL, a.identityKey, "")
	}
	a.session = client.NewSession(client.New(a.apiURL, opts...), provider, client.FileTokenStore{Path: a.tokenFile})
	return nil
}

// signedIn opens the session and restores the saved token.
func (a *app) signedIn(ctx context.Context) (*client.Session, error) {
	if err := a.open(); err != nil {
		return nil, err
	}
	if a.session.User() != nil {
		return a.session, nil
	}
	ok, err := a.session.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotSignedIn
	}
	return a.session, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Client().Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gigctl-token"
	}
	return filepath.Join(dir, "gigctl", "token")
}
