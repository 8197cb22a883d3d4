package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/hangouts/internal/client"
	"github.com/matheus3301/hangouts/internal/config"
	"github.com/matheus3301/hangouts/internal/profile"
	"github.com/spf13/cobra"
)

var (
	userFlag string
	jsonFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "hangoutctl",
	Short:         "Control a running hangoutd",
	Long:          "Command-line interface for the hangouts daemon.\nInspect hangouts, send intents and watch live events.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "local user name (overrides config default_user)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dialDaemon opens a client for the user's daemon.
var dialDaemon = func(user string) (*client.Client, error) {
	return client.New(profile.SocketPath(user))
}

// connect resolves the user and dials its daemon.
func connect() (*client.Client, error) {
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	user, err := profile.Resolve(userFlag, cfg)
	if err != nil {
		return nil, err
	}
	c, err := dialDaemon(user)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for user %q: %w", user, err)
	}
	return c, nil
}

// withClient runs fn with a connected client and a request timeout.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	c, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, c)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
