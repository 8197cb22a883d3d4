package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/hangouts/internal/api"
	"github.com/matheus3301/hangouts/internal/client"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd, listCmd, messagesCmd, unreadCmd, offlineCmd, sendCmd, selectCmd, searchCmd, watchCmd)
	for _, ic := range []struct {
		use     string
		command hangout.State
		short   string
	}{
		{"invite <peer>", hangout.Offer, "Invite a peer to a hangout"},
		{"accept <peer>", hangout.Accept, "Accept a hangout invitation"},
		{"decline <peer>", hangout.Decline, "Decline a hangout invitation"},
		{"block <peer>", hangout.Block, "Block a peer"},
		{"unblock <peer>", hangout.Unblock, "Unblock a peer"},
	} {
		rootCmd.AddCommand(intentCmd(ic.use, ic.command, ic.short))
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and socket status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(out, st)
			}
			fmt.Fprintf(out, "User:     %s\n", st.User)
			fmt.Fprintf(out, "Socket:   %s\n", st.ReadyState)
			fmt.Fprintf(out, "Uptime:   %s\n", time.Duration(st.UptimeMs)*time.Millisecond)
			fmt.Fprintf(out, "Hangouts: %d\n", st.Hangouts)
			fmt.Fprintf(out, "Unread:   %d\n", st.Unread)
			fmt.Fprintf(out, "Offline:  %d\n", st.Offline)
			if st.Focused != "" {
				fmt.Fprintf(out, "Focused:  %s\n", st.Focused)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", st.Error)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List hangouts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			hs, err := c.Hangouts(ctx)
			if err != nil {
				return err
			}
			return printHangouts(out, hs)
		})
	},
}

var offlineCmd = &cobra.Command{
	Use:   "offline",
	Short: "List intents waiting for the socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			hs, err := c.Offline(ctx)
			if err != nil {
				return err
			}
			return printHangouts(out, hs)
		})
	},
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "List unread hangouts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			list, err := c.Unread(ctx)
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No unread hangouts.")
				return nil
			}
			for _, u := range list {
				fmt.Fprintf(out, "%-20s %-10s %s\n", u.Username, u.State, preview(u.Message))
			}
			return nil
		})
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <peer>",
	Short: "Show the message log shared with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			msgs, err := c.Messages(ctx, args[0])
			if err != nil {
				return err
			}
			return printMessages(out, msgs)
		})
	},
}

var selectCmd = &cobra.Command{
	Use:   "select <peer>",
	Short: "Focus a hangout and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			res, err := c.Select(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonFlag {
				return outputJSON(out, res)
			}
			fmt.Fprintf(out, "%s (%s)\n", res.Hangout.Username, valueOr(string(res.Hangout.State), "new"))
			return printMessages(out, res.Messages)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find a contact locally, then on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withClient(func(ctx context.Context, c *client.Client) error {
			hs, err := c.Search(ctx, args[0])
			if err != nil {
				return err
			}
			return printHangouts(out, hs)
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <peer> <text>...",
	Short: "Send a message to a peer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submit(cmd.OutOrStdout(), hangout.Intent{
			Command:  hangout.Send,
			Username: args[0],
			Text:     strings.Join(args[1:], " "),
		})
	},
}

func intentCmd(use string, command hangout.State, short string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd.OutOrStdout(), hangout.Intent{Command: command, Username: args[0], Email: email})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "peer email (defaults to the stored one)")
	return cmd
}

func submit(out io.Writer, in hangout.Intent) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		res, err := c.Submit(ctx, in)
		if err != nil {
			return err
		}
		if jsonFlag {
			return outputJSON(out, res)
		}
		if res.Queued {
			fmt.Fprintf(out, "%s to %s queued until the socket opens\n", in.Command, in.Username)
		} else {
			fmt.Fprintf(out, "%s to %s sent\n", in.Command, in.Username)
		}
		return nil
	})
}

var watchCmd = &cobra.Command{
	Use:   "watch [prefix]",
	Short: "Stream daemon events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		c, err := connect()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		out := cmd.OutOrStdout()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return c.Watch(ctx, prefix, func(evt api.Event) error {
			if jsonFlag {
				return outputJSON(out, evt)
			}
			ts := time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05.000")
			fmt.Fprintf(out, "%s %-28s %v\n", ts, evt.Kind, evt.Payload)
			return nil
		})
	},
}

func printHangouts(out io.Writer, hs []hangout.Hangout) error {
	if jsonFlag {
		return outputJSON(out, hs)
	}
	if len(hs) == 0 {
		fmt.Fprintln(out, "No hangouts.")
		return nil
	}
	for _, h := range hs {
		flags := ""
		if !h.Delivered {
			flags += " pending"
		}
		if !h.Read {
			flags += " unread"
		}
		fmt.Fprintf(out, "%-20s %-10s%s %s\n", h.Username, h.State, flags, preview(h.Message))
	}
	return nil
}

func printMessages(out io.Writer, msgs []hangout.Message) error {
	if jsonFlag {
		return outputJSON(out, msgs)
	}
	for _, m := range msgs {
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		mark := ""
		if !m.Delivered {
			mark = " (pending)"
		}
		fmt.Fprintf(out, "[%s] %s: %s%s\n", ts, m.Username, m.Text, mark)
	}
	return nil
}

func preview(m *hangout.Message) string {
	if m == nil {
		return ""
	}
	const limit = 40
	if r := []rune(m.Text); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return m.Text
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
