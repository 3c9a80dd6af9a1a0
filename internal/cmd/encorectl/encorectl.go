// Package encorectl implements the encore command-line client.
package encorectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	entrypoint "github.com/louisbranch/encore/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/encore/internal/platform/grpc"
	"github.com/louisbranch/encore/internal/platform/timeouts"
	"github.com/louisbranch/encore/internal/services/companion/app"
)

// Config holds client defaults read from the environment.
type Config struct {
	ServerURL  string        `env:"ENCORE_CTL_SERVER"      envDefault:"http://localhost:8095"`
	Token      string        `env:"ENCORE_CTL_TOKEN"`
	HealthAddr string        `env:"ENCORE_CTL_HEALTH_ADDR" envDefault:"localhost:8096"`
	Timeout    time.Duration `env:"ENCORE_CTL_TIMEOUT"     envDefault:"15s"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewRootCmd builds the encorectl command tree over cfg.
func NewRootCmd(cfg Config) *cobra.Command {
	root := &cobra.Command{
		Use:           entrypoint.ServiceEncoreCtl,
		Short:         "Talk to an encore concert companion server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "encore server base URL")
	root.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "session token from login")
	root.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")

	client := func() (*Client, error) {
		return NewClient(cfg.ServerURL, cfg.Token, cfg.Timeout, nil)
	}

	root.AddCommand(
		newConcertsCmd(client),
		newLoginCmd(client),
		newLogoutCmd(client),
		newProfileCmd(client),
		newChatCmd(client),
		newClapCmd(client),
		newMintCmd(client),
		newHealthCmd(&cfg),
	)
	return root
}

type clientFunc func() (*Client, error)

func newConcertsCmd(client clientFunc) *cobra.Command {
	var filter string
	var live bool
	cmd := &cobra.Command{
		Use:   "concerts",
		Short: "List upcoming or live concerts",
		Example: `  encorectl concerts --filter 'artist = "BTS"'
  encorectl concerts --live`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, err := c.Concerts(cmd.Context(), filter, live)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression over id, title, artist and status")
	cmd.Flags().BoolVar(&live, "live", false, "list only live concerts")
	return cmd
}

func newLoginCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL",
		Short: "Connect a wallet and print the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			result, err := c.Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wallet: %s (%s)\n", result.User.ShortAddress, result.User.Address)
			fmt.Fprintf(out, "export ENCORE_CTL_TOKEN=%s\n", result.Token)
			return nil
		},
	}
}

func newLogoutCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Disconnect the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newProfileCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the wallet, transactions and badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, err := c.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newChatCmd(client clientFunc) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "chat CONCERT_ID MESSAGE...",
		Short: "Send a message to the concert companion",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, err := c.Chat(cmd.Context(), args[0], strings.Join(args[1:], " "), publish)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish the message as a comment transaction")
	return cmd
}

func newClapCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "clap CONCERT_ID",
		Short: "Send a clap transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, err := c.Clap(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newMintCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "mint CONCERT_ID",
		Short: "Mint the attendance badge for a concert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			body, err := c.Mint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newHealthCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the server's gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout := cfg.Timeout
			if timeout <= 0 {
				timeout = timeouts.GRPCDial
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			conn, err := platformgrpc.DialWithHealth(ctx, cfg.HealthAddr, app.HealthService, nil)
			if err != nil {
				return fmt.Errorf("health %s: %w", cfg.HealthAddr, err)
			}
			_ = conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s SERVING\n", app.HealthService)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.HealthAddr, "addr", cfg.HealthAddr, "gRPC health address")
	return cmd
}

func printJSON(w io.Writer, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}
