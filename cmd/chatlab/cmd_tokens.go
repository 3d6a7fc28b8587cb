package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"contact-chat-lab/internal/auth"
	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/render"
)

var (
	createExpiresAt string
	inspectJSON     bool
)

func init() {
	rootCmd.AddCommand(tokensCmd, tokenCmd)
	tokensCmd.AddCommand(tokensCreateCmd, tokensListCmd, tokensInvalidateCmd)
	tokenCmd.AddCommand(tokenInspectCmd)

	tokensCreateCmd.Flags().StringVar(&createExpiresAt, "expires-at", "", "expiry, local 2006-01-02T15:04 or RFC 3339")
	tokenInspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the decoded claims as JSON")
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Create, list and invalidate contact access tokens",
}

// runTokenOp runs op, echoes the status log oldest first and prints the
// resulting token list.
func runTokenOp(op func(c *console.Console) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := newConsole(cfg, nil)
	if err != nil {
		return err
	}
	opErr := op(c)
	log := c.Snapshot().StatusLog
	for i := len(log) - 1; i >= 0; i-- {
		fmt.Fprintln(os.Stderr, log[i])
	}
	if opErr != nil {
		return opErr
	}
	return render.Tokens(os.Stdout, c.Snapshot().Tokens, time.Now())
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a token and list the conversation's tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenOp(func(c *console.Console) error {
			if cmd.Flags().Changed("expires-at") {
				c.SetTokenExpiry(createExpiresAt)
			}
			return c.CreateToken(cmd.Context())
		})
	},
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the conversation's tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenOp(func(c *console.Console) error {
			return c.ListTokens(cmd.Context())
		})
	},
}

var tokensInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Invalidate a token and list the conversation's tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenOp(func(c *console.Console) error {
			return c.InvalidateToken(cmd.Context(), args[0])
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with the operator bearer token",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [jwt]",
	Short: "Decode a JWT's claims without verifying it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := authToken
		if len(args) == 1 {
			raw = args[0]
		}
		if raw == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raw = cfg.AuthToken
		}
		if raw == "" && promptToken {
			tok, err := readToken()
			if err != nil {
				return err
			}
			raw = tok
		}
		if raw == "" {
			return fmt.Errorf("no token given: pass one, use --token or set AUTH_TOKEN")
		}

		info, err := auth.Inspect(raw)
		if err != nil {
			return fmt.Errorf("inspect token: %w", err)
		}
		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Printf("alg:      %s\n", info.Algorithm)
		fmt.Printf("subject:  %s\n", info.Subject)
		fmt.Printf("issuer:   %s\n", info.Issuer)
		if info.LocationID != "" || info.ContactID != "" {
			fmt.Printf("scope:    %s / %s\n", info.LocationID, info.ContactID)
		}
		if info.IssuedAt != nil {
			fmt.Printf("issued:   %s (%s)\n", info.IssuedAt.Format(time.RFC3339), humanize.Time(*info.IssuedAt))
		}
		if info.ExpiresAt != nil {
			state := "valid"
			if info.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Printf("expires:  %s (%s, %s)\n", info.ExpiresAt.Format(time.RFC3339), humanize.Time(*info.ExpiresAt), state)
		}
		return nil
	},
}
