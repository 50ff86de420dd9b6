package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finboard/internal/cli"
	"finboard/internal/credential"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Set, clear or show the stored bearer token",
	}
	cmd.AddCommand(tokenSetCmd(), tokenClearCmd(), tokenShowCmd())
	return cmd
}

func tokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token|-]",
		Short: "Store a token; \"-\" reads it from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withManager(cmd.Context(), func(ctx context.Context, m *credential.Manager) error {
				if err := m.SetToken(ctx, token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token stored (%s)\n", maskToken(token))
				return nil
			})
		},
	}
}

func tokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, m *credential.Manager) error {
				if err := m.ClearToken(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token cleared")
				return nil
			})
		},
	}
}

func tokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether a token is stored and still usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, m *credential.Manager) error {
				token, err := m.Token(ctx)
				if err != nil {
					return err
				}
				describeToken(cmd.OutOrStdout(), token, time.Now())
				return nil
			})
		},
	}
}

// withManager opens the local store and broker for the duration of fn.
func withManager(ctx context.Context, fn func(context.Context, *credential.Manager) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client := cli.ConnectAMQP(logger, cfg)
	if client != nil {
		defer client.Close()
	}
	return fn(ctx, cli.NewCredentialManager(logger, repo, client))
}

func readToken(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return strings.TrimSpace(arg), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func describeToken(w io.Writer, token string, now time.Time) {
	if token == "" {
		fmt.Fprintln(w, "Token:  none")
		return
	}
	fmt.Fprintf(w, "Token:  %s\n", maskToken(token))
	if credential.ValidAt(token, now) {
		fmt.Fprintln(w, "Status: valid")
	} else {
		fmt.Fprintln(w, "Status: expired")
	}
}

// maskToken keeps the first and last four characters of long tokens.
func maskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
