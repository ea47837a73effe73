package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/fxledger/internal/domain"
	"github.com/iho/fxledger/internal/infrastructure/postgres"
)

type options struct {
	baseURL string
	timeout time.Duration
	actor   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "fxledger-cli",
		Short:         "fxledger CLI tool",
		Long:          `A command line interface for operating the fxledger balance ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the fxledger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", envOr("FXLEDGER_ACTOR", "cli"), "Actor recorded on mutations")

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}
	ledgerCmd.AddCommand(
		balanceCmd(opts),
		consistencyCmd(opts),
		recomputeCmd(opts),
		auditCmd(opts),
		poolsCmd(opts),
	)

	rootCmd.AddCommand(ledgerCmd, migrateCmd())
	return rootCmd
}

func balanceCmd(opts *options) *cobra.Command {
	var (
		asOf      string
		effective bool
	)
	cmd := &cobra.Command{
		Use:   "balance <scope>",
		Short: "Show the balance of a scope (customer:<id>:<cur>, bank_account:<id>, currency_pool:<cur>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := domain.ParseScopeKey(args[0])
			if err != nil {
				return err
			}

			q := url.Values{}
			if asOf != "" {
				q.Set("as_of", asOf)
			}
			if effective {
				q.Set("effective", "true")
			}

			var out map[string]any
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, scopePath(scope)+"/balance?"+q.Encode(), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Balance at this instant (RFC3339)")
	cmd.Flags().BoolVar(&effective, "effective", false, "Exclude frozen entries")
	return cmd
}

func consistencyCmd(opts *options) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/consistency"
			if scope != "" {
				path += "?scope=" + url.QueryEscape(scope)
			}

			var report struct {
				Consistent bool `json:"consistent"`
			}
			var raw json.RawMessage
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, &raw); err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &report); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
				return err
			}

			if !report.Consistent {
				return fmt.Errorf("consistency check FAILED")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Check a single scope")
	return cmd
}

func recomputeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [scope]",
		Short: "Recompute one scope, or every scope when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if len(args) == 1 {
				if _, err := domain.ParseScopeKey(args[0]); err != nil {
					return err
				}
				body["scope"] = args[0]
			}

			var out json.RawMessage
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/ledger/recompute", body, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func auditCmd(opts *options) *cobra.Command {
	var (
		actor string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if actor != "" {
				q.Set("actor", actor)
			}
			q.Set("limit", fmt.Sprint(limit))

			var logs []struct {
				CreatedAt  time.Time `json:"created_at"`
				Actor      string    `json:"actor"`
				Action     string    `json:"action"`
				ResourceID string    `json:"resource_id"`
			}
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/audit-logs?"+q.Encode(), nil, &logs); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, l := range logs {
				fmt.Fprintf(w, "%s  %-16s %-20s %s\n",
					l.CreatedAt.Format(time.RFC3339), truncate(l.Actor, 16), l.Action, l.ResourceID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "by", "", "Filter by actor")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func poolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List currency pools with their risk level",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pools []struct {
				Currency  string `json:"currency"`
				Balance   string `json:"balance"`
				RiskLevel string `json:"risk_level"`
			}
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/pools", nil, &pools); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, p := range pools {
				fmt.Fprintf(w, "%-4s %20s  %s\n", p.Currency, p.Balance, p.RiskLevel)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	var databaseURL, path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&path, "path", envOr("MIGRATIONS_PATH", "internal/infrastructure/postgres/migrations"), "Migrations directory")

	requireURL := func(*cobra.Command, []string) error {
		if databaseURL == "" {
			return fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:     "up",
			Short:   "Apply all pending migrations",
			PreRunE: requireURL,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := postgres.RunMigrations(databaseURL, path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:     "down",
			Short:   "Roll back all migrations",
			PreRunE: requireURL,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := postgres.RunMigrationsDown(databaseURL, path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:     "version",
			Short:   "Print the current schema version",
			PreRunE: requireURL,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := postgres.MigrationVersion(databaseURL, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

type apiClient struct {
	baseURL string
	actor   string
	http    *http.Client
}

func newClient(opts *options) *apiClient {
	return &apiClient{
		baseURL: opts.baseURL,
		actor:   opts.actor,
		http:    &http.Client{Timeout: opts.timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", c.actor)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// scopePath maps a scope key to its API resource.
func scopePath(scope domain.ScopeKey) string {
	switch scope.Kind {
	case domain.ScopeCustomer:
		return "/api/v1/customers/" + url.PathEscape(scope.OwnerID) + "/ledgers/" + scope.Currency
	case domain.ScopeBankAccount:
		return "/api/v1/bank-accounts/" + url.PathEscape(scope.OwnerID)
	default:
		return "/api/v1/pools/" + scope.Currency
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
