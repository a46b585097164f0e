// ABOUTME: Entry point for the dataloader CLI.
// ABOUTME: Runs the demo-data load by default and hosts the account, serve, and logs commands.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/2389/dataloader/internal/config"
	"github.com/2389/dataloader/internal/ingest"
	"github.com/2389/dataloader/internal/seed"
)

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, config.ErrMissingConnectionString) {
		return exitUsage
	}
	return exitFailure
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dataloader [connection-string]",
		Short: "Seed a CRM with demo accounts, contacts, and activities",
		Long: `dataloader fills a CRM organization with synthetic demo data.

It picks one existing account at random and creates contacts under it. Each
contact gets a follow-up task and a meeting appointment. With --extended it also
gets 5 service requests and 5 e-activities.

Contacts come from <mock-dir>/contacts1.csv when present. Otherwise they are
generated with OpenAI (OPENAI_API_KEY) or synthesized as placeholders.

Connection string:
  AuthType=ClientSecret;Url=https://org.crm.dynamics.com;ClientId=...;ClientSecret=...;TenantId=...
  AuthType=Token;Url=http://localhost:9000;Token=user:me

The connection string may also come from DATALOADER_CONNECTION_STRING (or .env).

Quick Start:
  dataloader serve --seed-accounts 5                       # Start a local fake CRM
  dataloader "Url=http://localhost:9000;Token=user:me"     # Load demo data into it
  dataloader logs                                          # Inspect the calls it made`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runLoad,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./dataloader.yaml)")

	flags := rootCmd.Flags()
	flags.String(config.KeyMockDir, config.DefaultMockDir, "Directory holding contacts1.csv and accounts1.csv")
	flags.Int(config.KeyCount, config.DefaultCount, "Number of contacts to create")
	flags.Bool(config.KeyExtended, true, "Also create service requests and e-activities")
	flags.String(config.KeyOnError, "abort", "Failure policy: abort or continue")
	flags.Int64(config.KeySeed, 0, "Random seed (0 = unseeded)")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "Per-request timeout")

	accountCmd := &cobra.Command{
		Use:   "account [connection-string]",
		Short: `Create the fixed "Test Account 0" demo account`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAccount,
	}
	accountCmd.Flags().Duration(config.KeyTimeout, config.DefaultTimeout, "Per-request timeout")

	rootCmd.AddCommand(accountCmd, newServeCmd(), newLogsCmd())
	return rootCmd
}

// loadConfig resolves configuration for commands that talk to the CRM. A
// positional connection string wins over every other source.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.ConnectionString = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	policy, err := ingest.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return err
	}

	in := ingest.New(ingest.CRMConnector(cfg.ConnectionString, cfg.Timeout), ingest.Options{
		MockDir:  cfg.MockDataDir,
		Count:    cfg.RecordCount,
		Extended: cfg.Extended,
		Policy:   policy,
		Faker:    gofakeit.New(cfg.Seed),
		Seed:     seed.OptionsFromEnv(),
	})

	summary, err := in.Execute(cmd.Context())
	if summary != nil {
		printSummary(summary, err)
	}
	if err != nil {
		return err
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d records failed", len(summary.Failures))
	}
	return nil
}

func runAccount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	in := ingest.New(ingest.CRMConnector(cfg.ConnectionString, cfg.Timeout), ingest.Options{})
	account, err := in.CreateDemoAccount(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", account.ID, account.String("name"))
	return nil
}

func printSummary(s *ingest.Summary, err error) {
	log.Printf("\n%s", summaryHeader(s, err))
	if s.Source != "" {
		log.Printf("  Contact source:   %s", s.Source)
	}
	log.Printf("  Contacts:         %d", s.Contacts)
	log.Printf("  Tasks:            %d", s.Tasks)
	log.Printf("  Appointments:     %d", s.Appointments)
	log.Printf("  Service requests: %d", s.ServiceRequests)
	log.Printf("  E-activities:     %d", s.Activities)
	for _, f := range s.Failures {
		log.Printf("  ✗ %s", f)
	}
}

// summaryHeader describes how the run ended.
func summaryHeader(s *ingest.Summary, err error) string {
	if err != nil {
		return fmt.Sprintf("Load aborted for account %s after %d ms: %v", s.Account.Name, s.Elapsed.Milliseconds(), err)
	}
	return fmt.Sprintf("Load complete for account %s in %d ms:", s.Account.Name, s.Elapsed.Milliseconds())
}
