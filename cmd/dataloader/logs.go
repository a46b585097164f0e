// ABOUTME: The logs command: prints the fake CRM's request log.
// ABOUTME: Filters by entity set, path prefix, method, and status, or prints aggregate stats.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/2389/dataloader/internal/store"
)

var logsQuery store.RequestLogQuery
var logsStats bool

func newLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show requests received by the fake CRM server",
		RunE:  runLogs,
	}
	logsCmd.Flags().StringVarP(&dbPath, "db", "d", getDefaultDBPath(), "Database path")
	logsCmd.Flags().IntVarP(&logsQuery.Limit, "limit", "n", 50, "Maximum number of requests to show")
	logsCmd.Flags().StringVar(&logsQuery.EntitySet, "entity", "", "Only show requests for this entity set")
	logsCmd.Flags().StringVar(&logsQuery.PathPrefix, "path", "", "Only show requests whose path starts with this prefix")
	logsCmd.Flags().StringVar(&logsQuery.Method, "method", "", "Only show requests with this HTTP method")
	logsCmd.Flags().IntVar(&logsQuery.StatusCode, "status", 0, "Only show requests with this status code")
	logsCmd.Flags().BoolVar(&logsStats, "stats", false, "Show totals and top endpoints instead of requests")
	return logsCmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	path, err := validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}
	s, err := store.New(path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	if logsStats {
		return printStats(cmd.OutOrStdout(), s)
	}
	return printLogs(cmd.OutOrStdout(), s, &logsQuery)
}

func printLogs(out io.Writer, s *store.Store, q *store.RequestLogQuery) error {
	logs, err := s.GetRequestLogs(q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMETHOD\tSTATUS\tMS\tCALLER\tPATH")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			l.Timestamp.Format("15:04:05"), l.Method, l.StatusCode, l.DurationMs, l.Caller, l.Path)
	}
	return tw.Flush()
}

func printStats(out io.Writer, s *store.Store) error {
	stats, err := s.GetRequestLogStats()
	if err != nil {
		return err
	}
	top, err := s.GetTopEndpoints(10)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Requests: %d (errors: %d, avg %d ms, %d endpoints)\n\n",
		stats.TotalRequests, stats.ErrorRequests, stats.AvgDurationMs, stats.UniqueEndpoints)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tAVG MS\tPATH")
	for _, e := range top {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", e.Count, e.AvgMs, e.Path)
	}
	return tw.Flush()
}
