package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/metrics"
	"github.com/spf13/cobra"
)

var modelsBrand string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the manual service is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var brandsCmd = &cobra.Command{
	Use:   "brands",
	Short: "List the brands of uploaded manuals",
	Args:  cobra.NoArgs,
	RunE:  runBrands,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of uploaded manuals",
	Long: `List the models of uploaded manuals.

Examples:
  manualdesk models
  manualdesk models --brand Samsung`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Probe the manual service and show request timings",
	Long: `Call the health and listing endpoints once and print the request
statistics collected by this process.

Every other command prints the same statistics on exit with --stats.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsBrand, "brand", "", "only list models of this brand")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	h, err := apiClient.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Status:    %s\n", h.Status)
	if h.Model != "" {
		fmt.Printf("Model:     %s\n", h.Model)
	}
	fmt.Printf("Documents: %v\n", h.HasDocuments)
	fmt.Printf("Endpoint:  %s\n", apiClient.BaseURL())
	return nil
}

func runBrands(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	brands, err := apiClient.Brands(ctx)
	if err != nil {
		return err
	}
	printList(brands, "No brands found.")
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	list, err := apiClient.Models(ctx, modelsBrand)
	if err != nil {
		return err
	}
	printList(list, "No models found.")
	return nil
}

func printList(items []string, empty string) {
	if len(items) == 0 {
		out.hint(empty)
		return
	}
	fmt.Println(strings.Join(items, "\n"))
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	if _, err := apiClient.Health(ctx); err != nil {
		logger.Debug("health probe failed", "error", err)
	}
	if _, err := apiClient.ListFiles(ctx); err != nil {
		logger.Debug("listing probe failed", "error", err)
	}
	if !showStats {
		printStats(collector.Snapshot())
	}
	return nil
}

// printStats displays the request statistics of this process.
func printStats(snap metrics.Snapshot) {
	fmt.Printf("\nRequest Statistics (this process)\n")
	fmt.Printf("═══════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if len(snap.Operations) == 0 {
		fmt.Println("No requests made.")
		return
	}
	for _, op := range snap.Operations {
		fmt.Printf("\n%s:\n", op.Operation)
		printOpStats(op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Failed: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.TotalBytes != nil && op.MaxBytes != nil {
		fmt.Printf("  Bytes: %d total, max %d\n", *op.TotalBytes, *op.MaxBytes)
	}
}
