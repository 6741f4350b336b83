package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/raphaelgruber/manualdesk/internal/catalog"
	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List product categories",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

var browseCmd = &cobra.Command{
	Use:   "browse <category>",
	Short: "List the manuals of a product category",
	Long: `List the manuals of a product category.

Manuals are assigned to categories by their product type. When the backend
has no manual for a category, example entries are shown instead.

Examples:
  manualdesk browse home_appliances
  manualdesk browse tv_video --locale es`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func runCategories(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, c := range catalog.Categories() {
		fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
	}
	return tw.Flush()
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	files, err := apiClient.ListFiles(ctx)
	if err != nil {
		// The browse screen never fails: without a backend it shows examples.
		logger.Warn("could not load manuals for category", "category", args[0], "kind", client.KindOf(err).String(), "error", err)
		out.hint("Could not reach the manual service, showing example manuals.")
		files = nil
	}

	entries := catalog.Filter(files, args[0], store.State().Locale)
	if cat, ok := catalog.Lookup(args[0]); ok {
		fmt.Printf("%s (%d)\n\n", cat.Name, len(entries))
	} else {
		fmt.Printf("%s (%d)\n\n", args[0], len(entries))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAND\tMODEL\tTYPE\tYEAR\tLANG\tFILE")
	for _, e := range entries {
		file := e.Filename
		if e.IsDemoData {
			file = "(example)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Brand, e.Model, e.ProductType, e.Year, e.Language, file)
	}
	return tw.Flush()
}
