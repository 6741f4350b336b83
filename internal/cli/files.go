package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/spf13/cobra"
)

var (
	deleteForce bool
	downloadDir string
)

var filesCmd = &cobra.Command{
	Use:     "files",
	Aliases: []string{"ls"},
	Short:   "List uploaded manuals, newest first",
	Args:    cobra.NoArgs,
	RunE:    runFiles,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <file-id|name>",
	Short: "Delete an uploaded manual",
	Long: `Delete an uploaded manual by file ID or file name.

The manual is removed from the local listing right away. If the backend
rejects the delete, it is restored and an error is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var downloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Download a manual PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
	downloadCmd.Flags().StringVarP(&downloadDir, "dir", "d", ".", "directory to save the file in")
}

func runFiles(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ctrl := newAdmin(nil)
	defer ctrl.Close()

	if err := ctrl.SetView(ctx, admin.ViewManage); err != nil {
		return reported(err)
	}

	files := ctrl.Files()
	if len(files) == 0 {
		out.hint("No manuals uploaded yet.")
		return nil
	}
	printFiles(files)
	return nil
}

func printFiles(files []models.ManualFile) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBRAND\tMODEL\tTYPE\tYEAR\tLANG\tUPLOADED\tID")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Name,
			models.OrUnknown(f.Brand),
			models.OrUnknown(f.Model),
			models.OrUnknown(f.ProductType),
			models.OrUnknown(string(f.Year)),
			models.OrUnknown(f.Language),
			models.FormatDate(f.Timestamp),
			f.FileID,
		)
	}
	tw.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ctrl := newAdmin(nil)
	defer ctrl.Close()

	if err := ctrl.SetView(ctx, admin.ViewManage); err != nil {
		return reported(err)
	}

	file, ok := findManual(ctrl.Files(), args[0])
	if !ok {
		return fmt.Errorf("no manual found with ID or name %q", args[0])
	}

	if !deleteForce && !confirm(fmt.Sprintf("Delete %s (%s %s)?", file.Name, models.OrUnknown(file.Brand), models.OrUnknown(file.Model))) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := ctrl.Delete(ctx, file); err != nil {
		return reported(err)
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ctrl := newAdmin(nil)
	defer ctrl.Close()

	file := models.ManualFile{Name: args[0]}
	if err := ctrl.Refresh(ctx); err == nil {
		if f, ok := findManual(ctrl.Files(), args[0]); ok {
			file = f
		}
	}

	path, err := ctrl.Download(ctx, file, downloadDir)
	if err != nil {
		return reported(err)
	}
	out.hint("Saved to " + path)
	return nil
}
