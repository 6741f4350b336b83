package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/raphaelgruber/manualdesk/internal/watch"
	"github.com/spf13/cobra"
)

var (
	formBrand       string
	formModel       string
	formProductType string
	formYear        string
	formLanguage    string
	watchSettle     time.Duration
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a manual document",
	Long: `Upload a manual document (PDF, DOC, DOCX or TXT, at most 16MB).

Brand and model are required. Uploading a file whose name is already in the
listing is refused; delete the existing manual first.

Examples:
  manualdesk upload ./WF45.pdf --brand Samsung --model WF45T6000AW
  manualdesk upload ./tv.pdf --brand LG --model OLED55 --product-type TV --year 2022`,
	Args: cobra.ExactArgs(1),
	RunE: runUploadCmd,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Upload manuals dropped into a directory",
	Long: `Watch a directory and upload every manual document written into it.

All uploads share the metadata flags. When --model is not set, the file
name without extension is used as the model.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	for _, cmd := range []*cobra.Command{uploadCmd, watchCmd} {
		cmd.Flags().StringVar(&formBrand, "brand", "Samsung", "product brand")
		cmd.Flags().StringVar(&formModel, "model", "", "product model")
		cmd.Flags().StringVar(&formProductType, "product-type", "", "product type, e.g. Washing Machine")
		cmd.Flags().StringVar(&formYear, "year", "", "model year (default: current year)")
		cmd.Flags().StringVar(&formLanguage, "language", "en", "language of the manual")
	}
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "quiet time before a written file is uploaded")
}

func uploadForm() models.UploadMetadata {
	year := formYear
	if year == "" {
		year = strconv.Itoa(time.Now().Year())
	}
	return models.UploadMetadata{
		Brand:       formBrand,
		Model:       formModel,
		ProductType: formProductType,
		Year:        year,
		Language:    formLanguage,
	}
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	relay := &progressRelay{}
	ctrl := newAdmin(relay.send)
	defer ctrl.Close()

	draft, closeFn, err := models.OpenDraft(args[0])
	if err != nil {
		return err
	}
	defer closeFn()

	// Load the listing so the duplicate check has something to compare to.
	// A failed load only costs that check.
	if err := ctrl.Refresh(ctx); err != nil {
		logger.Debug("listing unavailable before upload", "error", err)
	}

	if err := ctrl.Select(draft); err != nil {
		return reported(err)
	}
	ctrl.SetForm(uploadForm())

	resp, err := runUpload(ctx, ctrl, relay, draft.Filename)
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return reported(err)
	}
	if err != nil {
		return err
	}
	if resp != nil && resp.FileID != "" {
		out.hint("File ID: " + resp.FileID)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ctrl := newAdmin(nil)
	defer ctrl.Close()
	if err := ctrl.Refresh(ctx); err != nil {
		logger.Debug("listing unavailable before watch", "error", err)
	}

	w, err := watch.New(watchSettle, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	paths, err := w.Watch(ctx, dir)
	if err != nil {
		return err
	}

	template := uploadForm()
	out.hint(fmt.Sprintf("Watching %s for manuals (Ctrl+C to stop)...", dir))

	feeder := watch.NewFeeder(ctrl, template, logger)
	feeder.Run(ctx, paths, func(r watch.Result) {
		if r.Err != nil {
			// Controller failures already produced a notice.
			var apiErr *client.Error
			if !errors.As(r.Err, &apiErr) && !errors.Is(r.Err, admin.ErrUploadInProgress) {
				out.printf("%s: %v\n", filepath.Base(r.Path), r.Err)
			}
			return
		}
		// Keep the listing current for the next duplicate check.
		if err := ctrl.Refresh(ctx); err != nil {
			logger.Debug("refresh after upload failed", "error", err)
		}
	})
	return nil
}
