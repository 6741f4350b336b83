package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/admin"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

// ErrReported marks a failure that was already shown to the user as a notice.
// The caller should exit non-zero without printing it again.
var ErrReported = errors.New("already reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", ErrReported, err)
}

// commandContext returns a context cancelled by Ctrl+C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// newAdmin creates the admin controller wired to the console.
func newAdmin(onProgress func(int)) *admin.Controller {
	return admin.New(apiClient, admin.Options{
		Notifier:   out,
		Logger:     logger,
		OnProgress: onProgress,
	})
}

// findManual resolves a file ID or file name against a listing.
func findManual(files []models.ManualFile, ref string) (models.ManualFile, bool) {
	for _, f := range files {
		if f.FileID != "" && f.FileID == ref {
			return f, true
		}
	}
	return models.FindByName(files, ref)
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
