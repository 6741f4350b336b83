package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/raphaelgruber/manualdesk/internal/models"
	"github.com/tidwall/gjson"
)

// Kind classifies a failed operation. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTimeout
	KindConnectivity
	KindConflict
	KindServer
	KindLocalState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindConnectivity:
		return "connectivity"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	case KindLocalState:
		return "local_state"
	default:
		return "unknown"
	}
}

// Sentinel errors for each kind.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation indicates the request was rejected locally before any
	// network call (bad extension, oversize file, missing field, duplicate name).
	ErrValidation = errors.New("validation error")

	// ErrTimeout indicates the operation exceeded its time ceiling.
	ErrTimeout = errors.New("request timed out")

	// ErrConnectivity indicates the backend could not be reached.
	ErrConnectivity = errors.New("cannot connect to server")

	// ErrConflict indicates the backend already holds a file with that name.
	ErrConflict = errors.New("conflict")

	// ErrServer indicates any other non-2xx response.
	ErrServer = errors.New("server error")

	// ErrLocalState indicates the client's own state makes the operation
	// impossible, e.g. deleting a manual without a file ID.
	ErrLocalState = errors.New("invalid local state")
)

var sentinels = map[Kind]error{
	KindValidation:   ErrValidation,
	KindTimeout:      ErrTimeout,
	KindConnectivity: ErrConnectivity,
	KindConflict:     ErrConflict,
	KindServer:       ErrServer,
	KindLocalState:   ErrLocalState,
}

// DuplicateInfo describes the existing manual reported by a 409 on upload.
type DuplicateInfo struct {
	Filename   string        `json:"filename"`
	Brand      string        `json:"brand"`
	Model      string        `json:"model"`
	UploadDate models.Millis `json:"upload_date"`
	FileID     string        `json:"file_id,omitempty"`
}

// Error is the failure type returned by every client operation.
// Message is the plain text shown to the user.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Status    int
	Duplicate *DuplicateInfo
	Err       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf classifies err. Errors that did not come from this package are
// classified by their transport symptoms where possible.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindUnknown
}

// DuplicateMessage builds the notice shown when a file name already exists.
func DuplicateMessage(filename, brand, model string, uploaded models.Millis) string {
	return fmt.Sprintf("File %q already exists!\n\n"+
		"Existing file details:\n"+
		"• Brand: %s\n"+
		"• Model: %s\n"+
		"• Upload Date: %s\n\n"+
		"Please rename your file or delete the existing one first.",
		filename, models.OrUnknown(brand), models.OrUnknown(model), models.FormatDate(uploaded))
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func localStateError(op, msg string) *Error {
	return &Error{Kind: KindLocalState, Op: op, Message: msg}
}

// timeoutMessages holds the per-operation wording for timeouts.
var timeoutMessages = map[string]string{
	opUpload:   "Upload timeout. Please try again.",
	opDownload: "Download timeout. Please try again.",
	opList:     "Request timed out while loading manuals. Please check your connection and try again.",
}

// classifyTransport converts an error from http.Client.Do or from reading a
// response body into a typed Error. Caller cancellation is passed through.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if isTimeout(err) {
		msg, ok := timeoutMessages[op]
		if !ok {
			msg = "The request timed out. Please try again."
		}
		return &Error{Kind: KindTimeout, Op: op, Message: msg, Err: err}
	}
	return &Error{
		Kind:    KindConnectivity,
		Op:      op,
		Message: "Cannot connect to server. Please check if the server is running.",
		Err:     err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// backendMessage extracts the human-readable message from a JSON error body.
// The backend uses "error" for failures and "message" for everything else.
func backendMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	res := gjson.GetManyBytes(body, "error", "message")
	for _, r := range res {
		if s := strings.TrimSpace(r.String()); s != "" && r.Type == gjson.String {
			return s
		}
	}
	return ""
}

// statusError builds a ServerError for a non-2xx response. prefix, when set,
// is prepended to the backend message ("Upload failed: ...").
func statusError(op string, status int, body []byte, prefix string) *Error {
	msg := backendMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = fmt.Sprintf("status %d", status)
		}
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return &Error{
		Kind:    KindServer,
		Op:      op,
		Message: msg,
		Status:  status,
		Err:     fmt.Errorf("%s returned %d", op, status),
	}
}
