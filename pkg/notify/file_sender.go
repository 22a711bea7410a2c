package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileSender writes notices to a directory instead of sending them:
// one HTML file with the rendered body and one JSON file with the notice.
type FileSender struct {
	dir string
	now func() time.Time
}

// NewFileSender creates a sender writing into dir. The directory is created on first use.
func NewFileSender(dir string) *FileSender {
	return &FileSender{dir: dir, now: time.Now}
}

type fileRecord struct {
	Timestamp string `json:"timestamp"`
	Subject   string `json:"subject"`
	Notice    Notice `json:"notice"`
}

// Send renders the notice and writes it to disk.
func (f *FileSender) Send(_ context.Context, n Notice) error {
	if err := n.Validate(); err != nil {
		return err
	}
	subject, body, err := Render(n)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrFailedToSend, err)
	}

	now := f.now()
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405.000"), n.Kind, n.UserID.String()[:8])

	if err := os.WriteFile(filepath.Join(f.dir, base+".html"), []byte(body), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write HTML file: %v", ErrFailedToSend, err)
	}

	data, err := json.MarshalIndent(fileRecord{
		Timestamp: now.Format(time.RFC3339),
		Subject:   subject,
		Notice:    n,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal notice: %v", ErrFailedToSend, err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, base+".json"), data, 0o644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrFailedToSend, err)
	}
	return nil
}
