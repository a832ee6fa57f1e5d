package logview

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FormatLine renders e as "[timestamp] LEVEL: message".
func FormatLine(e Entry) string {
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.UTC().Format(ExportTimeFormat), strings.ToUpper(string(e.Level)), e.Message)
}

// Export writes one line per entry.
func Export(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := bw.WriteString(FormatLine(e) + "\n"); err != nil {
			return fmt.Errorf("write log export: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush log export: %w", err)
	}
	return nil
}

// ExportFile writes entries to path, creating parent directories.
func ExportFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Export(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportFileName returns the default export file name for at.
func ExportFileName(at time.Time) string {
	return "apiwatch-logs-" + at.UTC().Format("20060102-150405") + ".txt"
}
