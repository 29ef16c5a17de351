package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
)

// pattern: Imperative Shell

func Write(mode contracts.OutputMode, stdout io.Writer, stderr io.Writer, report Report, duration time.Duration, fatalErr error) error {
	switch mode {
	case contracts.OutputModeJSON:
		env, err := BuildEnvelope(report, duration)
		if err != nil {
			return err
		}

		if err := json.NewEncoder(stdout).Encode(env); err != nil {
			return fmt.Errorf("failed to write JSON envelope: %w", err)
		}
		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
		}
		return nil
	case contracts.OutputModeHuman:
		if fatalErr != nil {
			if _, err := fmt.Fprintln(stderr, FormatDiagnostic(fatalErr)); err != nil {
				return fmt.Errorf("failed to write diagnostics: %w", err)
			}
			return nil
		}

		counts := report.Counts()
		_, err := fmt.Fprintf(
			stdout,
			"%s: processed=%d created=%d updated=%d pulled=%d skipped=%d conflicts=%d warnings=%d errors=%d\n",
			report.CommandName,
			counts.Processed,
			counts.Created,
			counts.Updated,
			counts.Pulled,
			counts.Skipped,
			counts.Conflicts,
			counts.Warnings,
			counts.Errors,
		)
		if err != nil {
			return fmt.Errorf("failed to write human output: %w", err)
		}

		for _, doc := range report.Documents {
			line := fmt.Sprintf("- %s [%s] %s", doc.LocalPath, doc.Status, doc.Action)
			if doc.PageID != "" {
				line += " page=" + doc.PageID
			}
			if doc.Revision > 0 {
				line += fmt.Sprintf(" rev=%d", doc.Revision)
			}
			if _, err := fmt.Fprintln(stdout, line); err != nil {
				return fmt.Errorf("failed to write human output: %w", err)
			}
			for _, message := range doc.Messages {
				if _, err := fmt.Fprintf(stdout, "  - %s: %s\n", message.Level, message.Text); err != nil {
					return fmt.Errorf("failed to write human output: %w", err)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output mode %q", mode)
	}
}

func FormatDiagnostic(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "failed to execute command"
	}
	if strings.HasPrefix(msg, "failed to ") {
		return msg
	}
	return "failed to execute command: " + msg
}
