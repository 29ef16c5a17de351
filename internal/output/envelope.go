package output

import (
	"fmt"
	"time"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
)

// pattern: Functional Core

// Report is command-level output data that can be rendered in human or JSON mode.
type Report struct {
	CommandName string
	DryRun      bool
	Documents   []contracts.PerDocumentResult
	FatalKind   contracts.FailureKind
}

// Counts derives the aggregate counters from the per-document results.
func (report Report) Counts() contracts.AggregateCounts {
	counts := contracts.AggregateCounts{}
	for _, doc := range report.Documents {
		counts.Processed++
		switch doc.Status {
		case contracts.DocumentStatusSuccess:
			switch doc.Action {
			case "create":
				counts.Created++
			case "update":
				counts.Updated++
			case "pull":
				counts.Pulled++
			}
		case contracts.DocumentStatusSkipped:
			counts.Skipped++
		case contracts.DocumentStatusFailed:
			counts.Errors++
			if doc.FailureKind == contracts.FailureKindConflict {
				counts.Conflicts++
			}
		}
		for _, message := range doc.Messages {
			if message.Level == "warn" {
				counts.Warnings++
			}
		}
	}
	return counts
}

func BuildEnvelope(report Report, duration time.Duration) (contracts.CommandEnvelope, error) {
	env := contracts.CommandEnvelope{
		EnvelopeVersion: contracts.JSONEnvelopeVersionV1,
		Command: contracts.CommandMeta{
			Name:       report.CommandName,
			DurationMS: duration.Milliseconds(),
			DryRun:     report.DryRun,
		},
		Counts:    report.Counts(),
		Documents: report.Documents,
	}

	if err := contracts.ValidateEnvelopeBasics(env); err != nil {
		return contracts.CommandEnvelope{}, fmt.Errorf("failed to build command envelope: %w", err)
	}

	return env, nil
}

// ResolveExitCode picks the highest-severity exit code across the batch and
// any fatal command-level failure.
func ResolveExitCode(report Report) contracts.ExitCode {
	return contracts.ResolveExitCode(report.Documents, report.FatalKind)
}
