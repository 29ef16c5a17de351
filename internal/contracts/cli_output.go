package contracts

import "errors"

const JSONEnvelopeVersionV1 = "1"

type OutputMode string

const (
	OutputModeHuman OutputMode = "human"
	OutputModeJSON  OutputMode = "json"
)

type ExitCode int

// Exit codes form the driver contract: conversion failures are local and
// fixable, API/conflict failures are remote, config/auth failures mean the
// tool never reached the remote service.
const (
	ExitCodeSuccess    ExitCode = 0
	ExitCodeConversion ExitCode = 1
	ExitCodeAPI        ExitCode = 2
	ExitCodeConfig     ExitCode = 3
)

// ExitCodeMeaning freezes the CLI exit-code matrix.
var ExitCodeMeaning = map[ExitCode]string{
	ExitCodeSuccess:    "success with no failed documents",
	ExitCodeConversion: "conversion error (malformed local document)",
	ExitCodeAPI:        "remote API error or version conflict",
	ExitCodeConfig:     "configuration or authentication error",
}

// FailureKind classifies a failed document operation. Each kind maps to
// exactly one exit code.
type FailureKind string

const (
	FailureKindNone           FailureKind = ""
	FailureKindConversion     FailureKind = "conversion_error"
	FailureKindAPI            FailureKind = "api_error"
	FailureKindConflict       FailureKind = "version_conflict"
	FailureKindConfig         FailureKind = "config_error"
	FailureKindAuthentication FailureKind = "authentication_error"
)

// ExitCodeForFailure translates a failure kind into the driver exit code.
func ExitCodeForFailure(kind FailureKind) ExitCode {
	switch kind {
	case FailureKindNone:
		return ExitCodeSuccess
	case FailureKindConversion:
		return ExitCodeConversion
	case FailureKindAPI, FailureKindConflict:
		return ExitCodeAPI
	case FailureKindConfig, FailureKindAuthentication:
		return ExitCodeConfig
	default:
		return ExitCodeAPI
	}
}

type DocumentStatus string

const (
	DocumentStatusSuccess DocumentStatus = "success"
	DocumentStatusSkipped DocumentStatus = "skipped"
	DocumentStatusFailed  DocumentStatus = "failed"
)

type PerDocumentResult struct {
	LocalPath   string           `json:"local_path"`
	PageID      string           `json:"page_id,omitempty"`
	Action      string           `json:"action"`
	Status      DocumentStatus   `json:"status"`
	FailureKind FailureKind      `json:"failure_kind,omitempty"`
	Revision    int              `json:"revision,omitempty"`
	Messages    []ResultMessage  `json:"messages,omitempty"`
}

type ResultMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type AggregateCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Pulled    int `json:"pulled"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Warnings  int `json:"warnings"`
	Errors    int `json:"errors"`
}

type CommandEnvelope struct {
	EnvelopeVersion string              `json:"envelope_version"`
	Command         CommandMeta         `json:"command"`
	Counts          AggregateCounts     `json:"counts"`
	Documents       []PerDocumentResult `json:"documents,omitempty"`
}

type CommandMeta struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	DryRun     bool   `json:"dry_run"`
}

func ValidateEnvelopeBasics(env CommandEnvelope) error {
	if env.EnvelopeVersion != JSONEnvelopeVersionV1 {
		return errors.New("unsupported envelope_version")
	}
	if env.Command.Name == "" {
		return errors.New("command name is required")
	}
	return nil
}

// ResolveExitCode picks the highest-severity exit code across a batch:
// config/auth beats API/conflict beats conversion beats success.
func ResolveExitCode(results []PerDocumentResult, fatal FailureKind) ExitCode {
	worst := ExitCodeForFailure(fatal)
	for _, result := range results {
		if code := ExitCodeForFailure(result.FailureKind); severity(code) > severity(worst) {
			worst = code
		}
	}
	return worst
}

func severity(code ExitCode) int {
	switch code {
	case ExitCodeConfig:
		return 3
	case ExitCodeAPI:
		return 2
	case ExitCodeConversion:
		return 1
	default:
		return 0
	}
}
