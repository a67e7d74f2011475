package main

import "time"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIScan summarizes one or more scan cycles.
type CLIScan struct {
	Cycles   int `json:"cycles"`
	Files    int `json:"files"`
	Written  int `json:"written"`
	Skipped  int `json:"skipped"`
	Pruned   int `json:"pruned"`
	Failures int `json:"failures"`
}

// CLISolutions is a JSON-friendly solution build report.
type CLISolutions struct {
	Documents []string `json:"documents"`
	Markers   int      `json:"markers"`
	Failures  int      `json:"failures"`
}

// CLIMarkerTable is a JSON-friendly marker table build report.
type CLIMarkerTable struct {
	Path         string `json:"path"`
	CommentRows  int    `json:"comment_rows"`
	TestRows     int    `json:"test_rows"`
	Failures     int    `json:"failures"`
	LedgerSynced bool   `json:"ledger_synced"`
}

// CLILex is the lexer output of one file.
type CLILex struct {
	File     string   `json:"file"`
	Comments string   `json:"comments"`
	Markers  []string `json:"markers"`
	Partial  bool     `json:"partial,omitempty"`
}

// CLIRun is a JSON-friendly ledger run.
type CLIRun struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Documents  int        `json:"documents"`
	Markers    int        `json:"markers"`
	Failures   int        `json:"failures"`
}

// CLIStatus is the ledger summary.
type CLIStatus struct {
	Runs      []CLIRun       `json:"runs"`
	Documents map[string]int `json:"documents"`
}

// CLIMarker is a JSON-friendly marker row.
type CLIMarker struct {
	Marker   string `json:"marker"`
	Document string `json:"document"`
	Kind     string `json:"kind"`
}

// CLIInit reports the written config file.
type CLIInit struct {
	Path string `json:"path"`
}

// CLIVersion is the build version.
type CLIVersion struct {
	Version string `json:"version"`
}
