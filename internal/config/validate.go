// This file adds a lightweight linter for Config values. It performs static
// checks and returns a list of issues (errors and warnings) that the CLI
// surfaces before any table is touched.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path names the configuration key (e.g. "db_host", "batch_size").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var knownDrivers = map[string]bool{
	"postgres": true,
	"mssql":    true,
	"mysql":    true,
	"sqlite":   true,
	"memory":   true,
}

// Validate performs static validation of cfg. It does not mutate cfg. The
// only filesystem access is a stat of the source root, its schemas.json and
// the fixups file.
func Validate(cfg Config) []Issue {
	var issues []Issue
	issues = append(issues, validateSource(cfg)...)
	issues = append(issues, validateDB(cfg)...)
	issues = append(issues, validateLoad(cfg)...)
	issues = append(issues, validateMetrics(cfg)...)
	return issues
}

func validateSource(cfg Config) []Issue {
	if strings.TrimSpace(cfg.SrcPath) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "src_path",
			Message:  "src_path must not be empty",
		}}
	}
	fi, err := os.Stat(cfg.SrcPath)
	if err != nil {
		return []Issue{{SeverityError, "src_path", err.Error()}}
	}
	if !fi.IsDir() {
		return []Issue{{SeverityError, "src_path", fmt.Sprintf("%s is not a directory", cfg.SrcPath)}}
	}
	if _, err := os.Stat(filepath.Join(cfg.SrcPath, "schemas.json")); err != nil {
		return []Issue{{SeverityError, "src_path", fmt.Sprintf("schemas.json not readable: %v", err)}}
	}
	return nil
}

func validateDB(cfg Config) []Issue {
	var issues []Issue

	if !knownDrivers[cfg.DBDriver] {
		return []Issue{{
			Severity: SeverityError,
			Path:     "db_driver",
			Message:  fmt.Sprintf("unknown driver %q; want postgres, mssql, mysql, sqlite or memory", cfg.DBDriver),
		}}
	}
	if cfg.DSN != "" {
		if cfg.DBDriver == "memory" {
			issues = append(issues, Issue{SeverityWarning, "db_dsn", "the memory driver ignores the DSN"})
		}
		return issues
	}

	switch cfg.DBDriver {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(cfg.DBName) == "" {
			issues = append(issues, Issue{SeverityError, "db_name", "sqlite needs db_name (the database file) or a DSN"})
		}
	default:
		if strings.TrimSpace(cfg.DBHost) == "" {
			issues = append(issues, Issue{SeverityError, "db_host", "db_host must not be empty"})
		}
		if strings.TrimSpace(cfg.DBName) == "" {
			issues = append(issues, Issue{SeverityError, "db_name", "db_name must not be empty"})
		}
		if strings.TrimSpace(cfg.DBUser) == "" {
			issues = append(issues, Issue{SeverityWarning, "db_user", "db_user is empty; the driver default will be used"})
		}
	}
	return issues
}

func validateLoad(cfg Config) []Issue {
	var issues []Issue

	if cfg.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "batch_size", fmt.Sprintf("batch_size=%d; must be positive", cfg.BatchSize)})
	} else if cfg.BatchSize > 100_000 {
		issues = append(issues, Issue{SeverityWarning, "batch_size", fmt.Sprintf("batch_size=%d holds a whole chunk in memory per worker", cfg.BatchSize)})
	}

	switch {
	case cfg.Workers <= 0:
		issues = append(issues, Issue{SeverityError, "workers", fmt.Sprintf("workers=%d; must be positive", cfg.Workers)})
	case cfg.Workers > MaxWorkers:
		issues = append(issues, Issue{SeverityWarning, "workers", fmt.Sprintf("workers=%d is capped at %d", cfg.Workers, MaxWorkers)})
	}

	if utf8.RuneCountInString(cfg.Comma) != 1 {
		issues = append(issues, Issue{SeverityError, "comma", fmt.Sprintf("comma %q must be a single character", cfg.Comma)})
	} else if r := []rune(cfg.Comma)[0]; r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		issues = append(issues, Issue{SeverityError, "comma", fmt.Sprintf("comma %q is not a valid delimiter", cfg.Comma)})
	}

	if cfg.FixupsFile != "" {
		if _, err := os.Stat(cfg.FixupsFile); err != nil {
			issues = append(issues, Issue{SeverityError, "fixups_file", err.Error()})
		}
	}
	return issues
}

func validateMetrics(cfg Config) []Issue {
	switch cfg.MetricsBackend {
	case "", MetricsNone:
	case MetricsPushgateway:
		if cfg.PushgatewayURL == "" {
			return []Issue{{SeverityError, "pushgateway_url", "pushgateway backend requires pushgateway_url"}}
		}
	case MetricsDatadog:
		if cfg.DDAgentAddr == "" {
			return []Issue{{SeverityError, "dd_agent_addr", "datadog backend requires dd_agent_addr"}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics_backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, pushgateway or datadog", cfg.MetricsBackend),
		}}
	}
	if strings.TrimSpace(cfg.Job) == "" {
		return []Issue{{SeverityWarning, "job", "job is empty; metrics will carry an empty job label"}}
	}
	return nil
}
