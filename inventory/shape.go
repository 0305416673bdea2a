package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yairfalse/kartta/types"
)

// Pagination bounds. Size requests outside the window are clamped, never
// rejected; only non-numeric input is an error.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ValidationError reports bad request input. It maps to HTTP 400 at the API
// boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParsePage parses 1-indexed pagination parameters. Empty strings take the
// defaults (page 1, size 50). Non-numeric input and page numbers below 1 fail
// with *ValidationError; sizes are clamped to [1, MaxPageSize].
func ParsePage(pageStr, sizeStr string) (page, size int, err error) {
	page, size = 1, DefaultPageSize

	if pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil {
			return 0, 0, &ValidationError{Field: "page", Message: "must be a number"}
		}
		if page < 1 {
			return 0, 0, &ValidationError{Field: "page", Message: "must be at least 1"}
		}
	}

	if sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil {
			return 0, 0, &ValidationError{Field: "size", Message: "must be a number"}
		}
		if size < 1 {
			size = 1
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}
	}

	return page, size, nil
}

// Paginate returns the requested page of records. Pages past the end are
// empty, not an error.
func Paginate(records []types.Record, page, size int) []types.Record {
	start := (page - 1) * size
	if start >= len(records) {
		return []types.Record{}
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// Summary aggregates record counts by lifecycle state and security posture.
type Summary struct {
	Total          int            `json:"total"`
	Running        int            `json:"running"`
	Stopped        int            `json:"stopped"`
	Errors         int            `json:"errors"`
	SecurityIssues int            `json:"security_issues"`
	ByRegion       map[string]int `json:"by_region"`
	ByAccount      map[string]int `json:"by_account"`
}

var (
	runningStates = map[string]bool{"running": true, "available": true, "active": true}
	stoppedStates = map[string]bool{"stopped": true, "stopping": true}
	errorStatuses = map[string]bool{"error": true, "failed": true}
)

// Summarize aggregates a merged result set for one service. Security issues
// are service-specific: public or unencrypted buckets for s3, instances
// without at-rest encryption for rds.
func Summarize(service string, records []types.Record) Summary {
	s := Summary{
		Total:     len(records),
		ByRegion:  make(map[string]int),
		ByAccount: make(map[string]int),
	}

	for _, r := range records {
		state := strings.ToLower(stringField(r, "state"))
		status := strings.ToLower(stringField(r, "status"))

		// Lifecycle counts read state only and error counts read status
		// only; the two fields are not interchangeable.
		if runningStates[state] {
			s.Running++
		}
		if stoppedStates[state] {
			s.Stopped++
		}
		if errorStatuses[status] {
			s.Errors++
		}
		if hasSecurityIssue(service, r) {
			s.SecurityIssues++
		}

		s.ByRegion[r.Region()]++
		s.ByAccount[r.AccountID()]++
	}

	return s
}

func hasSecurityIssue(service string, r types.Record) bool {
	switch strings.ToLower(service) {
	case "s3":
		if public, ok := r["public"].(bool); ok && public {
			return true
		}
		return stringField(r, "encryption") == "None"
	case "rds":
		encrypted, ok := r["encrypted"].(bool)
		return ok && !encrypted
	}
	return false
}

func stringField(r types.Record, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}
