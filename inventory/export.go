package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/yairfalse/kartta/types"
)

// WriteCSV renders records as CSV. Nested structures are flattened into
// underscore-joined column paths and sequences are comma-joined. Columns are
// derived from the records actually present, with accountId and region always
// first and the rest alphabetical, so the column set follows the data rather
// than a fixed schema.
func WriteCSV(w io.Writer, records []types.Record) error {
	flattened := make([]map[string]string, 0, len(records))
	for _, r := range records {
		flattened = append(flattened, Flatten(r))
	}

	columns := exportColumns(flattened)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(columns))
	for _, flat := range flattened {
		for i, col := range columns {
			row[i] = flat[col]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Flatten converts a record into flat string columns. Nested maps contribute
// parent_child keys, lists are comma-joined, nil values become empty strings.
func Flatten(r types.Record) map[string]string {
	flat := make(map[string]string, len(r))
	for key, value := range r {
		flattenValue(flat, key, value)
	}
	return flat
}

func flattenValue(flat map[string]string, path string, value any) {
	switch v := value.(type) {
	case nil:
		flat[path] = ""
	case map[string]any:
		for key, nested := range v {
			flattenValue(flat, path+"_"+key, nested)
		}
	case map[string]string:
		for key, nested := range v {
			flat[path+"_"+key] = nested
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, renderScalar(item))
		}
		flat[path] = strings.Join(parts, ",")
	case []string:
		flat[path] = strings.Join(v, ",")
	default:
		flat[path] = renderScalar(v)
	}
}

func renderScalar(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// exportColumns computes the union of observed columns, accountId and region
// pinned first, remaining columns sorted.
func exportColumns(flattened []map[string]string) []string {
	seen := make(map[string]bool)
	for _, flat := range flattened {
		for key := range flat {
			seen[key] = true
		}
	}

	var rest []string
	for key := range seen {
		if key == types.FieldAccountID || key == types.FieldRegion {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)

	return append([]string{types.FieldAccountID, types.FieldRegion}, rest...)
}
