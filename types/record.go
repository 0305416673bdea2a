package types

import (
	"encoding/json"
	"strings"
)

// Well-known record fields. Everything else is collector-defined.
const (
	FieldID        = "id"
	FieldRegion    = "region"
	FieldAccountID = "accountId"
)

// RegionGlobal is the sentinel region for services without a regional
// dimension (IAM).
const RegionGlobal = "global"

// AccountUnknown is the fallback account id when identity introspection fails.
const AccountUnknown = "unknown"

// Record is the normalized description of one discovered cloud resource.
// Collectors populate kind-specific fields freely; only id, region and
// accountId are universal. The fan-out and orchestration layers stamp region
// and accountId after collection, overwriting whatever a collector set.
type Record map[string]any

// ID returns the kind-specific unique identifier.
func (r Record) ID() string { return r.str(FieldID) }

// Region returns the region the resource was observed in.
func (r Record) Region() string { return r.str(FieldRegion) }

// AccountID returns the owning account id.
func (r Record) AccountID() string { return r.str(FieldAccountID) }

// SetRegion stamps the record's region.
func (r Record) SetRegion(region string) { r[FieldRegion] = region }

// SetAccountID stamps the record's account id.
func (r Record) SetAccountID(accountID string) { r[FieldAccountID] = accountID }

func (r Record) str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Matches reports whether the serialized record contains term,
// case-insensitively. All fields are searched, nested structures included.
// An empty term matches everything.
func (r Record) Matches(term string) bool {
	if term == "" {
		return true
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), strings.ToLower(term))
}
