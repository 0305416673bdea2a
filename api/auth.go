// Package api exposes the inventory over HTTP.
package api

import (
	"net/http"
	"sort"
	"strings"
)

// GroupsHeader carries the caller's resolved group memberships, set by the
// authenticating proxy in front of this service.
const GroupsHeader = "X-Auth-Groups"

// allServices marks a group with unrestricted service access.
var allServices = []string{"*"}

// groupPolicy is the static group-to-services authorization table. Lookup is
// by lowercased group name.
var groupPolicy = map[string][]string{
	"admins":         allServices,
	"infra-admins":   allServices,
	"administrators": allServices,
	"read-only":      {"ec2", "s3"},
	"cloud-readonly": {"ec2", "s3"},
	"security":       {"iam", "ec2", "s3", "rds", "vpc"},
}

// ParseGroups extracts the caller's groups from the request headers.
func ParseGroups(r *http.Request) []string {
	raw := r.Header.Get(GroupsHeader)
	if raw == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// CanAccessService reports whether any of the caller's groups grants the
// service. Unknown groups grant nothing.
func CanAccessService(groups []string, service string) bool {
	service = strings.ToLower(service)
	for _, group := range groups {
		for _, allowed := range groupPolicy[strings.ToLower(group)] {
			if allowed == "*" || allowed == service {
				return true
			}
		}
	}
	return false
}

// AccessibleServices returns the sorted union of services the caller's groups
// grant, restricted to the known service set. A wildcard group grants every
// known service.
func AccessibleServices(groups []string, known []string) []string {
	granted := make(map[string]bool)
	for _, group := range groups {
		for _, allowed := range groupPolicy[strings.ToLower(group)] {
			if allowed == "*" {
				return append([]string(nil), known...)
			}
			granted[allowed] = true
		}
	}

	var services []string
	for _, service := range known {
		if granted[service] {
			services = append(services, service)
		}
	}
	sort.Strings(services)
	return services
}
