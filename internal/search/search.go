// Package search computes the live-filter match set for the scene. Matching
// is a case-insensitive substring test against hostname and IP address; the
// rendering layer fades everything outside the set while a query is active.
package search

import (
	"strings"

	"topoviz/internal/topo"
)

// Match returns the ids of nodes whose hostname or IP address contains the
// query, case-insensitively. An empty (or all-whitespace) query matches
// every node.
func Match(query string, nodes []topo.Node) map[int64]struct{} {
	out := make(map[int64]struct{}, len(nodes))

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		for _, n := range nodes {
			out[n.ID] = struct{}{}
		}
		return out
	}

	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Hostname), q) ||
			strings.Contains(strings.ToLower(n.IPAddress), q) {
			out[n.ID] = struct{}{}
		}
	}
	return out
}

// Active reports whether a query should fade non-matches at all.
func Active(query string) bool {
	return strings.TrimSpace(query) != ""
}
