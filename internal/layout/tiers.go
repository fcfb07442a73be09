package layout

import "strings"

// TierUnknown is the catch-all tier for missing or unrecognized device types.
// Such devices are still laid out, never dropped.
const TierUnknown = "unknown"

// tierOf classifies a device type against the ordered keyword list. The
// first keyword that is a case-insensitive substring of the type wins.
func tierOf(deviceType string, keywords []string) string {
	dt := strings.ToLower(strings.TrimSpace(deviceType))
	if dt == "" {
		return TierUnknown
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(dt, strings.ToLower(kw)) {
			return kw
		}
	}
	return TierUnknown
}

// tierRank returns the row order of a tier: keyword-list order, with the
// unknown tier always last.
func tierRank(tier string, keywords []string) int {
	for i, kw := range keywords {
		if kw == tier {
			return i
		}
	}
	return len(keywords)
}
