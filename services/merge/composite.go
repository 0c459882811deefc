package merge

import "strings"

const (
	legacyPrefix    = "both"
	legacyDelimiter = "|"
)

// CompositeID is the public id of a merged entry. The grooming booking is the
// primary constituent, so its id is reused verbatim.
func CompositeID(groomingID, gardenID string) string {
	return groomingID
}

// EncodeLegacyID renders the delimited form older callers pass around when
// they only hold a single id string.
func EncodeLegacyID(groomingID, gardenID string) string {
	return strings.Join([]string{legacyPrefix, groomingID, gardenID}, legacyDelimiter)
}

// DecodeLegacyID extracts both constituent ids from a delimited composite id,
// either `both|g|d` or the older bare `g|d`. Anything that does not match
// either shape is returned unchanged with ok=false.
func DecodeLegacyID(id string) (groomingID, gardenID string, ok bool) {
	parts := strings.Split(id, legacyDelimiter)
	switch {
	case len(parts) == 3 && parts[0] == legacyPrefix:
		parts = parts[1:]
	case len(parts) == 2 && parts[0] != legacyPrefix:
	default:
		return id, "", false
	}
	g, d := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if g == "" || d == "" {
		return id, "", false
	}
	return g, d, true
}
