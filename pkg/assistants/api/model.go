package api

import "strings"

// ResolveModelID returns the first non-blank candidate in order of precedence:
// the id passed to the call, the id already set on the request, the client default.
// It returns "" if all three are blank.
func ResolveModelID(explicit, fromRequest, fallback string) string {
	for _, candidate := range []string{explicit, fromRequest, fallback} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func firstModelID(modelID []string) string {
	if len(modelID) == 0 {
		return ""
	}
	return modelID[0]
}
