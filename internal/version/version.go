// Package version carries the build version shared by the agent and the
// collector, and compares the versions agents report in their User-Agent.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Version is overridden at build time via -ldflags "-X pcinventory/internal/version.Version=...".
var Version = "1.0.0"

// AgentProduct is the product token agents send in their User-Agent header.
const AgentProduct = "pcinventory-agent"

var (
	leadingDigits = regexp.MustCompile(`^\d+`)
	anyDigits     = regexp.MustCompile(`(\d+)`)
)

// UserAgent returns the header value the agent sends with every submission.
func UserAgent() string {
	return AgentProduct + "/" + Version
}

// FromUserAgent extracts the agent version from a User-Agent header.
// The second return value is false for clients that are not the agent.
func FromUserAgent(ua string) (string, bool) {
	for _, token := range strings.Fields(ua) {
		product, ver, ok := strings.Cut(token, "/")
		if ok && product == AgentProduct && ver != "" {
			return ver, true
		}
	}
	return "", false
}

// CompareVersions compares two semantic versions.
// Returns: -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	parts1 := parseVersion(normalizeVersion(v1))
	parts2 := parseVersion(normalizeVersion(v2))

	for i := 0; i < 3; i++ {
		if parts1[i] < parts2[i] {
			return -1
		}
		if parts1[i] > parts2[i] {
			return 1
		}
	}

	// A stable release sorts after any prerelease of the same version.
	pre1, pre2 := parts1[3], parts2[3]
	switch {
	case pre1 == 0 && pre2 != 0:
		return 1
	case pre1 != 0 && pre2 == 0:
		return -1
	case pre1 < pre2:
		return -1
	case pre1 > pre2:
		return 1
	}
	return 0
}

// IsOutdated reports whether an agent running reported is behind current.
// Unknown (empty) versions are not flagged.
func IsOutdated(reported, current string) bool {
	if strings.TrimSpace(reported) == "" {
		return false
	}
	return CompareVersions(reported, current) < 0
}

func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	return strings.TrimPrefix(v, "V")
}

// parseVersion returns [major, minor, patch, prerelease weight].
func parseVersion(v string) [4]int {
	var result [4]int

	if idx := strings.Index(v, "-"); idx != -1 {
		prePart := v[idx+1:]
		v = v[:idx]

		pre := 0
		if m := anyDigits.FindStringSubmatch(prePart); len(m) > 1 {
			pre, _ = strconv.Atoi(m[1])
		}

		preLower := strings.ToLower(prePart)
		switch {
		case strings.HasPrefix(preLower, "alpha"):
			pre += 1000
		case strings.HasPrefix(preLower, "beta"):
			pre += 2000
		case strings.HasPrefix(preLower, "rc"):
			pre += 3000
		default:
			pre += 500
		}
		result[3] = pre
	}

	parts := strings.Split(v, ".")
	for i := 0; i < len(parts) && i < 3; i++ {
		if num, err := strconv.Atoi(leadingDigits.FindString(parts[i])); err == nil {
			result[i] = num
		}
	}
	return result
}
