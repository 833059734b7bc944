package wheelname

import (
	"regexp"
	"strings"
)

var (
	nameSeparators  = regexp.MustCompile(`[-_.]+`)
	segmentUnsafe   = regexp.MustCompile(`[^\w.]+`)
	placeholders    = regexp.MustCompile(`\{\w+\}`)
	nonAlnumRuns    = regexp.MustCompile(`[^a-z0-9]+`)
	localSeparators = regexp.MustCompile(`[-_.]`)
	digitRun        = regexp.MustCompile(`[0-9]+`)

	// versionPattern accepts the PEP 440 grammar on lowercased, trimmed
	// input. Each optional segment is captured whole so its presence is
	// the group being non-empty: epoch, release, pre, post, dev, local.
	versionPattern = regexp.MustCompile(`^v?` +
		`(?:([0-9]+)!)?` +
		`([0-9]+(?:\.[0-9]+)*)` +
		`([-_.]?(?:a|b|c|rc|alpha|beta|pre|preview)[-_.]?[0-9]*)?` +
		`((?:-[0-9]+)|(?:[-_.]?(?:post|rev|r)[-_.]?[0-9]*))?` +
		`([-_.]?dev[-_.]?[0-9]*)?` +
		`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
		`$`)
)

// NormalizeName normalizes a distribution name according to the Python
// packaging name-normalization rules: runs of dash, underscore, and dot
// collapse to a single dash, lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// EscapeDistribution produces the distribution field of a wheel filename:
// the normalized name with dashes replaced by underscores, the only
// spelling that survives the dash-delimited grammar.
func EscapeDistribution(name string) string {
	return strings.ReplaceAll(NormalizeName(name), "-", "_")
}

// EscapeSegment is the legacy filename-segment escaping: runs of
// characters outside [A-Za-z0-9_.] become a single underscore. Used when
// name and version normalization is disabled.
func EscapeSegment(segment string) string {
	return segmentUnsafe.ReplaceAllString(segment, "_")
}

// NormalizeVersion canonicalizes a version per PEP 440.
//
// Unparseable versions never fail: any {PLACEHOLDER} tokens (unresolved
// stamp variables) are replaced with 0 and the original string, sanitized
// to dot-separated alphanumerics, is appended as a local segment so the
// placeholder stays visible; if the result still does not parse, the
// version becomes 0 plus the sanitized original as a local segment.
func NormalizeVersion(version string) string {
	if v, ok := canonicalize(version); ok {
		return v
	}

	sanitized := strings.Trim(nonAlnumRuns.ReplaceAllString(strings.ToLower(version), "."), ".")
	if sanitized == "" {
		return "0"
	}
	substituted := placeholders.ReplaceAllString(version, "0")
	delimiter := "+"
	if strings.Contains(substituted, "+") {
		delimiter = "."
	}
	if v, ok := canonicalize(substituted + delimiter + sanitized); ok {
		return v
	}
	if v, ok := canonicalize("0+" + sanitized); ok {
		return v
	}
	return "0"
}

func canonicalize(version string) (string, bool) {
	m := versionPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(version)))
	if m == nil {
		return "", false
	}
	epoch, release, pre, post, dev, local := m[1], m[2], m[3], m[4], m[5], m[6]

	var b strings.Builder

	if epoch != "" && trimZeros(epoch) != "0" {
		b.WriteString(trimZeros(epoch))
		b.WriteString("!")
	}

	for i, seg := range strings.Split(release, ".") {
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(trimZeros(seg))
	}

	if pre != "" {
		b.WriteString(preSpelling(pre))
		b.WriteString(segmentNumber(pre))
	}
	if post != "" {
		b.WriteString(".post")
		b.WriteString(segmentNumber(post))
	}
	if dev != "" {
		b.WriteString(".dev")
		b.WriteString(segmentNumber(dev))
	}

	if local != "" {
		b.WriteString("+")
		for i, part := range localSeparators.Split(local, -1) {
			if i > 0 {
				b.WriteString(".")
			}
			if isDigits(part) {
				b.WriteString(trimZeros(part))
			} else {
				b.WriteString(part)
			}
		}
	}

	return b.String(), true
}

// preSpelling maps the many pre-release spellings onto a, b, and rc.
func preSpelling(pre string) string {
	s := strings.TrimLeft(pre, "-_.")
	switch {
	case strings.HasPrefix(s, "alpha"), strings.HasPrefix(s, "a"):
		return "a"
	case strings.HasPrefix(s, "beta"), strings.HasPrefix(s, "b"):
		return "b"
	default: // c, rc, pre, preview
		return "rc"
	}
}

// segmentNumber extracts the numeric part of a pre/post/dev segment,
// defaulting to 0 when the spelling carries no number.
func segmentNumber(segment string) string {
	n := digitRun.FindString(segment)
	if n == "" {
		return "0"
	}
	return trimZeros(n)
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
