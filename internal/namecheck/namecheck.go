// Package namecheck validates the branch/tag/preset name syntax shared
// across §3, §4.3, and §4.8: [A-Za-z0-9_-]{1,50}, with "head" reserved
// for branch/tag names.
package namecheck

import "regexp"

var pattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// Valid reports whether name matches the shared charset/length rule.
func Valid(name string) bool {
	return pattern.MatchString(name)
}

// ValidBranchOrTagName additionally rejects the reserved literal "head"
// (case-sensitive per §3: branch names are case-preserved).
func ValidBranchOrTagName(name string) bool {
	return Valid(name) && name != "head"
}
