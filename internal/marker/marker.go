// Package marker parses the hierarchical trace markers embedded in
// documentation comments.
//
// A marker is a caret followed by dash-separated name/number pairs:
//
//	^JIRA1234-001                          story
//	^JIRA1234-001-solution-002             solution
//	^JIRA1234-001-solution-002-test-003    test
package marker

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// Role classifies a marker by its segment count.
type Role int

const (
	RoleUnknown Role = iota
	RoleStory
	RoleSolution
	RoleTest
)

func (r Role) String() string {
	switch r {
	case RoleStory:
		return "story"
	case RoleSolution:
		return "solution"
	case RoleTest:
		return "test"
	default:
		return "unknown"
	}
}

// Pattern matches a marker preceded by one whitespace character.
var Pattern = regexp.MustCompile(`\s\^[a-zA-Z]+[a-zA-Z0-9]+-[0-9]+(?:-[a-zA-Z]+[a-zA-Z0-9]+-[0-9]+)*`)

// Extract returns every marker in text, trimmed, deduplicated and sorted.
func Extract(text string) []string {
	matches := Pattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Segments splits a marker into its dash-separated parts without the caret.
func Segments(marker string) []string {
	return strings.Split(strings.TrimPrefix(marker, "^"), "-")
}

// RoleOf reports the role implied by the marker's segment count.
func RoleOf(marker string) Role {
	switch len(Segments(marker)) {
	case 2:
		return RoleStory
	case 4:
		return RoleSolution
	case 6:
		return RoleTest
	default:
		return RoleUnknown
	}
}

// IsTest reports whether marker has exactly six segments.
func IsTest(marker string) bool {
	return RoleOf(marker) == RoleTest
}

// DropRight removes the last n dash-separated segments of marker. The caret
// is kept. Dropping every segment yields the empty string.
func DropRight(marker string, n int) string {
	parts := strings.Split(marker, "-")
	if n >= len(parts) {
		return ""
	}
	return strings.Join(parts[:len(parts)-n], "-")
}

// SolutionPath derives the solution document for a marker: segments are
// paired into folder levels and the last pair names the file.
//
//	SolutionPath("docs/solutions", "^JIRA1234-001-solution-002")
//	  == "/docs/solutions/JIRA1234-001/solution-002.md"
//
// A trailing lone segment is dropped.
func SolutionPath(folder, marker string) string {
	segs := Segments(marker)
	pairs := make([]string, 0, len(segs)/2)
	for i := 0; i+1 < len(segs); i += 2 {
		pairs = append(pairs, segs[i]+"-"+segs[i+1])
	}
	return "/" + path.Join(strings.Trim(folder, "/"), strings.Join(pairs, "/")) + ".md"
}

// Heading renders the level-1 title of a solution document: the folder
// elements of its path, space-joined and upper-cased.
func Heading(solutionPath string) string {
	dir := path.Dir(strings.Trim(solutionPath, "/"))
	var parts []string
	for _, p := range strings.Split(dir, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return "# " + strings.ToUpper(strings.Join(parts, " "))
}

// WithoutCaret strips the leading caret.
func WithoutCaret(marker string) string {
	return strings.TrimPrefix(marker, "^")
}
