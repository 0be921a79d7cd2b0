// Package strings normalises free text arriving from requests and query strings.
package strings

import (
	"strings"
	"unicode"
)

// TrimAll trims each pointed-to string in place.
func TrimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// SplitList flattens repeated and comma separated query values, so
// ?status=A,B and ?status=A&status=B read the same. Blanks are dropped and
// the first occurrence of each value wins.
func SplitList(values []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

// SnakeCase turns an identifier like "RequiresRevision" into
// "requires_revision". Runs of capitals stay one word: "CaseID" is "case_id".
func SnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		boundary := i > 0 && unicode.IsUpper(r) &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1])))
		if boundary {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
