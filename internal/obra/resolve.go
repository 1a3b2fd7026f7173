package obra

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/obras/internal/models"
	"golang.org/x/text/unicode/norm"
)

// MatchKind says which resolution rule found a record.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchTruncatedPrefix
	MatchFuzzy
	MatchExpediente
)

// String returns the label used in logs, metrics and API responses.
func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchTruncatedPrefix:
		return "truncated_prefix"
	case MatchFuzzy:
		return "fuzzy"
	case MatchExpediente:
		return "expediente"
	}
	return "none"
}

// LowConfidence reports whether the match was a guess the caller may want
// to confirm with the user. Several records can satisfy these rules; the
// first one in document order wins.
func (k MatchKind) LowConfidence() bool {
	return k == MatchTruncatedPrefix || k == MatchFuzzy
}

// Match identifies the record an identifier resolved to.
type Match struct {
	Name string // nombreObra of the record
	Kind MatchKind
}

const (
	fuzzyMinQueryLen  = 10 // fuzzy matching needs a query longer than this
	fuzzyMaxMismatch  = 2  // equal length: at most this many differing positions
	fuzzyMaxLenDiff   = 3  // different length: at most this many extra runes
	fuzzyMinSubstring = 15 // different length: the shorter side must be longer than this
)

var ellipsisMarkers = []string{"...", "…"}

// expedienteShape matches case numbers such as 2024/00123 or 318.2-7.
var expedienteShape = regexp.MustCompile(`^[0-9]{1,5}[0-9./-]*$`)

// normalizeName trims surrounding space and puts the name in NFC, so a name
// typed with combining accents equals the stored precomposed one.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// resolveIndex applies the resolution rules in priority order and returns
// the index of the first record matched by the first rule that matches.
func resolveIndex(obras []models.Obra, query string) (int, MatchKind) {
	q := normalizeName(query)
	if q == "" {
		return -1, MatchNone
	}
	names := make([]string, len(obras))
	for i := range obras {
		names[i] = normalizeName(obras[i].NombreObra)
	}

	for i, name := range names {
		if name == q {
			return i, MatchExact
		}
	}

	if prefix, ok := stripEllipsis(q); ok {
		if prefix != "" {
			for i, name := range names {
				if strings.HasPrefix(name, prefix) {
					return i, MatchTruncatedPrefix
				}
			}
		}
		q = prefix
	}

	if utf8.RuneCountInString(q) > fuzzyMinQueryLen {
		for i, name := range names {
			if fuzzyEqual(q, name) {
				return i, MatchFuzzy
			}
		}
	}

	if expedienteShape.MatchString(q) {
		for i := range obras {
			if strings.TrimSpace(obras[i].NumeroExpediente) == q {
				return i, MatchExpediente
			}
		}
	}
	return -1, MatchNone
}

// stripEllipsis removes a trailing ellipsis left by UI truncation.
func stripEllipsis(s string) (string, bool) {
	for _, m := range ellipsisMarkers {
		if strings.HasSuffix(s, m) {
			return strings.TrimSpace(strings.TrimSuffix(s, m)), true
		}
	}
	return s, false
}

// fuzzyEqual tolerates small typos (equal length, up to two differing
// positions) and small truncations (a long enough name contained in the
// other with at most three extra runes).
func fuzzyEqual(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == len(rb) {
		mismatches := 0
		for i := range ra {
			if ra[i] != rb[i] {
				mismatches++
				if mismatches > fuzzyMaxMismatch {
					return false
				}
			}
		}
		return true
	}
	shorter, longer := a, b
	ns, nl := len(ra), len(rb)
	if ns > nl {
		shorter, longer = b, a
		ns, nl = nl, ns
	}
	if nl-ns > fuzzyMaxLenDiff {
		return false
	}
	return ns > fuzzyMinSubstring && strings.Contains(longer, shorter)
}
