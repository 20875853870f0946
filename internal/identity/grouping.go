package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Subject grouping: records are bucketed by subject identity before
// processing so that every record of one subject flows through one remapper
// and one ledger. The group key uses the same keyed construction as the
// remapper's replacements, so it is stable across runs holding the same
// salt and meaningless without it.

// Placeholder demographics seen in real exports; grouping on them would
// lump unrelated subjects into one bucket.
var placeholderNames = map[string]bool{
	"unknown":   true,
	"noname":    true,
	"nameno":    true, // "NO NAME" after part sorting
	"anonymous": true,
	"test":      true,
	"patient":   true,
}

var placeholderBirthDates = map[string]bool{
	"00000000": true,
	"11111111": true,
	"19000101": true,
	"99999999": true,
}

// normalizeSubjectName reduces the spellings one subject shows up under
// ("SMITH^JOHN", "smith, john", "John Smith") to a single comparable form:
// uppercase letters only, name parts sorted.
func normalizeSubjectName(name string) string {
	name = strings.ToUpper(name)
	name = strings.ReplaceAll(name, "^", " ")
	name = strings.ReplaceAll(name, ",", " ")
	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || r == ' ' {
			return r
		}
		return -1
	}, name)

	parts := strings.Fields(name)
	sort.Strings(parts)
	return strings.Join(parts, "")
}

// GroupKey derives the subject bucket from name and birth date,
// HMAC-SHA256 keyed with the run salt. 12 uppercase hex characters; not
// invertible, not linkable across salts.
func GroupKey(name, dob string, salt []byte) string {
	h := hmac.New(sha256.New, salt)
	h.Write([]byte(normalizeSubjectName(name)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(dob)))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)[:6]))
}

// UsableIdentity reports whether name and birth date carry enough real
// signal to group on. Records with placeholder demographics fall back to
// PatientID grouping instead.
func UsableIdentity(name, dob string) bool {
	n := strings.ToLower(normalizeSubjectName(name))
	if len(n) < 3 || placeholderNames[n] {
		return false
	}
	d := strings.TrimSpace(dob)
	if len(d) != 8 || placeholderBirthDates[d] {
		return false
	}
	return true
}
