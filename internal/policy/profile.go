// Package policy applies named compliance profiles to DICOM records. A
// profile decides, field by field via the classifier, what is retained,
// remapped, shifted, scrubbed, or removed, and emits one audit decision per
// change.
package policy

import "fmt"

// Profile is a named, mutually exclusive de-identification policy.
type Profile int

const (
	// MinimalRepair fixes malformed headers only; no PHI is touched.
	MinimalRepair Profile = iota
	// SafeHarbor removes the standard PHI field set, shifts dates, remaps
	// identifiers, and strips vendor-private fields.
	SafeHarbor
	// StrictJurisdictional is SafeHarbor plus one-way hashing of the primary
	// subject identifier and removal of institutional fields.
	StrictJurisdictional
	// LegalDisclosure preserves subject data and identifiers for chain of
	// custody and redacts only staff/operator fields.
	LegalDisclosure
)

func (p Profile) String() string {
	switch p {
	case MinimalRepair:
		return "minimal-repair"
	case SafeHarbor:
		return "safe-harbor"
	case StrictJurisdictional:
		return "strict-jurisdictional"
	case LegalDisclosure:
		return "legal-disclosure"
	}
	return "unknown"
}

// ParseProfile resolves a profile name from configuration.
func ParseProfile(name string) (Profile, error) {
	switch name {
	case "minimal-repair":
		return MinimalRepair, nil
	case "safe-harbor":
		return SafeHarbor, nil
	case "strict-jurisdictional":
		return StrictJurisdictional, nil
	case "legal-disclosure":
		return LegalDisclosure, nil
	}
	return MinimalRepair, fmt.Errorf("unknown profile %q", name)
}

// PixelAction is the declared pixel handling for a record.
type PixelAction int

const (
	// PixelNoop promises byte-identical pixel passthrough, enforced later.
	PixelNoop PixelAction = iota
	// PixelMasked means reviewed regions will be blacked out; the
	// passthrough check does not apply.
	PixelMasked
)

func (a PixelAction) String() string {
	if a == PixelMasked {
		return "masked"
	}
	return "noop"
}
