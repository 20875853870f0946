// Package classify maps DICOM tags to de-identification actions and file
// objects to content kinds. Classification is deny-by-default: a tag that is
// not explicitly whitelisted is treated as PHI and removed.
package classify

import "github.com/suyashkumar/dicom/pkg/tag"

// Action is the de-identification action for one field.
type Action int

const (
	Retain Action = iota
	RemapIdentifier
	ShiftDate
	ScrubText
	RemovePHI
)

func (a Action) String() string {
	switch a {
	case Retain:
		return "retain"
	case RemapIdentifier:
		return "remap"
	case ShiftDate:
		return "shift_date"
	case ScrubText:
		return "scrub_text"
	case RemovePHI:
		return "remove_phi"
	}
	return "unknown"
}

// FileKind classifies a file object by modality and SOP class.
type FileKind int

const (
	Image FileKind = iota
	Document
	Unsupported
)

func (k FileKind) String() string {
	switch k {
	case Image:
		return "image"
	case Document:
		return "document"
	}
	return "unsupported"
}

// Classify returns the action for a tag. Pure and total: vendor-private tags
// and tags absent from every table resolve to RemovePHI.
func Classify(t tag.Tag) Action {
	// Odd group numbers are vendor-private; private creators can smuggle
	// anything, so they are never retained.
	if t.Group%2 == 1 {
		return RemovePHI
	}
	if action, ok := actionTable[t]; ok {
		return action
	}
	return RemovePHI
}

// IsStaffField reports whether a tag identifies clinical staff rather than
// the subject. Used by the legal-disclosure profile, which redacts operators
// but preserves subject identity.
func IsStaffField(t tag.Tag) bool {
	return staffTags[t]
}

// IsInstitutionField reports whether a tag identifies the performing
// institution. Removed under the strict jurisdictional profile.
func IsInstitutionField(t tag.Tag) bool {
	return institutionTags[t]
}

// imageModalities are modalities whose files carry reviewable pixel data.
var imageModalities = map[string]bool{
	"US": true, "IVUS": true, "CT": true, "MR": true, "CR": true,
	"DX": true, "MG": true, "NM": true, "PT": true, "RF": true,
	"XA": true, "OT": true,
}

// documentSOPClasses are SOP classes that carry reports, not images.
var documentSOPClasses = map[string]bool{
	"1.2.840.10008.5.1.4.1.1.104.1": true, // Encapsulated PDF
	"1.2.840.10008.5.1.4.1.1.88.11": true, // Basic Text SR
	"1.2.840.10008.5.1.4.1.1.88.22": true, // Enhanced SR
	"1.2.840.10008.5.1.4.1.1.88.33": true, // Comprehensive SR
}

// ClassifyFile classifies a file object. Pure and total: anything not
// recognized is Unsupported, never silently treated as an image.
func ClassifyFile(modality, sopClassUID string) FileKind {
	if documentSOPClasses[sopClassUID] || modality == "SR" || modality == "DOC" {
		return Document
	}
	if imageModalities[modality] {
		return Image
	}
	return Unsupported
}
