// Package trace is the audit ledger: an append-only sequence of enumerated,
// PHI-free decision records describing every field and pixel choice made for
// a processing run.
package trace

import "time"

// ActionCode is the closed vocabulary of recorded actions.
type ActionCode string

const (
	ActionRemoved  ActionCode = "REMOVED"
	ActionRemapped ActionCode = "REMAPPED"
	ActionShifted  ActionCode = "SHIFTED"
	ActionScrubbed ActionCode = "SCRUBBED"
	ActionRetained ActionCode = "RETAINED"
	ActionMasked   ActionCode = "MASKED"
	ActionUnmasked ActionCode = "UNMASKED"
	ActionVerified ActionCode = "VERIFIED"
	ActionSkipped  ActionCode = "SKIPPED"
)

// ReasonCode is the closed vocabulary of recorded reasons. Audits never
// parse prose; by construction a reason code cannot contain the value it
// describes.
type ReasonCode string

const (
	ReasonWhitelist        ReasonCode = "RC_WHITELIST"
	ReasonSafeHarbor       ReasonCode = "RC_SAFE_HARBOR"
	ReasonPrivateTag       ReasonCode = "RC_PRIVATE_TAG"
	ReasonDatePolicy       ReasonCode = "RC_DATE_POLICY"
	ReasonTransformError   ReasonCode = "RC_TRANSFORM_ERROR"
	ReasonReviewerOverride ReasonCode = "RC_REVIEWER_OVERRIDE"
	ReasonOCRDetection     ReasonCode = "RC_OCR_DETECTION"
	ReasonPixelVerified    ReasonCode = "RC_PIXEL_VERIFIED"
	ReasonNotApplicable    ReasonCode = "RC_NOT_APPLICABLE"
	ReasonHeaderRepair     ReasonCode = "RC_HEADER_REPAIR"
	ReasonLegalHold        ReasonCode = "RC_LEGAL_HOLD"
	ReasonJurisdiction     ReasonCode = "RC_JURISDICTION"
)

// TargetType names what a decision applies to.
type TargetType string

const (
	TargetField       TargetType = "FIELD"
	TargetPixelRegion TargetType = "PIXEL_REGION"
	TargetPixelBuffer TargetType = "PIXEL_BUFFER"
	TargetFile        TargetType = "FILE"
)

// ScopeLevel situates a decision in the study/series/instance hierarchy.
type ScopeLevel string

const (
	ScopeStudy    ScopeLevel = "STUDY"
	ScopeSeries   ScopeLevel = "SERIES"
	ScopeInstance ScopeLevel = "INSTANCE"
)

// Geometry is an optional rectangle attached to pixel-region decisions.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Decision is one immutable audit record. No field ever holds a clinical
// value: targets are tag names, references are de-identified identifiers,
// hashes are truncated digests.
type Decision struct {
	Sequence      int        `json:"sequence"`
	ScopeLevel    ScopeLevel `json:"scope_level"`
	ScopeRef      string     `json:"scope_ref"`
	Action        ActionCode `json:"action"`
	TargetType    TargetType `json:"target_type"`
	TargetName    string     `json:"target_name"`
	Reason        ReasonCode `json:"reason"`
	RuleSource    string     `json:"rule_source"`
	Geometry      *Geometry  `json:"geometry,omitempty"`
	TruncatedHash string     `json:"truncated_hash,omitempty"`
	At            time.Time  `json:"at"`
}
