package review

import (
	"errors"
	"fmt"
)

// State is the review session lifecycle state.
type State int

const (
	Draft State = iota
	InReview
	Sealed
)

func (s State) String() string {
	switch s {
	case Draft:
		return "draft"
	case InReview:
		return "in_review"
	case Sealed:
		return "sealed"
	}
	return "unknown"
}

var (
	// ErrSessionSealed is returned by every mutating call after Accept.
	ErrSessionSealed = errors.New("review session is sealed")
	// ErrNotInReview is returned by Accept outside the InReview state.
	ErrNotInReview = errors.New("review session is not in review")
	// ErrRegionNotFound is returned when a region ID does not exist.
	ErrRegionNotFound = errors.New("region not found")
	// ErrRegionUndeletable is returned when deleting an OCR-sourced region.
	ErrRegionUndeletable = errors.New("detector-sourced regions cannot be deleted")
)

// Finding is an append-only note attached after review. Text is an
// enumerated code, never free prose.
type Finding struct {
	Code     string
	RegionID int
}

// Session is a single-writer review state machine. Once Accept succeeds the
// session is sealed: region mutators fail, reads and finding appends remain
// legal.
type Session struct {
	state    State
	regions  []Region
	findings []Finding
	nextID   int
}

// NewSession creates a session in Draft.
func NewSession() *Session {
	return &Session{state: Draft}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// StartReview moves Draft to InReview.
func (s *Session) StartReview() error {
	switch s.state {
	case Sealed:
		return ErrSessionSealed
	case InReview:
		return fmt.Errorf("review already started")
	}
	s.state = InReview
	return nil
}

// Accept seals the session. Legal only from InReview.
func (s *Session) Accept() error {
	if s.state != InReview {
		if s.state == Sealed {
			return ErrSessionSealed
		}
		return ErrNotInReview
	}
	s.state = Sealed
	return nil
}

// guardMutable is the single entry check for every region mutator.
func (s *Session) guardMutable() error {
	if s.state == Sealed {
		return ErrSessionSealed
	}
	return nil
}

func (s *Session) addRegion(r Region) int {
	r.ID = s.nextID
	s.nextID++
	s.regions = append(s.regions, r)
	return r.ID
}

// AddManualRegion adds a reviewer-drawn rectangle, defaulting to Mask.
func (s *Session) AddManualRegion(x, y, width, height, frameIndex int) (int, error) {
	if err := s.guardMutable(); err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("region must have positive size, got %dx%d", width, height)
	}
	id := s.addRegion(Region{
		X: x, Y: y, Width: width, Height: height,
		Source:        SourceManual,
		DefaultAction: ActionMask,
		FrameIndex:    frameIndex,
		Strength:      StrengthNone,
	})
	return id, nil
}

// Toggle flips a region's effective action via a reviewer override.
func (s *Session) Toggle(id int) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	for i := range s.regions {
		if s.regions[i].ID == id {
			next := ActionMask
			if s.regions[i].EffectiveAction() == ActionMask {
				next = ActionUnmask
			}
			s.regions[i].Reviewer = &next
			return nil
		}
	}
	return ErrRegionNotFound
}

// MaskAll overrides every region to Mask.
func (s *Session) MaskAll() error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	for i := range s.regions {
		action := ActionMask
		s.regions[i].Reviewer = &action
	}
	return nil
}

// UnmaskAll overrides every region to Unmask.
func (s *Session) UnmaskAll() error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	for i := range s.regions {
		action := ActionUnmask
		s.regions[i].Reviewer = &action
	}
	return nil
}

// ResetToDefaults drops all reviewer overrides.
func (s *Session) ResetToDefaults() error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	for i := range s.regions {
		s.regions[i].Reviewer = nil
	}
	return nil
}

// DeleteRegion removes a manual region. OCR-sourced regions are
// undeletable; override them instead.
func (s *Session) DeleteRegion(id int) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	for i := range s.regions {
		if s.regions[i].ID == id {
			if s.regions[i].Source == SourceOCR {
				return ErrRegionUndeletable
			}
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return nil
		}
	}
	return ErrRegionNotFound
}

// copyRegion detaches the reviewer override so callers holding a snapshot
// cannot write through it into session state.
func copyRegion(r Region) Region {
	if r.Reviewer != nil {
		override := *r.Reviewer
		r.Reviewer = &override
	}
	return r
}

// Regions returns a copy of all regions. Legal in any state.
func (s *Session) Regions() []Region {
	out := make([]Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = copyRegion(r)
	}
	return out
}

// MaskedRegions returns regions whose effective action is Mask. Legal in
// any state.
func (s *Session) MaskedRegions() []Region {
	var out []Region
	for _, r := range s.regions {
		if r.EffectiveAction() == ActionMask {
			out = append(out, copyRegion(r))
		}
	}
	return out
}

// ActiveRegions returns all regions with their effective actions resolved.
// Legal in any state.
func (s *Session) ActiveRegions() []Region {
	out := s.Regions()
	for i := range out {
		action := out[i].EffectiveAction()
		out[i].Reviewer = &action
	}
	return out
}

// RecordFinding appends a finding. Permitted even after sealing; findings
// are append-only evidence, not region mutations.
func (s *Session) RecordFinding(code string, regionID int) {
	s.findings = append(s.findings, Finding{Code: code, RegionID: regionID})
}

// Findings returns a copy of recorded findings.
func (s *Session) Findings() []Finding {
	out := make([]Finding, len(s.findings))
	copy(out, s.findings)
	return out
}
