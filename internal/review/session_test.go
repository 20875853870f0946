package review

import (
	"errors"
	"reflect"
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()
	if s.State() != Draft {
		t.Fatalf("new session state = %v, want Draft", s.State())
	}

	if err := s.Accept(); !errors.Is(err, ErrNotInReview) {
		t.Errorf("Accept from Draft = %v, want ErrNotInReview", err)
	}

	if err := s.StartReview(); err != nil {
		t.Fatalf("StartReview failed: %v", err)
	}
	if s.State() != InReview {
		t.Fatalf("state after start = %v, want InReview", s.State())
	}

	if err := s.StartReview(); err == nil {
		t.Error("double StartReview should fail")
	}

	if err := s.Accept(); err != nil {
		t.Fatalf("Accept from InReview failed: %v", err)
	}
	if s.State() != Sealed {
		t.Fatalf("state after accept = %v, want Sealed", s.State())
	}

	if err := s.Accept(); !errors.Is(err, ErrSessionSealed) {
		t.Errorf("Accept after seal = %v, want ErrSessionSealed", err)
	}
}

func TestSealImmutability(t *testing.T) {
	s := NewSession()
	s.StartReview()
	id, err := s.AddManualRegion(10, 10, 20, 20, -1)
	if err != nil {
		t.Fatalf("AddManualRegion failed: %v", err)
	}

	before := s.ActiveRegions()

	if err := s.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	mutators := []struct {
		name string
		call func() error
	}{
		{"AddManualRegion", func() error { _, err := s.AddManualRegion(0, 0, 5, 5, -1); return err }},
		{"Toggle", func() error { return s.Toggle(id) }},
		{"MaskAll", func() error { return s.MaskAll() }},
		{"UnmaskAll", func() error { return s.UnmaskAll() }},
		{"DeleteRegion", func() error { return s.DeleteRegion(id) }},
		{"ResetToDefaults", func() error { return s.ResetToDefaults() }},
		{"StartReview", func() error { return s.StartReview() }},
	}

	for _, m := range mutators {
		if err := m.call(); !errors.Is(err, ErrSessionSealed) {
			t.Errorf("%s after seal = %v, want ErrSessionSealed", m.name, err)
		}
	}

	// Reads still succeed and are unchanged from immediately before sealing.
	after := s.ActiveRegions()
	if !reflect.DeepEqual(regionRects(before), regionRects(after)) {
		t.Error("read-only view changed across sealing")
	}
	if len(s.MaskedRegions()) != 1 {
		t.Errorf("masked region count = %d, want 1", len(s.MaskedRegions()))
	}

	// Findings stay append-only even after sealing.
	s.RecordFinding("QA_SPOT_CHECK", id)
	if len(s.Findings()) != 1 {
		t.Errorf("finding count = %d, want 1", len(s.Findings()))
	}
}

func TestSnapshotCannotReachSealedState(t *testing.T) {
	s := NewSession()
	s.StartReview()
	id, err := s.AddManualRegion(10, 10, 20, 20, -1)
	if err != nil {
		t.Fatalf("AddManualRegion failed: %v", err)
	}
	// Toggle installs a reviewer override; the snapshot must not share it.
	if err := s.Toggle(id); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if err := s.Toggle(id); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	snapshot := s.Regions()
	if err := s.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	// Writing through the pre-seal snapshot must leave the session alone.
	*snapshot[0].Reviewer = ActionUnmask

	if got := len(s.MaskedRegions()); got != 1 {
		t.Errorf("masked region count = %d after snapshot write, want 1", got)
	}
	if got := s.Regions()[0].EffectiveAction(); got != ActionMask {
		t.Errorf("effective action = %v after snapshot write, want mask", got)
	}
}

func regionRects(regions []Region) [][4]int {
	out := make([][4]int, len(regions))
	for i, r := range regions {
		out[i] = [4]int{r.X, r.Y, r.Width, r.Height}
	}
	return out
}

func TestToggleOverridesDefault(t *testing.T) {
	s := NewSession()
	s.StartReview()
	id, _ := s.AddManualRegion(0, 0, 10, 10, -1)

	if got := s.Regions()[0].EffectiveAction(); got != ActionMask {
		t.Fatalf("manual region default = %v, want Mask", got)
	}

	if err := s.Toggle(id); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if got := s.Regions()[0].EffectiveAction(); got != ActionUnmask {
		t.Errorf("after toggle = %v, want Unmask", got)
	}

	if err := s.Toggle(id); err != nil {
		t.Fatalf("second Toggle failed: %v", err)
	}
	if got := s.Regions()[0].EffectiveAction(); got != ActionMask {
		t.Errorf("after second toggle = %v, want Mask", got)
	}

	if err := s.Toggle(999); !errors.Is(err, ErrRegionNotFound) {
		t.Errorf("Toggle(missing) = %v, want ErrRegionNotFound", err)
	}
}

func TestOCRRegionsUndeletable(t *testing.T) {
	s := NewSession()
	s.StartReview()
	if err := s.PopulateFromDetection(DetectionResult{
		Boxes: []Box{{X: 0, Y: 0, Width: 50, Height: 10, Confidences: []float64{0.95}}},
	}, 100, 100, DefaultZoneThresholds); err != nil {
		t.Fatalf("PopulateFromDetection failed: %v", err)
	}

	id := s.Regions()[0].ID
	if err := s.DeleteRegion(id); !errors.Is(err, ErrRegionUndeletable) {
		t.Errorf("deleting OCR region = %v, want ErrRegionUndeletable", err)
	}

	// Manual regions can be deleted.
	mid, _ := s.AddManualRegion(5, 5, 5, 5, -1)
	if err := s.DeleteRegion(mid); err != nil {
		t.Errorf("deleting manual region failed: %v", err)
	}
}

func TestMaskAllUnmaskAllReset(t *testing.T) {
	s := NewSession()
	s.StartReview()
	s.AddManualRegion(0, 0, 5, 5, -1)
	s.AddManualRegion(10, 10, 5, 5, -1)

	if err := s.UnmaskAll(); err != nil {
		t.Fatalf("UnmaskAll failed: %v", err)
	}
	if got := len(s.MaskedRegions()); got != 0 {
		t.Errorf("masked after UnmaskAll = %d, want 0", got)
	}

	if err := s.MaskAll(); err != nil {
		t.Fatalf("MaskAll failed: %v", err)
	}
	if got := len(s.MaskedRegions()); got != 2 {
		t.Errorf("masked after MaskAll = %d, want 2", got)
	}

	if err := s.ResetToDefaults(); err != nil {
		t.Fatalf("ResetToDefaults failed: %v", err)
	}
	for _, r := range s.Regions() {
		if r.Reviewer != nil {
			t.Error("reviewer override survived reset")
		}
	}
}

func TestAddManualRegionValidation(t *testing.T) {
	s := NewSession()
	s.StartReview()
	if _, err := s.AddManualRegion(0, 0, 0, 10, -1); err == nil {
		t.Error("zero-width region accepted")
	}
	if _, err := s.AddManualRegion(0, 0, 10, -1, -1); err == nil {
		t.Error("negative-height region accepted")
	}
}
