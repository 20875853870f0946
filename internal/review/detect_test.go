package review

import (
	"context"
	"errors"
	"testing"
)

func TestAggregateStrengthConservative(t *testing.T) {
	tests := []struct {
		name        string
		confidences []float64
		expected    Strength
	}{
		// One weak sample pulls the whole region down; an average would
		// have said High here.
		{"minimum wins", []float64{0.95, 0.92, 0.30}, StrengthLow},
		{"all high", []float64{0.95, 0.92, 0.91}, StrengthHigh},
		{"medium floor", []float64{0.95, 0.60}, StrengthMedium},
		{"boundary high", []float64{0.90}, StrengthHigh},
		{"single low", []float64{0.10}, StrengthLow},
		{"no samples", nil, StrengthNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateStrength(tt.confidences); got != tt.expected {
				t.Errorf("AggregateStrength(%v) = %v, want %v",
					tt.confidences, got, tt.expected)
			}
		})
	}
}

func TestClassifyZone(t *testing.T) {
	th := ZoneThresholds{Header: 0.12, Footer: 0.10}
	tests := []struct {
		name        string
		y, height   int
		imageHeight int
		expected    Zone
	}{
		{"top banner", 0, 20, 1000, ZoneHeader},
		{"center", 450, 100, 1000, ZoneBody},
		{"bottom strip", 950, 40, 1000, ZoneFooter},
		{"just under header line", 100, 10, 1000, ZoneHeader},
		{"zero height image", 0, 10, 0, ZoneBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.ClassifyZone(tt.y, tt.height, tt.imageHeight); got != tt.expected {
				t.Errorf("ClassifyZone(%d, %d, %d) = %v, want %v",
					tt.y, tt.height, tt.imageHeight, got, tt.expected)
			}
		})
	}
}

func TestThresholdsFor(t *testing.T) {
	if got := ThresholdsFor("US", nil); got.Header != 0.15 {
		t.Errorf("US header threshold = %v, want 0.15", got.Header)
	}
	if got := ThresholdsFor("CT", nil); got != DefaultZoneThresholds {
		t.Errorf("CT thresholds = %v, want defaults", got)
	}
	overrides := map[string]ZoneThresholds{"CT": {Header: 0.30, Footer: 0.05}}
	if got := ThresholdsFor("CT", overrides); got.Header != 0.30 {
		t.Errorf("override ignored: %v", got)
	}
}

func TestPopulateFromDetection(t *testing.T) {
	s := NewSession()
	s.StartReview()

	res := DetectionResult{Boxes: []Box{
		{X: 10, Y: 5, Width: 200, Height: 20, Confidences: []float64{0.95, 0.93}, FrameIndex: -1},
		{X: 50, Y: 500, Width: 80, Height: 15, Confidences: []float64{0.40}, FrameIndex: -1},
	}}

	if err := s.PopulateFromDetection(res, 640, 1000, DefaultZoneThresholds); err != nil {
		t.Fatalf("PopulateFromDetection failed: %v", err)
	}

	regions := s.Regions()
	if len(regions) != 2 {
		t.Fatalf("region count = %d, want 2", len(regions))
	}

	header := regions[0]
	if header.Zone != ZoneHeader || header.Strength != StrengthHigh {
		t.Errorf("header region = zone %v strength %v", header.Zone, header.Strength)
	}
	if header.DefaultAction != ActionMask {
		t.Error("header text should default to Mask")
	}
	if header.Source != SourceOCR {
		t.Errorf("source = %v, want OCR", header.Source)
	}

	body := regions[1]
	if body.Zone != ZoneBody {
		t.Errorf("body region zone = %v", body.Zone)
	}
	if body.DefaultAction != ActionUnmask {
		t.Error("weak body text should default to Unmask")
	}
}

func TestPopulateFromDetectionFailure(t *testing.T) {
	s := NewSession()
	s.StartReview()

	if err := s.PopulateFromDetection(DetectionResult{Failed: true}, 640, 1000, DefaultZoneThresholds); err != nil {
		t.Fatalf("PopulateFromDetection(failed) errored: %v", err)
	}

	regions := s.Regions()
	if len(regions) != 1 {
		t.Fatalf("region count = %d, want 1 fallback header region", len(regions))
	}
	r := regions[0]
	if r.Strength != StrengthNone {
		t.Errorf("fallback strength = %v, want None", r.Strength)
	}
	if r.DefaultAction != ActionMask {
		t.Error("fallback region must default to Mask, never a false pass")
	}
	if r.Width != 640 || r.Height != 120 {
		t.Errorf("fallback geometry = %dx%d, want 640x120", r.Width, r.Height)
	}
}

type failingDetector struct{}

func (failingDetector) Detect(ctx context.Context, samples [][]byte) (DetectionResult, error) {
	return DetectionResult{}, errors.New("detector crashed")
}

func TestRunDetectionConvertsErrors(t *testing.T) {
	s := NewSession()
	s.StartReview()

	err := s.RunDetection(context.Background(), failingDetector{}, nil, 640, 1000, DefaultZoneThresholds)
	if err != nil {
		t.Fatalf("detector error propagated: %v", err)
	}
	if got := s.Regions()[0].Strength; got != StrengthNone {
		t.Errorf("strength after crash = %v, want None", got)
	}
}
