package review

import (
	"context"
	"sort"
)

// Zone bands an image vertically: burned-in text clusters in the header and
// footer of most modalities.
type Zone string

const (
	ZoneHeader Zone = "header"
	ZoneBody   Zone = "body"
	ZoneFooter Zone = "footer"
)

// ZoneThresholds are header/footer heights as fractions of image height.
type ZoneThresholds struct {
	Header float64
	Footer float64
}

// DefaultZoneThresholds applies when no modality override matches.
var DefaultZoneThresholds = ZoneThresholds{Header: 0.12, Footer: 0.10}

// DefaultModalityThresholds carries per-modality overrides. Ultrasound
// vendors burn patient banners deeper into the header.
var DefaultModalityThresholds = map[string]ZoneThresholds{
	"US":   {Header: 0.15, Footer: 0.10},
	"IVUS": {Header: 0.15, Footer: 0.10},
}

// ThresholdsFor resolves the zone thresholds for a modality.
func ThresholdsFor(modality string, overrides map[string]ZoneThresholds) ZoneThresholds {
	if overrides != nil {
		if t, ok := overrides[modality]; ok {
			return t
		}
	}
	if t, ok := DefaultModalityThresholds[modality]; ok {
		return t
	}
	return DefaultZoneThresholds
}

// ClassifyZone bands a box by its vertical center.
func (t ZoneThresholds) ClassifyZone(y, height, imageHeight int) Zone {
	if imageHeight <= 0 {
		return ZoneBody
	}
	center := float64(y) + float64(height)/2
	frac := center / float64(imageHeight)
	switch {
	case frac < t.Header:
		return ZoneHeader
	case frac > 1-t.Footer:
		return ZoneFooter
	default:
		return ZoneBody
	}
}

// Box is one detected text bounding box with its per-frame confidence
// samples.
type Box struct {
	X, Y          int
	Width, Height int
	Confidences   []float64
	FrameIndex    int
}

// DetectionResult is what the external text detector returns. Failed means
// the detector crashed or timed out; its boxes are then untrusted.
type DetectionResult struct {
	Boxes  []Box
	Failed bool
}

// Detector is the external OCR collaborator. Implementations must honor
// context cancellation; the engine treats any error as Failed.
type Detector interface {
	Detect(ctx context.Context, samples [][]byte) (DetectionResult, error)
}

// PopulateFromDetection bulk-creates OCR regions from a detection result.
// Detector failure is recorded as explicit uncertainty: a single
// full-header region with StrengthNone, defaulting to Mask, so a broken
// detector can never silently pass a record through unmasked. Never panics.
func (s *Session) PopulateFromDetection(res DetectionResult, imageWidth, imageHeight int, t ZoneThresholds) error {
	if err := s.guardMutable(); err != nil {
		return err
	}

	if res.Failed {
		headerRows := int(float64(imageHeight) * t.Header)
		if headerRows < 1 {
			headerRows = 1
		}
		s.addRegion(Region{
			X: 0, Y: 0, Width: imageWidth, Height: headerRows,
			Source:        SourceOCR,
			DefaultAction: ActionMask,
			FrameIndex:    -1,
			Strength:      StrengthNone,
			Zone:          ZoneHeader,
		})
		return nil
	}

	boxes := make([]Box, len(res.Boxes))
	copy(boxes, res.Boxes)
	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].Y != boxes[j].Y {
			return boxes[i].Y < boxes[j].Y
		}
		return boxes[i].X < boxes[j].X
	})

	for _, b := range boxes {
		zone := t.ClassifyZone(b.Y, b.Height, imageHeight)
		strength := AggregateStrength(b.Confidences)

		// Body text is usually anatomy annotation; header/footer text is
		// usually identity. Default accordingly, reviewer can override.
		action := ActionMask
		if zone == ZoneBody && strength < StrengthMedium {
			action = ActionUnmask
		}

		s.addRegion(Region{
			X: b.X, Y: b.Y, Width: b.Width, Height: b.Height,
			Source:        SourceOCR,
			DefaultAction: action,
			FrameIndex:    b.FrameIndex,
			Strength:      strength,
			Zone:          zone,
		})
	}
	return nil
}

// RunDetection calls the detector and populates the session, converting any
// detector error into a Failed result so external crashes never propagate
// past this boundary.
func (s *Session) RunDetection(ctx context.Context, d Detector, samples [][]byte, imageWidth, imageHeight int, t ZoneThresholds) error {
	res, err := d.Detect(ctx, samples)
	if err != nil {
		res = DetectionResult{Failed: true}
	}
	return s.PopulateFromDetection(res, imageWidth, imageHeight, t)
}
