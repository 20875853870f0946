package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/policy"
	"dicom-deident/internal/review"
	"dicom-deident/internal/trace"
)

func strElem(t *testing.T, tg tag.Tag, vr, value string) *dicom.Element {
	t.Helper()
	v, err := dicom.NewValue([]string{value})
	if err != nil {
		t.Fatalf("could not create value for %v: %v", tg, err)
	}
	return &dicom.Element{
		Tag:                    tg,
		RawValueRepresentation: vr,
		ValueLength:            uint32(len(value)),
		Value:                  v,
	}
}

func intElem(t *testing.T, tg tag.Tag, value int) *dicom.Element {
	t.Helper()
	v, err := dicom.NewValue([]int{value})
	if err != nil {
		t.Fatalf("could not create value for %v: %v", tg, err)
	}
	return &dicom.Element{
		Tag:                    tg,
		RawValueRepresentation: "US",
		Value:                  v,
	}
}

func pixElem(t *testing.T, data []byte) *dicom.Element {
	t.Helper()
	v, err := dicom.NewValue(data)
	if err != nil {
		t.Fatalf("could not create pixel value: %v", err)
	}
	return &dicom.Element{
		Tag:                    tag.PixelData,
		RawValueRepresentation: "OW",
		ValueLength:            uint32(len(data)),
		Value:                  v,
	}
}

// imageRecord is a 4x4 single-sample ultrasound record. withPixels controls
// whether a raw pixel payload is attached.
func imageRecord(t *testing.T, withPixels bool) *dcm.Dataset {
	t.Helper()
	elems := []*dicom.Element{
		strElem(t, tag.SOPInstanceUID, "UI", "1.2.840.99.5.1"),
		strElem(t, tag.StudyInstanceUID, "UI", "1.2.840.99.5"),
		strElem(t, tag.TransferSyntaxUID, "UI", "1.2.840.10008.1.2.1"),
		strElem(t, tag.SpecificCharacterSet, "CS", "ISO_IR 100"),
		strElem(t, tag.Modality, "CS", "US"),
		strElem(t, tag.PatientName, "PN", "DOE^JANE"),
		strElem(t, tag.PatientID, "LO", "MRN-7734"),
		strElem(t, tag.StudyDate, "DA", "20231215"),
		intElem(t, tag.Rows, 4),
		intElem(t, tag.Columns, 4),
		intElem(t, tag.BitsAllocated, 8),
	}
	if withPixels {
		pixels := make([]byte, 16)
		for i := range pixels {
			pixels[i] = byte(i + 1)
		}
		elems = append(elems, pixElem(t, pixels))
	}
	return dcm.NewDataset(dicom.Dataset{Elements: elems})
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := Config{
		Profile:     policy.SafeHarbor,
		Salt:        []byte("test-salt"),
		ShiftBounds: identity.DefaultShiftBounds,
	}
	return New(cfg, "run-test", nil)
}

func hasDecision(l *trace.Ledger, action trace.ActionCode, reason trace.ReasonCode) bool {
	for _, d := range l.Records() {
		if d.Action == action && d.Reason == reason {
			return true
		}
	}
	return false
}

func TestProcessRecordMetadataOnly(t *testing.T) {
	eng := testEngine(t)

	res, err := eng.ProcessRecord(context.Background(), imageRecord(t, false), nil)
	if err != nil {
		t.Fatalf("ProcessRecord failed: %v", err)
	}

	if res.Output.GetPatientName() != "" {
		t.Error("PatientName survived")
	}
	if !strings.HasPrefix(res.ScopeRef, "2.25.") {
		t.Errorf("scope ref = %q, want remapped UID", res.ScopeRef)
	}
	if res.InputPixelHash != "" || res.OutputPixelHash != "" {
		t.Error("pixel hashes set for a record without pixel data")
	}
	if res.PixelAction != policy.PixelNoop {
		t.Errorf("pixel action = %v, want noop", res.PixelAction)
	}
}

func TestProcessRecordUnsupportedKind(t *testing.T) {
	eng := testEngine(t)

	rec := dcm.NewDataset(dicom.Dataset{Elements: []*dicom.Element{
		strElem(t, tag.SOPInstanceUID, "UI", "1.2.840.99.5.1"),
		strElem(t, tag.Modality, "CS", "QQ"),
	}})

	_, err := eng.ProcessRecord(context.Background(), rec, nil)
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("error = %v, want ErrUnsupportedFile", err)
	}

	if !hasDecision(eng.Ledger(), trace.ActionSkipped, trace.ReasonNotApplicable) {
		t.Error("no skip decision recorded for unsupported file")
	}
}

func TestProcessRecordPixelPassthrough(t *testing.T) {
	eng := testEngine(t)
	rec := imageRecord(t, true)

	inputPixels, err := rec.RawPixelBytes()
	if err != nil {
		t.Fatalf("could not read input pixels: %v", err)
	}

	res, err := eng.ProcessRecord(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("ProcessRecord failed: %v", err)
	}

	if res.InputPixelHash == "" || res.InputPixelHash != res.OutputPixelHash {
		t.Errorf("pixel hashes differ: in=%s out=%s", res.InputPixelHash, res.OutputPixelHash)
	}

	outputPixels, err := res.Output.RawPixelBytes()
	if err != nil {
		t.Fatalf("could not read output pixels: %v", err)
	}
	if !bytes.Equal(inputPixels, outputPixels) {
		t.Error("pixel bytes changed in passthrough mode")
	}

	if !hasDecision(eng.Ledger(), trace.ActionVerified, trace.ReasonPixelVerified) {
		t.Error("no pixel verification decision recorded")
	}
}

func TestProcessRecordEncapsulatedPassthrough(t *testing.T) {
	eng := testEngine(t)

	// JPEG-compressed pixel data: passthrough must carry the compressed
	// bytes untouched, never decode them.
	info := dicom.PixelDataInfo{
		IsEncapsulated: true,
		Frames: []*frame.Frame{
			{Encapsulated: true, EncapsulatedData: frame.EncapsulatedFrame{Data: []byte{0xFF, 0xD8, 0x10, 0x20, 0x30}}},
		},
	}
	v, err := dicom.NewValue(info)
	if err != nil {
		t.Fatalf("could not create pixel value: %v", err)
	}
	rec := dcm.NewDataset(dicom.Dataset{Elements: []*dicom.Element{
		strElem(t, tag.SOPInstanceUID, "UI", "1.2.840.99.5.1"),
		strElem(t, tag.StudyInstanceUID, "UI", "1.2.840.99.5"),
		strElem(t, tag.TransferSyntaxUID, "UI", "1.2.840.10008.1.2.4.50"),
		strElem(t, tag.SpecificCharacterSet, "CS", "ISO_IR 100"),
		strElem(t, tag.Modality, "CS", "US"),
		strElem(t, tag.PatientName, "PN", "DOE^JANE"),
		{Tag: tag.PixelData, RawValueRepresentation: "OB", Value: v},
	}})

	res, err := eng.ProcessRecord(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("ProcessRecord failed: %v", err)
	}

	if res.InputPixelHash == "" || res.InputPixelHash != res.OutputPixelHash {
		t.Errorf("pixel hashes differ: in=%s out=%s", res.InputPixelHash, res.OutputPixelHash)
	}
	if got := res.Output.GetTransferSyntax(); got != "1.2.840.10008.1.2.4.50" {
		t.Errorf("transfer syntax changed: %q", got)
	}
	if !hasDecision(eng.Ledger(), trace.ActionVerified, trace.ReasonPixelVerified) {
		t.Error("no pixel verification decision recorded")
	}
}

func TestProcessRecordMaskingRequiresSealedSession(t *testing.T) {
	eng := testEngine(t)

	session := review.NewSession()
	if _, err := session.AddManualRegion(0, 0, 4, 1, 0); err != nil {
		t.Fatalf("could not add region: %v", err)
	}
	if err := session.StartReview(); err != nil {
		t.Fatalf("could not start review: %v", err)
	}

	// Not yet accepted.
	_, err := eng.ProcessRecord(context.Background(), imageRecord(t, true), session)
	if !errors.Is(err, ErrReviewNotAccepted) {
		t.Fatalf("error = %v, want ErrReviewNotAccepted", err)
	}
}

func TestProcessRecordMasking(t *testing.T) {
	eng := testEngine(t)
	rec := imageRecord(t, true)

	session := review.NewSession()
	if _, err := session.AddManualRegion(0, 0, 4, 1, 0); err != nil {
		t.Fatalf("could not add region: %v", err)
	}
	if err := session.StartReview(); err != nil {
		t.Fatalf("could not start review: %v", err)
	}
	if err := session.Accept(); err != nil {
		t.Fatalf("could not accept review: %v", err)
	}

	res, err := eng.ProcessRecord(context.Background(), rec, session)
	if err != nil {
		t.Fatalf("ProcessRecord failed: %v", err)
	}

	if res.PixelAction != policy.PixelMasked {
		t.Fatalf("pixel action = %v, want masked", res.PixelAction)
	}
	if res.InputPixelHash == res.OutputPixelHash {
		t.Error("pixel hash unchanged after masking")
	}

	outputPixels, err := res.Output.RawPixelBytes()
	if err != nil {
		t.Fatalf("could not read output pixels: %v", err)
	}
	// The masked row is zeroed, the rest untouched.
	for i := 0; i < 4; i++ {
		if outputPixels[i] != 0 {
			t.Errorf("pixel %d = %d, want 0", i, outputPixels[i])
		}
	}
	for i := 4; i < 16; i++ {
		if outputPixels[i] == 0 {
			t.Errorf("pixel %d zeroed outside the masked region", i)
		}
	}

	found := false
	for _, d := range eng.Ledger().Records() {
		if d.Action == trace.ActionMasked && d.TargetType == trace.TargetPixelRegion {
			found = true
			if d.Geometry == nil || d.Geometry.Width != 4 || d.Geometry.Height != 1 {
				t.Errorf("mask decision geometry = %+v", d.Geometry)
			}
		}
	}
	if !found {
		t.Error("no mask decision recorded")
	}
	if !hasDecision(eng.Ledger(), trace.ActionSkipped, trace.ReasonNotApplicable) {
		t.Error("pixel verification not marked skipped under masking")
	}
}

func TestProcessRecordCanceledContext(t *testing.T) {
	eng := testEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.ProcessRecord(ctx, imageRecord(t, true), nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestSameStudySharesRemapping(t *testing.T) {
	eng := testEngine(t)

	res1, err := eng.ProcessRecord(context.Background(), imageRecord(t, false), nil)
	if err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	res2, err := eng.ProcessRecord(context.Background(), imageRecord(t, false), nil)
	if err != nil {
		t.Fatalf("second record failed: %v", err)
	}

	if res1.Output.GetStudyInstanceUID() != res2.Output.GetStudyInstanceUID() {
		t.Error("study UID remapped inconsistently within one engine")
	}
	if res1.Output.GetString(tag.StudyDate) != res2.Output.GetString(tag.StudyDate) {
		t.Error("dates shifted inconsistently within one engine")
	}
}
