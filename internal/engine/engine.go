// Package engine wires the pipeline: classify, transform, mask, enforce,
// trace, externalize. Processing within one record is strictly sequential;
// parallelism happens across records in the batch layer, one engine
// instance per logical study so remap caches never cross-contaminate.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"

	"dicom-deident/internal/classify"
	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/pixel"
	"dicom-deident/internal/policy"
	"dicom-deident/internal/review"
	"dicom-deident/internal/trace"
)

// ErrUnsupportedFile marks records whose modality/SOP class the pipeline
// does not handle.
var ErrUnsupportedFile = errors.New("unsupported file kind")

// ErrReviewNotAccepted is returned when masking is requested from a session
// that was never sealed.
var ErrReviewNotAccepted = errors.New("review session not accepted")

// Config tunes one engine instance.
type Config struct {
	Profile     policy.Profile
	Strict      bool
	Salt        []byte
	ShiftBounds identity.ShiftBounds
}

// Engine processes records for one logical study/patient scope. It owns its
// remapper and ledger; neither is shared with other scopes.
type Engine struct {
	cfg    Config
	policy *policy.Engine
	ledger *trace.Ledger
	runRef string
	log    *zap.Logger
}

// New creates an engine with fresh caches and an empty ledger.
func New(cfg Config, runRef string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	remapper := identity.NewRemapper(cfg.Salt, cfg.ShiftBounds)
	return &Engine{
		cfg:    cfg,
		policy: policy.NewEngine(remapper, log),
		ledger: trace.NewLedger(),
		runRef: runRef,
		log:    log,
	}
}

// Ledger exposes the engine's decision ledger for commit and evidence.
func (e *Engine) Ledger() *trace.Ledger {
	return e.ledger
}

// RunRef returns the engine's processing-run reference.
func (e *Engine) RunRef() string {
	return e.runRef
}

// Result is the outcome of one record's processing.
type Result struct {
	Output          *dcm.Dataset
	Log             *policy.ProcessingLog
	PixelAction     policy.PixelAction
	ScopeRef        string
	InputPixelHash  string
	OutputPixelHash string
}

// ProcessRecord runs the full pipeline for one record. session may be nil
// (metadata-only records); when it carries masked regions it must be sealed
// first. A pixel invariant violation aborts the record with a hard error.
func (e *Engine) ProcessRecord(ctx context.Context, rec *dcm.Dataset, session *review.Session) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kind := classify.ClassifyFile(rec.GetModality(), rec.GetSOPClassUID())
	if kind == classify.Unsupported {
		e.record(trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   e.runRef,
			Action:     trace.ActionSkipped,
			TargetType: trace.TargetFile,
			TargetName: kind.String(),
			Reason:     trace.ReasonNotApplicable,
			RuleSource: e.cfg.Profile.String(),
		})
		return nil, ErrUnsupportedFile
	}

	// Capture the pixel buffer before anything can mutate it; this is the
	// reference side of the passthrough proof.
	inputPixels, err := rec.RawPixelBytes()
	if err != nil {
		return nil, fmt.Errorf("could not extract input pixels: %w", err)
	}
	inputTS := rec.GetTransferSyntax()

	var masked []review.Region
	if session != nil {
		masked = session.MaskedRegions()
		if len(masked) > 0 && session.State() != review.Sealed {
			return nil, ErrReviewNotAccepted
		}
	}

	opts := policy.Options{
		Strict:        e.cfg.Strict,
		MaskRequested: len(masked) > 0,
	}

	out, plog, pixelAction, err := e.policy.Apply(rec, e.cfg.Profile, opts, e.ledger)
	if err != nil {
		return nil, err
	}

	scopeRef := e.scopeRefFor(out)

	if pixelAction == policy.PixelMasked {
		if err := e.applyMasks(out, session, scopeRef); err != nil {
			return nil, err
		}
	}

	outputPixels, err := out.RawPixelBytes()
	if err != nil {
		return nil, fmt.Errorf("could not extract output pixels: %w", err)
	}

	pctx := pixel.Context{RecordRef: scopeRef}
	enforceNoop := pixelAction == policy.PixelNoop
	if err := pixel.Enforce(inputPixels, outputPixels, enforceNoop, pctx); err != nil {
		return nil, err
	}
	if enforceNoop {
		if err := pixel.CheckTransferSyntax(inputTS, out.GetTransferSyntax(), pctx); err != nil {
			return nil, err
		}
	}
	e.recordPixelOutcome(scopeRef, enforceNoop, inputPixels)

	res := &Result{
		Output:      out,
		Log:         plog,
		PixelAction: pixelAction,
		ScopeRef:    scopeRef,
	}
	if inputPixels != nil {
		res.InputPixelHash = pixel.Digest(inputPixels)
	}
	if outputPixels != nil {
		res.OutputPixelHash = pixel.Digest(outputPixels)
	}

	e.log.Info("record processed",
		zap.String("scope_ref", scopeRef),
		zap.String("pixel_action", pixelAction.String()),
		zap.Int("dates_shifted", plog.DatesShifted),
		zap.Int("identifiers_remapped", plog.IdentifiersRemapped),
		zap.Int("fields_removed", plog.FieldsRemoved),
		zap.Int("soft_failures", plog.SoftFailures),
	)

	return res, nil
}

// scopeRefFor prefers the transformed record's SOP UID (already remapped
// under de-identifying profiles) so decisions never name the original.
func (e *Engine) scopeRefFor(out *dcm.Dataset) string {
	if ref := out.GetString(tag.SOPInstanceUID); ref != "" {
		return ref
	}
	return e.runRef
}

// applyMasks blacks out the session's masked regions and records one
// decision per region, masked or deliberately left visible.
func (e *Engine) applyMasks(out *dcm.Dataset, session *review.Session, scopeRef string) error {
	var rects []pixel.MaskRect
	for _, r := range session.MaskedRegions() {
		rects = append(rects, pixel.MaskRect{
			X: r.X, Y: r.Y, Width: r.Width, Height: r.Height,
			FrameIndex: r.FrameIndex,
		})
	}
	if err := pixel.MaskRegions(out, rects); err != nil {
		return fmt.Errorf("pixel masking failed: %w", err)
	}

	for _, r := range session.ActiveRegions() {
		action := trace.ActionMasked
		if r.EffectiveAction() == review.ActionUnmask {
			action = trace.ActionUnmasked
		}
		reason := trace.ReasonOCRDetection
		if r.Source == review.SourceManual || r.Reviewer != nil {
			reason = trace.ReasonReviewerOverride
		}
		e.record(trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     action,
			TargetType: trace.TargetPixelRegion,
			TargetName: string(r.Source) + "/" + r.Strength.String(),
			Reason:     reason,
			RuleSource: e.cfg.Profile.String(),
			Geometry:   &trace.Geometry{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height},
		})
	}
	return nil
}

// recordPixelOutcome traces the invariant check result: VERIFIED with a
// truncated digest in passthrough mode, SKIPPED/not-applicable when masking
// was intended.
func (e *Engine) recordPixelOutcome(scopeRef string, verified bool, inputPixels []byte) {
	d := trace.Decision{
		ScopeLevel: trace.ScopeInstance,
		ScopeRef:   scopeRef,
		TargetType: trace.TargetPixelBuffer,
		TargetName: "pixel_data",
		RuleSource: e.cfg.Profile.String(),
	}
	if verified {
		d.Action = trace.ActionVerified
		d.Reason = trace.ReasonPixelVerified
		if inputPixels != nil {
			d.TruncatedHash = pixel.TruncatedDigest(inputPixels)
		}
	} else {
		d.Action = trace.ActionSkipped
		d.Reason = trace.ReasonNotApplicable
	}
	e.record(d)
}

func (e *Engine) record(d trace.Decision) {
	if err := e.ledger.Add(d); err != nil {
		e.log.Error("could not append decision", zap.Error(err))
	}
}
