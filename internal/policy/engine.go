package policy

import (
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"

	"dicom-deident/internal/classify"
	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/trace"
)

// Explicit VR Little Endian, the safe default for a record missing its
// pixel-encoding declaration.
const defaultTransferSyntax = "1.2.840.10008.1.2.1"

// Options tunes engine behavior per run.
type Options struct {
	// Strict upgrades field-level soft failures to whole-record errors.
	// Off by default: for batch jobs a logged partial repair beats a stuck
	// queue, and the retained field is always visible in the ledger.
	Strict bool
	// MaskRequested marks that reviewed pixel regions will be masked, which
	// switches the record's pixel action away from the passthrough
	// guarantee.
	MaskRequested bool
}

// Engine transforms records under a profile. One engine per logical
// study/patient scope; it owns its remapper and never shares caches with
// unrelated studies.
type Engine struct {
	remapper *identity.Remapper
	log      *zap.Logger
}

// NewEngine creates a policy engine around an instance-scoped remapper.
func NewEngine(remapper *identity.Remapper, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{remapper: remapper, log: log}
}

// Remapper exposes the engine's remapper for callers that need the study
// offset (e.g. evidence linkage).
func (e *Engine) Remapper() *identity.Remapper {
	return e.remapper
}

// Apply transforms a record under the profile. It returns a new record; the
// input dataset's element list is never mutated. Every change lands in the
// processing log and, when a ledger is supplied, as one decision record.
// A single field's transform failure is logged as RETAINED and skipped
// unless Options.Strict is set.
func (e *Engine) Apply(rec *dcm.Dataset, profile Profile, opts Options, ledger *trace.Ledger) (*dcm.Dataset, *ProcessingLog, PixelAction, error) {
	out := rec.Clone()
	plog := &ProcessingLog{}

	scopeRef := e.scopeRef(rec, profile)
	studyKey := studyKey(rec)

	var err error
	switch profile {
	case MinimalRepair:
		e.repairHeader(out, scopeRef, plog, ledger)
	case LegalDisclosure:
		e.applyLegalDisclosure(out, scopeRef, plog, ledger)
	case SafeHarbor, StrictJurisdictional:
		err = e.applyDeidentify(out, profile, scopeRef, studyKey, opts, plog, ledger)
	}
	if err != nil {
		return nil, nil, PixelNoop, err
	}

	action := PixelNoop
	if opts.MaskRequested {
		action = PixelMasked
	}

	e.log.Debug("profile applied",
		zap.String("profile", profile.String()),
		zap.String("scope_ref", scopeRef),
		zap.String("pixel_action", action.String()),
		zap.Int("changes", len(plog.Entries)),
	)

	return out, plog, action, nil
}

// scopeRef is the de-identified reference used in decisions and logs. For
// remapping profiles it is the remapped SOP instance UID so that ledger
// rows never carry an original instance identifier.
func (e *Engine) scopeRef(rec *dcm.Dataset, profile Profile) string {
	sop := rec.GetString(tag.SOPInstanceUID)
	if sop == "" {
		return "(no-sop-uid)"
	}
	if profile == SafeHarbor || profile == StrictJurisdictional {
		return e.remapper.RemapUID(sop)
	}
	return sop
}

// studyKey scopes date shifting and identifier grouping. All records of one
// study share it, so their dates shift by one offset.
func studyKey(rec *dcm.Dataset) string {
	if uid := rec.GetStudyInstanceUID(); uid != "" {
		return uid
	}
	if pid := rec.GetPatientID(); pid != "" {
		return pid
	}
	return "(no-study-key)"
}

func (e *Engine) record(ledger *trace.Ledger, d trace.Decision) {
	if ledger == nil {
		return
	}
	if err := ledger.Add(d); err != nil {
		// A locked ledger here is a programming error in the caller's
		// sequencing; surface it loudly but do not lose the transform.
		e.log.Error("could not append decision", zap.Error(err))
	}
}

// repairHeader fills safe defaults for malformed or missing header fields.
// No PHI field is touched.
func (e *Engine) repairHeader(out *dcm.Dataset, scopeRef string, plog *ProcessingLog, ledger *trace.Ledger) {
	if out.GetTransferSyntax() == "" {
		out.SetString(tag.TransferSyntaxUID, defaultTransferSyntax)
		plog.HeaderRepairs++
		plog.add(tagName(tag.TransferSyntaxUID), trace.ActionRetained, trace.ReasonHeaderRepair)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionRetained,
			TargetType: trace.TargetField,
			TargetName: tagName(tag.TransferSyntaxUID),
			Reason:     trace.ReasonHeaderRepair,
			RuleSource: MinimalRepair.String(),
		})
	}
	if !out.Has(tag.SpecificCharacterSet) {
		out.SetString(tag.SpecificCharacterSet, "ISO_IR 100")
		plog.HeaderRepairs++
		plog.add(tagName(tag.SpecificCharacterSet), trace.ActionRetained, trace.ReasonHeaderRepair)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionRetained,
			TargetType: trace.TargetField,
			TargetName: tagName(tag.SpecificCharacterSet),
			Reason:     trace.ReasonHeaderRepair,
			RuleSource: MinimalRepair.String(),
		})
	}
}

// applyLegalDisclosure blanks staff and operator fields only. Subject
// identity and all identifiers survive for chain of custody.
func (e *Engine) applyLegalDisclosure(out *dcm.Dataset, scopeRef string, plog *ProcessingLog, ledger *trace.Ledger) {
	for _, t := range out.Tags() {
		if !classify.IsStaffField(t) {
			plog.FieldsRetained++
			continue
		}
		if out.GetString(t) == "" {
			continue
		}
		out.ClearTag(t)
		plog.FieldsRemoved++
		plog.add(tagName(t), trace.ActionRemoved, trace.ReasonLegalHold)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionRemoved,
			TargetType: trace.TargetField,
			TargetName: tagName(t),
			Reason:     trace.ReasonLegalHold,
			RuleSource: LegalDisclosure.String(),
		})
	}
}

// applyDeidentify routes every declared field through the classifier and
// applies the corresponding transform.
func (e *Engine) applyDeidentify(out *dcm.Dataset, profile Profile, scopeRef, studyKey string, opts Options, plog *ProcessingLog, ledger *trace.Ledger) error {
	for _, t := range out.Tags() {
		action := classify.Classify(t)

		// Strict jurisdictional strips institutional fields the whitelist
		// would otherwise keep.
		reason := trace.ReasonSafeHarbor
		if profile == StrictJurisdictional && classify.IsInstitutionField(t) {
			action = classify.RemovePHI
			reason = trace.ReasonJurisdiction
		}

		if err := e.applyField(out, t, action, reason, profile, scopeRef, studyKey, plog, ledger); err != nil {
			if opts.Strict {
				return fmt.Errorf("field %s: %w", tagName(t), err)
			}
			// Soft failure: field left untouched, decision logged, record
			// continues. Deliberate availability-over-completeness choice.
			plog.SoftFailures++
			plog.add(tagName(t), trace.ActionRetained, trace.ReasonTransformError)
			e.record(ledger, trace.Decision{
				ScopeLevel: trace.ScopeInstance,
				ScopeRef:   scopeRef,
				Action:     trace.ActionRetained,
				TargetType: trace.TargetField,
				TargetName: tagName(t),
				Reason:     trace.ReasonTransformError,
				RuleSource: profile.String(),
			})
			e.log.Warn("field transform failed, retained",
				zap.String("target", tagName(t)),
				zap.String("scope_ref", scopeRef),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (e *Engine) applyField(out *dcm.Dataset, t tag.Tag, action classify.Action, reason trace.ReasonCode, profile Profile, scopeRef, studyKey string, plog *ProcessingLog, ledger *trace.Ledger) error {
	switch action {
	case classify.Retain:
		plog.FieldsRetained++
		return nil

	case classify.RemapIdentifier:
		value := out.GetString(t)
		if value == "" {
			return nil
		}
		var mapped string
		switch {
		case profile == StrictJurisdictional && t == tag.PatientID:
			mapped = e.remapper.HashSubjectID(value)
		case isUIDTag(t):
			mapped = e.remapper.RemapUID(value)
		default:
			mapped = e.remapper.RemapIdentifier(value)
		}
		if err := out.SetString(t, mapped); err != nil {
			return err
		}
		plog.IdentifiersRemapped++
		plog.add(tagName(t), trace.ActionRemapped, reason)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionRemapped,
			TargetType: trace.TargetField,
			TargetName: tagName(t),
			Reason:     reason,
			RuleSource: profile.String(),
		})
		return nil

	case classify.ShiftDate:
		value := out.GetString(t)
		if value == "" {
			return nil
		}
		// Malformed dates become empty rather than failing the record.
		shifted := e.remapper.ShiftDate(value, studyKey)
		if err := out.SetString(t, shifted); err != nil {
			return err
		}
		if shifted != "" {
			plog.DatesShifted++
		}
		plog.add(tagName(t), trace.ActionShifted, trace.ReasonDatePolicy)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionShifted,
			TargetType: trace.TargetField,
			TargetName: tagName(t),
			Reason:     trace.ReasonDatePolicy,
			RuleSource: profile.String(),
		})
		return nil

	case classify.ScrubText:
		if out.GetString(t) == "" {
			return nil
		}
		out.ClearTag(t)
		plog.TextScrubbed++
		plog.add(tagName(t), trace.ActionScrubbed, reason)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionScrubbed,
			TargetType: trace.TargetField,
			TargetName: tagName(t),
			Reason:     reason,
			RuleSource: profile.String(),
		})
		return nil

	case classify.RemovePHI:
		removeReason := reason
		if t.Group%2 == 1 {
			removeReason = trace.ReasonPrivateTag
		}
		// Private tags and sequences are deleted outright; scalar PHI is
		// blanked so the element structure stays parseable.
		if t.Group%2 == 1 || isSequenceTag(t) {
			out.RemoveTag(t)
			plog.PrivateRemoved++
		} else {
			out.ClearTag(t)
		}
		plog.FieldsRemoved++
		plog.add(tagName(t), trace.ActionRemoved, removeReason)
		e.record(ledger, trace.Decision{
			ScopeLevel: trace.ScopeInstance,
			ScopeRef:   scopeRef,
			Action:     trace.ActionRemoved,
			TargetType: trace.TargetField,
			TargetName: tagName(t),
			Reason:     removeReason,
			RuleSource: profile.String(),
		})
		return nil
	}

	return fmt.Errorf("unhandled classification %v", action)
}

func isUIDTag(t tag.Tag) bool {
	info, err := tag.Find(t)
	return err == nil && info.VR == "UI"
}

func isSequenceTag(t tag.Tag) bool {
	info, err := tag.Find(t)
	return err == nil && info.VR == "SQ"
}

// tagName renders a tag for logs and decisions: dictionary name when known,
// (gggg,eeee) otherwise. Never a field value.
func tagName(t tag.Tag) string {
	if info, err := tag.Find(t); err == nil && info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}
