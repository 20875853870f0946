package policy

import "dicom-deident/internal/trace"

// LogEntry is one field-level change note. Target is a tag name, never a
// field value.
type LogEntry struct {
	Target string
	Action trace.ActionCode
	Reason trace.ReasonCode
}

// ProcessingLog accumulates the per-record transform summary.
type ProcessingLog struct {
	Entries []LogEntry

	DatesShifted        int
	IdentifiersRemapped int
	FieldsRemoved       int
	TextScrubbed        int
	FieldsRetained      int
	PrivateRemoved      int
	HeaderRepairs       int
	SoftFailures        int
}

func (l *ProcessingLog) add(target string, action trace.ActionCode, reason trace.ReasonCode) {
	l.Entries = append(l.Entries, LogEntry{Target: target, Action: action, Reason: reason})
}
