package identity

import (
	"strings"
	"testing"
	"time"
)

func TestRemapIdentifierDeterminism(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	first := r.RemapIdentifier("PID12345")
	second := r.RemapIdentifier("PID12345")
	if first != second {
		t.Errorf("same input remapped differently: %s != %s", first, second)
	}

	// A fresh instance with the same salt must agree: stability across runs.
	r2 := NewRemapper([]byte("secret"), DefaultShiftBounds)
	if got := r2.RemapIdentifier("PID12345"); got != first {
		t.Errorf("cross-instance mismatch: %s != %s", got, first)
	}
}

func TestRemapIdentifierSaltDependence(t *testing.T) {
	a := NewRemapper([]byte("salt-a"), DefaultShiftBounds)
	b := NewRemapper([]byte("salt-b"), DefaultShiftBounds)

	if a.RemapIdentifier("PID12345") == b.RemapIdentifier("PID12345") {
		t.Error("different salts produced identical remapping")
	}
}

func TestRemapIdentifierShape(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	mapped := r.RemapIdentifier("PID12345")
	if !strings.HasPrefix(mapped, "ANON-") {
		t.Errorf("unexpected identifier shape: %s", mapped)
	}
	if strings.Contains(mapped, "PID12345") {
		t.Errorf("remapped identifier leaks original: %s", mapped)
	}
	if r.RemapIdentifier("") != "" {
		t.Error("empty identifier should remap to empty")
	}
}

func TestRemapUID(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	uid := r.RemapUID("1.2.840.113619.2.1.1")
	if !strings.HasPrefix(uid, "2.25.") {
		t.Errorf("remapped UID not under 2.25 root: %s", uid)
	}
	if len(uid) > 64 {
		t.Errorf("remapped UID exceeds 64 bytes: %d", len(uid))
	}
	if got := r.RemapUID("1.2.840.113619.2.1.1"); got != uid {
		t.Errorf("UID remap not stable: %s != %s", got, uid)
	}
}

func TestOffsetForStudyBounds(t *testing.T) {
	bounds := ShiftBounds{MinDays: -365, MaxDays: -30}
	r := NewRemapper([]byte("secret"), bounds)

	keys := []string{"study-a", "study-b", "study-c", "study-d"}
	for _, k := range keys {
		off := r.OffsetForStudy(k)
		if off < bounds.MinDays || off > bounds.MaxDays {
			t.Errorf("offset %d for %s outside [%d, %d]", off, k, bounds.MinDays, bounds.MaxDays)
		}
	}
}

func TestShiftDateReferentialIntegrity(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	off := r.OffsetForStudy("study-1")

	// All dates sharing the study key shift by the same offset, so the
	// interval between them is preserved.
	a := r.ShiftDate("20231215", "study-1")
	b := r.ShiftDate("20231220", "study-1")
	if a == "" || b == "" {
		t.Fatalf("valid dates shifted to empty: %q, %q", a, b)
	}
	if got := r.OffsetForStudy("study-1"); got != off {
		t.Errorf("offset not cached: %d != %d", got, off)
	}
	if daysBetween(t, a, b) != 5 {
		t.Errorf("interval not preserved: %s .. %s", a, b)
	}
}

func TestShiftDateFixedOffset(t *testing.T) {
	// Degenerate bounds pin the offset, making the arithmetic checkable.
	r := NewRemapper([]byte("secret"), ShiftBounds{MinDays: -42, MaxDays: -42})

	if got := r.ShiftDate("20231215", "study-1"); got != "20231103" {
		t.Errorf("ShiftDate(20231215, -42) = %s, want 20231103", got)
	}
}

func TestShiftDateMalformed(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	tests := []string{"not-a-date", "2023", "20231345", "15-12-2023"}
	for _, v := range tests {
		if got := r.ShiftDate(v, "study-1"); got != "" {
			t.Errorf("ShiftDate(%q) = %q, want empty", v, got)
		}
	}
	if got := r.ShiftDate("", "study-1"); got != "" {
		t.Errorf("ShiftDate(empty) = %q, want empty", got)
	}
}

func TestShiftTimestamp(t *testing.T) {
	r := NewRemapper([]byte("secret"), ShiftBounds{MinDays: -42, MaxDays: -42})

	if got := r.ShiftTimestamp("20231215133000", "study-1"); got != "20231103133000" {
		t.Errorf("ShiftTimestamp = %s, want 20231103133000", got)
	}
	if got := r.ShiftTimestamp("short", "study-1"); got != "" {
		t.Errorf("ShiftTimestamp(malformed) = %q, want empty", got)
	}
}

func TestHashSubjectID(t *testing.T) {
	r := NewRemapper([]byte("secret"), DefaultShiftBounds)

	h := r.HashSubjectID("PID12345")
	if len(h) != 16 {
		t.Errorf("unexpected hash length: %d", len(h))
	}
	if h == r.RemapIdentifier("PID12345") {
		t.Error("subject hash must differ from remapped identifier")
	}
	if got := r.HashSubjectID("PID12345"); got != h {
		t.Errorf("subject hash not stable: %s != %s", got, h)
	}
}

func daysBetween(t *testing.T, a, b string) int {
	t.Helper()
	ta, err := time.Parse(dicomDateLayout, a)
	if err != nil {
		t.Fatalf("could not parse %q: %v", a, err)
	}
	tb, err := time.Parse(dicomDateLayout, b)
	if err != nil {
		t.Fatalf("could not parse %q: %v", b, err)
	}
	return int(tb.Sub(ta).Hours() / 24)
}
