package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ShiftBounds constrains the derived per-study date offset, in days.
// Both bounds are inclusive; the range must not contain zero so that no
// study ever keeps its original dates.
type ShiftBounds struct {
	MinDays int
	MaxDays int
}

// DefaultShiftBounds shifts dates between one month and one year into the
// past.
var DefaultShiftBounds = ShiftBounds{MinDays: -365, MaxDays: -30}

const dicomDateLayout = "20060102"

// Remapper deterministically replaces identifiers and shifts dates. One
// instance is scoped to one processing run (one logical study/patient key);
// its caches guarantee that repeated inputs produce identical outputs, and
// the keyed HMAC construction guarantees the same outputs across runs
// holding the same salt.
//
// Instances must not be shared across unrelated studies.
type Remapper struct {
	mu     sync.Mutex
	salt   []byte
	bounds ShiftBounds

	idMap     map[string]string // original identifier -> replacement
	uidMap    map[string]string // original UID -> replacement UID
	offsetMap map[string]int    // study key -> shift in days
}

// NewRemapper creates a remapper with empty caches.
func NewRemapper(salt []byte, bounds ShiftBounds) *Remapper {
	if bounds.MinDays == 0 && bounds.MaxDays == 0 {
		bounds = DefaultShiftBounds
	}
	return &Remapper{
		salt:      salt,
		bounds:    bounds,
		idMap:     make(map[string]string),
		uidMap:    make(map[string]string),
		offsetMap: make(map[string]int),
	}
}

func (r *Remapper) mac(parts ...string) []byte {
	h := hmac.New(sha256.New, r.salt)
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}

// RemapIdentifier returns a stable replacement for an identifier. Same
// (salt, original) always yields the same replacement.
func (r *Remapper) RemapIdentifier(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if mapped, ok := r.idMap[original]; ok {
		return mapped
	}

	sum := r.mac("id", original)
	mapped := "ANON-" + strings.ToUpper(hex.EncodeToString(sum)[:12])
	r.idMap[original] = mapped
	return mapped
}

// RemapUID returns a stable replacement UID under the 2.25 (UUID-derived)
// root, valid for UI-VR fields.
func (r *Remapper) RemapUID(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if mapped, ok := r.uidMap[original]; ok {
		return mapped
	}

	sum := r.mac("uid", original)
	// 2.25.<decimal of first 10 bytes> stays well under the 64-byte UI limit.
	var n uint64
	for _, b := range sum[:8] {
		n = n<<8 | uint64(b)
	}
	mapped := fmt.Sprintf("2.25.%d%d", n, uint16(sum[8])<<8|uint16(sum[9]))
	r.uidMap[original] = mapped
	return mapped
}

// OffsetForStudy derives the per-study day offset, reduced into the
// configured bounds. Cached so every date sharing the study key shifts by
// the same amount.
func (r *Remapper) OffsetForStudy(studyKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsetForStudyLocked(studyKey)
}

func (r *Remapper) offsetForStudyLocked(studyKey string) int {
	if off, ok := r.offsetMap[studyKey]; ok {
		return off
	}

	sum := r.mac("date", studyKey)
	span := r.bounds.MaxDays - r.bounds.MinDays + 1
	n := binary.BigEndian.Uint64(sum[:8])
	off := r.bounds.MinDays + int(n%uint64(span))
	r.offsetMap[studyKey] = off
	return off
}

// ShiftDate applies the study's offset to a DICOM DA value (YYYYMMDD).
// Malformed dates return "" rather than an error so one bad field cannot
// abort a batch.
func (r *Remapper) ShiftDate(value, studyKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	t, err := time.Parse(dicomDateLayout, value)
	if err != nil {
		return ""
	}

	r.mu.Lock()
	off := r.offsetForStudyLocked(studyKey)
	r.mu.Unlock()

	return t.AddDate(0, 0, off).Format(dicomDateLayout)
}

// ShiftTimestamp applies the study's offset to a DICOM DT value, keeping the
// time-of-day component intact. Malformed values return "".
func (r *Remapper) ShiftTimestamp(value, studyKey string) string {
	value = strings.TrimSpace(value)
	if len(value) < len(dicomDateLayout) {
		return ""
	}

	datePart := value[:len(dicomDateLayout)]
	rest := value[len(dicomDateLayout):]

	shifted := r.ShiftDate(datePart, studyKey)
	if shifted == "" {
		return ""
	}
	return shifted + rest
}

// HashSubjectID produces a one-way digest of the primary subject identifier
// for the strict jurisdictional profile, where even a remapped identifier is
// considered too linkable.
func (r *Remapper) HashSubjectID(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		return ""
	}
	sum := r.mac("subject", original)
	return strings.ToUpper(hex.EncodeToString(sum)[:16])
}
