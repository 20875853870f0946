// Package pixel enforces the pixel passthrough guarantee and applies
// reviewed mask regions. When no masking was requested, the output pixel
// buffer must be byte-identical to the input; any drift is a hard failure,
// never a warning.
package pixel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Context names the record being checked without exposing its contents.
type Context struct {
	RecordRef string // de-identified instance reference
}

// ViolationError is a fatal pixel invariant breach. The record must be
// aborted; error text carries digests and lengths, never pixel content.
type ViolationError struct {
	RecordRef string
	Detail    string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("pixel invariant violated for %s: %s", e.RecordRef, e.Detail)
}

// Digest returns the hex SHA-256 of a buffer.
func Digest(buf []byte) string {
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// TruncatedDigest returns the first 16 hex characters of the buffer digest,
// suitable for audit records.
func TruncatedDigest(buf []byte) string {
	return Digest(buf)[:16]
}

// Enforce proves byte-for-byte pixel equality between input and output.
// enabled=false means masking was intended and the check does not apply;
// it returns nil and the caller records a not-applicable decision.
func Enforce(input, output []byte, enabled bool, ctx Context) error {
	if !enabled {
		return nil
	}

	switch {
	case input == nil && output == nil:
		return nil
	case input == nil:
		return &ViolationError{RecordRef: ctx.RecordRef,
			Detail: "output has pixel data but input had none"}
	case output == nil:
		return &ViolationError{RecordRef: ctx.RecordRef,
			Detail: "input pixel data missing from output"}
	}

	if len(input) != len(output) {
		return &ViolationError{RecordRef: ctx.RecordRef,
			Detail: fmt.Sprintf("pixel length changed: %d -> %d bytes", len(input), len(output))}
	}

	inDigest := Digest(input)
	outDigest := Digest(output)
	if inDigest != outDigest {
		return &ViolationError{RecordRef: ctx.RecordRef,
			Detail: fmt.Sprintf("pixel digest mismatch: %s != %s", inDigest[:16], outDigest[:16])}
	}

	return nil
}

// CheckTransferSyntax verifies the pixel encoding was not altered in
// passthrough mode. Re-encoding perturbs bytes even without intentional
// edits, so a changed transfer syntax is treated as the same class of
// breach as changed bytes.
func CheckTransferSyntax(inputTS, outputTS string, ctx Context) error {
	if inputTS == outputTS {
		return nil
	}
	return &ViolationError{RecordRef: ctx.RecordRef,
		Detail: fmt.Sprintf("transfer syntax changed: %q -> %q", inputTS, outputTS)}
}
