package dicom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SetString sets a string value for a tag in the dataset. If the element
// does not exist it is appended with the given value representation.
func (d *Dataset) SetString(t tag.Tag, value string) error {
	newValue, err := dicom.NewValue([]string{value})
	if err != nil {
		return fmt.Errorf("could not create value: %w", err)
	}

	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		// Element doesn't exist, append it.
		vr := "LO"
		if info, ferr := tag.Find(t); ferr == nil && info.VR != "" {
			vr = info.VR
		}
		d.Data.Elements = append(d.Data.Elements, &dicom.Element{
			Tag:                    t,
			RawValueRepresentation: vr,
			ValueLength:            uint32(len(value)),
			Value:                  newValue,
		})
		return nil
	}

	newElem := &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    elem.ValueRepresentation,
		RawValueRepresentation: elem.RawValueRepresentation,
		ValueLength:            uint32(len(value)),
		Value:                  newValue,
	}

	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements[i] = newElem
			return nil
		}
	}

	return nil
}

// ClearTag clears a tag value (sets to empty string). A no-op if the tag is
// absent.
func (d *Dataset) ClearTag(t tag.Tag) {
	if !d.Has(t) {
		return
	}
	d.SetString(t, "")
}

// RemoveTag deletes an element from the dataset entirely.
func (d *Dataset) RemoveTag(t tag.Tag) {
	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements = append(d.Data.Elements[:i], d.Data.Elements[i+1:]...)
			return
		}
	}
}

// Save writes the DICOM dataset to a file.
func (d *Dataset) Save(outputPath string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer file.Close()

	// Write DICOM with relaxed verification (many real-world DICOM files
	// don't strictly follow VR specifications)
	if err := dicom.Write(file, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		return fmt.Errorf("could not write DICOM: %w", err)
	}

	return nil
}
