package dicom

import (
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a DICOM dataset for easier access
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadDicom reads a DICOM file and returns the dataset.
func ReadDicom(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// ReadDicomMetadataOnly reads only the metadata (no pixel data).
func ReadDicomMetadataOnly(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// NewDataset wraps an already-parsed dataset. Used by callers that build
// records in memory rather than from a file.
func NewDataset(ds dicom.Dataset) *Dataset {
	return &Dataset{Data: ds}
}

// GetString returns a string value for a tag, or empty string if not found.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return ""
	}

	if elem.Value == nil {
		return ""
	}

	val := elem.Value.GetValue()
	if val == nil {
		return ""
	}

	switch v := val.(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case string:
		return v
	}

	return fmt.Sprintf("%v", val)
}

// GetInt returns an integer value for a tag, or 0 if not found.
func (d *Dataset) GetInt(t tag.Tag) int {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return 0
	}
	return getIntValueFromElem(elem)
}

// Has reports whether the dataset contains an element for the tag.
func (d *Dataset) Has(t tag.Tag) bool {
	_, err := d.Data.FindElementByTag(t)
	return err == nil
}

// Tags returns the tags of all declared elements in dataset order.
func (d *Dataset) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(d.Data.Elements))
	for _, e := range d.Data.Elements {
		tags = append(tags, e.Tag)
	}
	return tags
}

// GetPatientName returns the patient name.
func (d *Dataset) GetPatientName() string {
	return d.GetString(tag.PatientName)
}

// GetPatientID returns the patient ID.
func (d *Dataset) GetPatientID() string {
	return d.GetString(tag.PatientID)
}

// GetPatientBirthDate returns the patient DOB.
func (d *Dataset) GetPatientBirthDate() string {
	return d.GetString(tag.PatientBirthDate)
}

// GetTransferSyntax returns the transfer syntax UID.
func (d *Dataset) GetTransferSyntax() string {
	return d.GetString(tag.TransferSyntaxUID)
}

// GetStudyInstanceUID returns the study instance UID.
func (d *Dataset) GetStudyInstanceUID() string {
	return d.GetString(tag.StudyInstanceUID)
}

// GetModality returns the DICOM modality (e.g., "US", "CT", "MR", "CR", "DX").
func (d *Dataset) GetModality() string {
	return d.GetString(tag.Modality)
}

// GetSOPClassUID returns the SOP class UID.
func (d *Dataset) GetSOPClassUID() string {
	return d.GetString(tag.SOPClassUID)
}

// IsUltrasound returns true if this is an ultrasound image.
func (d *Dataset) IsUltrasound() bool {
	modality := d.GetModality()
	return modality == "US" || modality == "IVUS" // Intravascular ultrasound
}

// Clone returns a copy of the dataset whose element list can be mutated
// without touching the receiver. Element values are shared until replaced;
// SetString and RemoveTag operate on the clone's list only.
func (d *Dataset) Clone() *Dataset {
	elems := make([]*dicom.Element, len(d.Data.Elements))
	copy(elems, d.Data.Elements)
	return &Dataset{
		Data:     dicom.Dataset{Elements: elems},
		FilePath: d.FilePath,
	}
}
