package classify

import "github.com/suyashkumar/dicom/pkg/tag"

// RetainTags are tags safe to keep verbatim: acquisition geometry, image
// encoding, and clinically relevant non-identifying attributes. This is the
// whitelist; everything not reachable from these tables is removed.
var RetainTags = []tag.Tag{
	// File meta / encoding
	tag.TransferSyntaxUID,
	tag.SpecificCharacterSet,
	tag.SOPClassUID,
	tag.MediaStorageSOPClassUID,

	// Image geometry and encoding
	tag.Rows,
	tag.Columns,
	tag.SamplesPerPixel,
	tag.BitsAllocated,
	tag.BitsStored,
	tag.HighBit,
	tag.PixelRepresentation,
	tag.PhotometricInterpretation,
	tag.PlanarConfiguration,
	tag.NumberOfFrames,
	tag.PixelSpacing,
	tag.SliceThickness,
	tag.SliceLocation,
	tag.ImageOrientationPatient,
	tag.ImagePositionPatient,
	tag.RescaleIntercept,
	tag.RescaleSlope,
	tag.WindowCenter,
	tag.WindowWidth,
	tag.PixelData,

	// Acquisition context (non-identifying)
	tag.Modality,
	tag.BodyPartExamined,
	tag.KVP,
	tag.ExposureTime,
	tag.Manufacturer,
	tag.ManufacturerModelName,
	tag.SoftwareVersions,
	tag.ProtocolName,
	tag.InstanceNumber,
	tag.SeriesNumber,
	tag.ImageType,
	tag.Laterality,

	// Kept for clinical relevance (matches safe-harbor: sex is not one of
	// the enumerated identifiers)
	tag.PatientSex,
	tag.PatientWeight,
	tag.PatientSize,
}

// IdentifierTags are identifiers replaced by deterministic remapping so that
// linked records keep their linkage after de-identification.
var IdentifierTags = []tag.Tag{
	tag.PatientID,
	tag.AccessionNumber,
	tag.StudyID,
	tag.StudyInstanceUID,
	tag.SeriesInstanceUID,
	tag.SOPInstanceUID,
	tag.MediaStorageSOPInstanceUID,
	tag.FrameOfReferenceUID,
}

// DateTags are shifted by a per-study offset, preserving intervals.
var DateTags = []tag.Tag{
	tag.StudyDate,
	tag.SeriesDate,
	tag.AcquisitionDate,
	tag.ContentDate,
	tag.InstanceCreationDate,
	tag.PatientBirthDate,
}

// FreeTextTags may carry burned-in prose and are scrubbed to empty.
var FreeTextTags = []tag.Tag{
	tag.StudyDescription,
	tag.SeriesDescription,
	tag.ImageComments,
	tag.AdditionalPatientHistory,
	tag.AdmittingDiagnosesDescription,
	tag.DerivationDescription,
	tag.RequestedProcedureDescription,
	tag.PerformedProcedureStepDescription,
}

// PHITags are direct identifiers cleared under every de-identifying profile.
// Largely the HIPAA safe-harbor set as it appears in DICOM.
var PHITags = []tag.Tag{
	// Patient identifiers
	tag.PatientName,
	tag.PatientAge,
	tag.PatientAddress,
	tag.PatientTelephoneNumbers,
	tag.OtherPatientIDs,
	tag.OtherPatientIDsSequence,
	tag.PatientBirthTime,
	tag.PatientMotherBirthName,
	tag.MilitaryRank,
	tag.EthnicGroup,
	tag.PatientReligiousPreference,
	tag.PatientComments,
	tag.IssuerOfPatientID,
	tag.MedicalRecordLocator,

	// Times (dates handled by DateTags; bare times can fingerprint a visit)
	tag.StudyTime,
	tag.SeriesTime,
	tag.AcquisitionTime,
	tag.ContentTime,
	tag.InstanceCreationTime,

	// Device identity
	tag.DeviceSerialNumber,
	tag.StationName,

	// Ordering / workflow identifiers
	tag.RequestAttributesSequence,
	tag.PerformedProcedureStepID,
	tag.ScheduledProcedureStepID,
}

// staff identify clinical personnel, not the subject.
var staffTagList = []tag.Tag{
	tag.ReferringPhysicianName,
	tag.ReferringPhysicianAddress,
	tag.ReferringPhysicianTelephoneNumbers,
	tag.PerformingPhysicianName,
	tag.OperatorsName,
	tag.PhysiciansOfRecord,
	tag.NameOfPhysiciansReadingStudy,
	tag.RequestingPhysician,
	tag.ScheduledPerformingPhysicianName,
}

// institution identifies the performing site.
var institutionTagList = []tag.Tag{
	tag.InstitutionName,
	tag.InstitutionAddress,
	tag.InstitutionalDepartmentName,
}

var (
	actionTable     map[tag.Tag]Action
	staffTags       map[tag.Tag]bool
	institutionTags map[tag.Tag]bool
)

func init() {
	actionTable = make(map[tag.Tag]Action)
	for _, t := range RetainTags {
		actionTable[t] = Retain
	}
	for _, t := range IdentifierTags {
		actionTable[t] = RemapIdentifier
	}
	for _, t := range DateTags {
		actionTable[t] = ShiftDate
	}
	for _, t := range FreeTextTags {
		actionTable[t] = ScrubText
	}
	for _, t := range PHITags {
		actionTable[t] = RemovePHI
	}
	for _, t := range staffTagList {
		actionTable[t] = RemovePHI
	}

	staffTags = make(map[tag.Tag]bool, len(staffTagList))
	for _, t := range staffTagList {
		staffTags[t] = true
	}

	// Institution fields are retained by default (research site tracking)
	// and stripped only under the strict jurisdictional profile.
	institutionTags = make(map[tag.Tag]bool, len(institutionTagList))
	for _, t := range institutionTagList {
		institutionTags[t] = true
		actionTable[t] = Retain
	}
}
