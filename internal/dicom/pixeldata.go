package dicom

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// PixelGeometry describes the declared shape of the pixel buffer.
type PixelGeometry struct {
	Rows           int
	Columns        int
	Samples        int
	BitsAllocated  int
	Signed         bool
	NumberOfFrames int
}

// BytesPerSample returns the byte width of one sample.
func (g PixelGeometry) BytesPerSample() int {
	return (g.BitsAllocated + 7) / 8
}

// Geometry reads the pixel geometry tags, applying DICOM defaults for
// missing optional ones.
func (d *Dataset) Geometry() PixelGeometry {
	g := PixelGeometry{
		Rows:           d.GetInt(tag.Rows),
		Columns:        d.GetInt(tag.Columns),
		Samples:        d.GetInt(tag.SamplesPerPixel),
		BitsAllocated:  d.GetInt(tag.BitsAllocated),
		Signed:         d.GetInt(tag.PixelRepresentation) == 1,
		NumberOfFrames: d.GetInt(tag.NumberOfFrames),
	}
	if g.Samples == 0 {
		g.Samples = 1
	}
	if g.BitsAllocated == 0 {
		g.BitsAllocated = 8
	}
	if g.NumberOfFrames == 0 {
		g.NumberOfFrames = 1
	}
	return g
}

// HasPixelData reports whether a pixel data element is present.
func (d *Dataset) HasPixelData() bool {
	return d.Has(tag.PixelData)
}

// RawPixelBytes extracts the pixel buffer as a fresh byte slice. Native
// frames are flattened little-endian in frame order; encapsulated
// (compressed) frames are concatenated without transcoding; raw OB/OW
// payloads are copied as-is. Returns nil, nil when the dataset carries no
// pixel data.
func (d *Dataset) RawPixelBytes() ([]byte, error) {
	pixelElem, err := d.Data.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, nil
	}

	pixelInfo := pixelElem.Value.GetValue()

	switch v := pixelInfo.(type) {
	case dicom.PixelDataInfo:
		if len(v.Frames) == 0 {
			return nil, fmt.Errorf("no frames in pixel data")
		}
		if v.IsEncapsulated {
			return flattenEncapsulatedFrames(v)
		}
		return d.flattenNativeFrames(v)

	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported pixel data type: %T", pixelInfo)
	}
}

// flattenEncapsulatedFrames concatenates compressed frame payloads as-is.
// The bytes stay in their original encoding; decoding them here would break
// the passthrough guarantee.
func flattenEncapsulatedFrames(pdi dicom.PixelDataInfo) ([]byte, error) {
	var result []byte
	for _, fr := range pdi.Frames {
		if fr.EncapsulatedData.Data == nil {
			return nil, fmt.Errorf("encapsulated frame data is nil")
		}
		result = append(result, fr.EncapsulatedData.Data...)
	}
	return result, nil
}

// flattenNativeFrames converts native frame data to raw bytes.
func (d *Dataset) flattenNativeFrames(pdi dicom.PixelDataInfo) ([]byte, error) {
	g := d.Geometry()
	bytesPerSample := g.BytesPerSample()

	frameSize := g.Rows * g.Columns * g.Samples * bytesPerSample
	result := make([]byte, 0, frameSize*len(pdi.Frames))

	for _, fr := range pdi.Frames {
		if fr.NativeData.Data == nil {
			return nil, fmt.Errorf("native frame data is nil")
		}
		buf := make([]byte, 0, frameSize)
		for _, pixel := range fr.NativeData.Data {
			for _, sample := range pixel {
				if bytesPerSample == 1 {
					buf = append(buf, byte(sample))
				} else {
					// Little-endian 16-bit
					buf = append(buf, byte(sample), byte(sample>>8))
				}
			}
		}
		result = append(result, buf...)
	}

	return result, nil
}

// getIntValueFromElem extracts an integer value from a DICOM element.
func getIntValueFromElem(elem *dicom.Element) int {
	if elem == nil || elem.Value == nil {
		return 0
	}

	val := elem.Value.GetValue()
	switch v := val.(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case int:
		return v
	case []uint16:
		if len(v) > 0 {
			return int(v[0])
		}
	case uint16:
		return int(v)
	case []string:
		// IS-VR tags (e.g. NumberOfFrames) parse as strings.
		if len(v) > 0 {
			var n int
			if _, err := fmt.Sscanf(v[0], "%d", &n); err == nil {
				return n
			}
		}
	}

	return 0
}
