package pixel

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deident/internal/dicom"
)

// MaskRect is one rectangle to black out. FrameIndex -1 applies the mask to
// every frame.
type MaskRect struct {
	X, Y, Width, Height int
	FrameIndex          int
}

// MaskRegions zeroes the given rectangles in the dataset's pixel data,
// in place. The pixel buffer is shared with any clone of the dataset, so a
// clone's unmasked view of it does not survive this call; callers needing
// the original bytes must snapshot them first (RawPixelBytes copies).
// Raw byte payloads are treated as frame 0 only.
func MaskRegions(ds *dcm.Dataset, rects []MaskRect) error {
	if len(rects) == 0 {
		return nil
	}

	pixelElem, err := ds.Data.FindElementByTag(tag.PixelData)
	if err != nil {
		return fmt.Errorf("no pixel data found: %w", err)
	}

	g := ds.Geometry()
	if g.Rows == 0 || g.Columns == 0 {
		return fmt.Errorf("invalid image dimensions: %dx%d", g.Columns, g.Rows)
	}

	pixelInfo := pixelElem.Value.GetValue()

	switch v := pixelInfo.(type) {
	case dicom.PixelDataInfo:
		if v.IsEncapsulated {
			return fmt.Errorf("cannot mask encapsulated pixel data")
		}
		for idx, fr := range v.Frames {
			for _, rect := range rects {
				if rect.FrameIndex >= 0 && rect.FrameIndex != idx {
					continue
				}
				maskFrame(fr, g, rect)
			}
		}
	case []byte:
		for _, rect := range rects {
			if rect.FrameIndex > 0 {
				continue
			}
			maskBytes(v, g, rect)
		}
	default:
		return fmt.Errorf("unsupported pixel data type: %T", pixelInfo)
	}

	return nil
}

// maskFrame zeroes a rectangle in native frame data. Data layout is
// [][]int: outer is pixels in row-major order, inner is samples.
func maskFrame(f *frame.Frame, g dcm.PixelGeometry, rect MaskRect) {
	if f.NativeData.Data == nil {
		return
	}

	for row := rect.Y; row < rect.Y+rect.Height && row < g.Rows; row++ {
		if row < 0 {
			continue
		}
		for col := rect.X; col < rect.X+rect.Width && col < g.Columns; col++ {
			if col < 0 {
				continue
			}
			idx := row*g.Columns + col
			if idx >= len(f.NativeData.Data) {
				return
			}
			for j := range f.NativeData.Data[idx] {
				f.NativeData.Data[idx][j] = 0
			}
		}
	}
}

// maskBytes zeroes a rectangle directly in a raw byte payload.
func maskBytes(buf []byte, g dcm.PixelGeometry, rect MaskRect) {
	bytesPerPixel := g.Samples * g.BytesPerSample()
	bytesPerRow := g.Columns * bytesPerPixel

	for row := rect.Y; row < rect.Y+rect.Height && row < g.Rows; row++ {
		if row < 0 {
			continue
		}
		start := row*bytesPerRow + rect.X*bytesPerPixel
		end := start + rect.Width*bytesPerPixel
		if start < 0 || start >= len(buf) {
			continue
		}
		if end > len(buf) {
			end = len(buf)
		}
		for i := start; i < end; i++ {
			buf[i] = 0
		}
	}
}
