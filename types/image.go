// Package types defines core domain types shared by the mural subsystems.
package types

import "fmt"

// RawImage is a captured frame: pixel dimensions, component count and the
// pixel bytes, row-major with row 0 at the top.
//
// Valid implies len(Pixels) == Width*Height*Components. A RawImage is never
// patched in place by a pipeline stage; stages hand over a new value.
type RawImage struct {
	Width      int
	Height     int
	Components int
	Valid      bool
	Pixels     []byte
}

// NewRawImage allocates a zeroed, valid image.
func NewRawImage(width, height, components int) RawImage {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return RawImage{
		Width:      width,
		Height:     height,
		Components: components,
		Valid:      true,
		Pixels:     make([]byte, width*height*components),
	}
}

// InvalidImage returns an image carrying no pixels.
func InvalidImage() RawImage {
	return RawImage{}
}

// WrapRawImage builds a valid image around existing pixel bytes.
// Returns an error if the byte count does not match the dimensions.
func WrapRawImage(width, height, components int, pixels []byte) (RawImage, error) {
	img := RawImage{Width: width, Height: height, Components: components, Valid: true, Pixels: pixels}
	if err := img.Validate(); err != nil {
		return RawImage{}, err
	}
	return img, nil
}

// Size returns the number of pixel bytes implied by the dimensions.
func (r RawImage) Size() int {
	return r.Width * r.Height * r.Components
}

// Validate checks the Valid/len(Pixels) invariant.
func (r RawImage) Validate() error {
	if !r.Valid {
		return nil
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("negative image dimensions %dx%d", r.Width, r.Height)
	}
	if r.Components < 1 || r.Components > 4 {
		return fmt.Errorf("invalid component count %d: must be 1-4", r.Components)
	}
	if len(r.Pixels) != r.Size() {
		return fmt.Errorf("pixel buffer holds %d bytes, %dx%dx%d needs %d",
			len(r.Pixels), r.Width, r.Height, r.Components, r.Size())
	}
	return nil
}

// Clone returns a deep copy.
func (r RawImage) Clone() RawImage {
	out := r
	if r.Pixels != nil {
		out.Pixels = append([]byte(nil), r.Pixels...)
	}
	return out
}

// Header returns the wire header describing this image.
func (r RawImage) Header() ImageHeader {
	if !r.Valid {
		return ImageHeader{}
	}
	return ImageHeader{
		HasImage:   true,
		Width:      int32(r.Width),
		Height:     int32(r.Height),
		Components: int32(r.Components),
	}
}
