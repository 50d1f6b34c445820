package yuv

import (
	"errors"
	"fmt"
	"io"
)

// ReadImage fills img from r plane by plane and row by row, honoring the
// plane strides. It returns io.EOF if r was exhausted before the first byte
// and io.ErrUnexpectedEOF as soon as any row is short.
func ReadImage(r io.Reader, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	first := true
	for p := range img.Planes {
		for y := range img.PlaneHeight(p) {
			row := img.Row(p, y)
			n, err := io.ReadFull(r, row)
			if err != nil {
				if first && n == 0 && errors.Is(err, io.EOF) {
					return io.EOF
				}
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return fmt.Errorf("short read in plane %v row %v: %w", p, y, err)
			}
			first = false
		}
	}
	return nil
}

// WriteImage writes the rows of img to w without stride padding.
func WriteImage(w io.Writer, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	for p := range img.Planes {
		for y := range img.PlaneHeight(p) {
			if _, err := w.Write(img.Row(p, y)); err != nil {
				return fmt.Errorf("failed to write plane %v row %v: %w", p, y, err)
			}
		}
	}
	return nil
}
