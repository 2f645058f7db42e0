package render

import (
	"image"
	"image/png"
	"io"
)

// Opaque copies src into dst with every pixel composited over black, which
// for premultiplied RGBA only means forcing alpha to 255. dst is
// reallocated when its size differs.
func Opaque(dst, src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	if dst == nil || dst.Bounds() != b {
		dst = image.NewRGBA(b)
	}
	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		copy(d, s)
		for i := 3; i < len(d); i += 4 {
			d[i] = 0xff
		}
	}
	return dst
}

// EncodePNG writes an opaque PNG of the surface.
func EncodePNG(w io.Writer, surface *image.RGBA) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, Opaque(nil, surface))
}
