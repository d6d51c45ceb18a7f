package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies frame content. Two frames with the same pixels have
// the same fingerprint; the camera repeating a buffer is what we detect.
type Fingerprint uint64

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// FingerprintOf hashes the pixel data of img.
func FingerprintOf(img *image.RGBA) Fingerprint {
	return Fingerprint(xxhash.Sum64(img.Pix))
}

// Encoder turns a decoded image into the published payload.
type Encoder func(img *image.RGBA) ([]byte, error)

// JPEGEncoder returns an Encoder producing baseline JPEG at quality q.
func JPEGEncoder(q int) Encoder {
	opts := &jpeg.Options{Quality: q}
	return func(img *image.RGBA) ([]byte, error) {
		var buf bytes.Buffer
		buf.Grow(len(img.Pix) / 8)
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}
