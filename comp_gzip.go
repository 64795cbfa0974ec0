package squashfs

import (
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// SquashFS's GZip compression id is, confusingly, a raw zlib stream (not a
// gzip-framed one). klauspost/compress's zlib reader is a drop-in faster
// implementation of the same format and is already a dependency of the
// wider example pack (keeword-go-diskfs), so it's used here instead of
// compress/gzip.
type zlibDecompressor struct{}

func (zlibDecompressor) Decompress(src, dst []byte) (int, error) {
	r, err := zlib.NewReader(bytesReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	defer r.Close()

	n, err := readFull(r, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	return n, nil
}

func init() {
	registerCompression(GZip, func() decompressor { return zlibDecompressor{} })
}
