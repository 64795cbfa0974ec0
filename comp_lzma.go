package squashfs

import (
	"fmt"

	"github.com/ulikunitz/xz/lzma"
)

// squashfs stores LZMA-compressed blocks as a raw LZMA1 stream (no .xz
// container, no size footer), the same shape ulikunitz/xz's lzma.Reader
// expects when given a bare options-less stream.
type lzmaDecompressor struct{}

func (lzmaDecompressor) Decompress(src, dst []byte) (int, error) {
	r, err := lzma.NewReader(bytesReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}

	n, err := readFull(r, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	return n, nil
}

func init() {
	registerCompression(LZMA, func() decompressor { return lzmaDecompressor{} })
}
