package squashfs

import (
	"fmt"

	"github.com/ulikunitz/xz"
)

// xzDecompressor decodes .xz-container compressed blocks, grounded on the
// teacher's comp_xz.go (same github.com/ulikunitz/xz.NewReader call), with
// the build tag dropped so XZ is always available rather than opt-in.
type xzDecompressor struct{}

func (xzDecompressor) Decompress(src, dst []byte) (int, error) {
	r, err := xz.NewReader(bytesReader(src))
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
	registerCompression(XZ, func() decompressor { return xzDecompressor{} })
}
