package squashfs

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// squashfs's LZ4 blocks are raw LZ4 block-format data (no frame header),
// so this is the one-shot backend spec.md §4.B describes for LZ4/LZO:
// no streaming state, just a single UncompressBlock call.
type lz4Decompressor struct{}

func (lz4Decompressor) Decompress(src, dst []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	return n, nil
}

func init() {
	registerCompression(LZ4, func() decompressor { return lz4Decompressor{} })
}
