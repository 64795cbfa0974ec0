package squashfs

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdDecompressor reuses a single package-level *zstd.Decoder (the teacher's
// comp_zstd.go wired zstd.ZipDecompressor() directly into the registry; a
// shared decoder with DecodeAll is the equivalent one-shot idiom once the
// build tag is removed and all codecs are always compiled in).
type zstdDecompressor struct{}

var zstdDec *zstd.Decoder
var zstdDecOnce sync.Once

func zstdDecoder() *zstd.Decoder {
	zstdDecOnce.Do(func() {
		zstdDec, _ = zstd.NewReader(nil)
	})
	return zstdDec
}

func (zstdDecompressor) Decompress(src, dst []byte) (int, error) {
	out, err := zstdDecoder().DecodeAll(src, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: decompressed zstd block larger than destination buffer", ErrCorrupt)
	}
	return copy(dst, out), nil
}

func init() {
	registerCompression(ZSTD, func() decompressor { return zstdDecompressor{} })
}
