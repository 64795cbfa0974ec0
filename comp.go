package squashfs

import "fmt"

// Compression identifies the algorithm used to pack metadata and data blocks
// in a squashfs archive, as stored in the superblock's compression id field.
type Compression uint16

const (
	GZip Compression = 1
	LZMA Compression = 2
	LZO  Compression = 3
	XZ   Compression = 4
	LZ4  Compression = 5
	ZSTD Compression = 6
)

func (s Compression) String() string {
	switch s {
	case GZip:
		return "GZip"
	case LZMA:
		return "LZMA"
	case LZO:
		return "LZO"
	case XZ:
		return "XZ"
	case LZ4:
		return "LZ4"
	case ZSTD:
		return "ZSTD"
	}
	return fmt.Sprintf("Compression(%d)", s)
}

// decompressor decodes a single compressed block into a caller-supplied
// buffer. dst must be at least as large as the expected decompressed size
// (8KiB for metablocks, the archive's block size for data blocks); the
// number of bytes actually written is returned.
type decompressor interface {
	Decompress(src, dst []byte) (int, error)
}

// decompressorFactory builds a decompressor instance. Every backend here is
// stateless between calls: the streaming ones (LZMA, XZ, zlib) build a new
// reader inside each Decompress call and ZSTD shares one package-level
// decoder, so an archive opens a single instance and reuses it for every
// block.
type decompressorFactory func() decompressor

var compRegistry = map[Compression]decompressorFactory{}

// registerCompression installs the decoder factory for a compression id.
// Called from each codec's init().
func registerCompression(c Compression, f decompressorFactory) {
	compRegistry[c] = f
}

// newDecompressor looks up the decoder for comp, returning
// ErrUnsupportedCompression if none is registered.
func newDecompressor(comp Compression) (decompressor, error) {
	f, ok := compRegistry[comp]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, comp)
	}
	return f(), nil
}
