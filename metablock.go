package squashfs

import (
	"fmt"
	"log"
)

// metablockMaxSize is the maximum size of a single (possibly compressed)
// metadata block's payload once decoded.
const metablockMaxSize = 8192

// MetablockReader provides sequential access to a logical byte stream
// built out of chained 8KiB metablocks — the inode table, directory
// table, and every indirection table are all just metablock streams read
// from a different starting address. Generalizes the teacher's
// tableReader and inodeReader (previously two copies of the same logic)
// and the metablock chasing loop from the canonical-snapd squashfs2
// reference (metablock_reader.go's readMetablock/read).
type MetablockReader struct {
	sb   *Superblock
	offt int64
	buf  []byte
}

// newMetablockReader opens a metablock stream starting at the metablock
// whose header lives at base, discarding the first skip bytes of decoded
// payload (an inode or directory entry's inner offset into its block).
func (sb *Superblock) newMetablockReader(base int64, skip int) (*MetablockReader, error) {
	r := &MetablockReader{sb: sb, offt: base}
	if err := r.fill(); err != nil {
		return nil, err
	}
	if skip != 0 {
		if skip > len(r.buf) {
			return nil, fmt.Errorf("%w: metablock inner offset past decoded size", ErrCorrupt)
		}
		r.buf = r.buf[skip:]
	}
	return r, nil
}

// newInodeReader opens a MetablockReader positioned at the inode
// referenced by ino within the inode table.
func (sb *Superblock) newInodeReader(ino inodeRef) (*MetablockReader, error) {
	return sb.newMetablockReader(int64(sb.InodeTableStart)+int64(ino.Index()), int(ino.Offset()))
}

// fill decodes the metablock at r.offt (via the shared extract cache) and
// leaves the rest of the stream ready to be chained to on the next read.
func (r *MetablockReader) fill() error {
	hdr := make([]byte, 2)
	if err := r.sb.readAt(hdr, r.offt); err != nil {
		return err
	}
	lenN := r.sb.order.Uint16(hdr)
	uncompressed := lenN&0x8000 != 0
	lenN &= 0x7fff

	addr := r.offt
	h, err := r.sb.metaCache.Get(addr, func() ([]byte, error) {
		raw := make([]byte, int(lenN))
		if err := r.sb.readAt(raw, r.offt+2); err != nil {
			return nil, err
		}
		if uncompressed {
			return raw, nil
		}
		dst := make([]byte, metablockMaxSize)
		n, err := r.sb.dec.Decompress(raw, dst)
		if err != nil {
			log.Printf("squashfs: failed to read compressed data: %s", err)
			return nil, err
		}
		return dst[:n], nil
	})
	if err != nil {
		return err
	}
	defer h.Release()

	data := h.Data()
	r.buf = make([]byte, len(data))
	copy(r.buf, data)
	r.offt += 2 + int64(lenN)
	return nil
}

// Read implements io.Reader, transparently chaining across metablock
// boundaries as the caller consumes more than one block's worth of data.
func (r *MetablockReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
