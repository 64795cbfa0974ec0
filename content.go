package squashfs

import "fmt"

// FileContentIterator walks a regular file's data blocks and fragment
// tail forward, decoding each one through the shared extract cache.
// Generalizes the block/fragment/sparse dispatch that used to be inlined
// directly in the teacher's Inode.ReadAt into its own forward-only
// stepper, so random-access reads (Inode.ReadAt) and sequential reads
// (FileReader, file.go) share one decoding path instead of two.
type FileContentIterator struct {
	ino *Inode

	cached      []byte
	cachedBlock int
}

func newFileContentIterator(ino *Inode) *FileContentIterator {
	return &FileContentIterator{ino: ino, cachedBlock: -1}
}

// Iterator returns a forward-only FileContentIterator over i's data,
// the entry point spec §6.3's caller API surface names as
// `file.iterator() → FileContentIterator`. Random access (Inode.ReadAt)
// and sequential access (FileReader) both build their own internally;
// this is for callers that want the block/fragment/sparse dispatch
// directly instead of going through one of those two wrappers. Each step
// yields exactly one block (or the fragment tail); adjacent blocks are not
// coalesced into a larger chunk.
func (i *Inode) Iterator() *FileContentIterator {
	return newFileContentIterator(i)
}

// next returns a slice of decoded file content starting at absolute file
// offset off and extending to the end of whichever block covers it. The
// caller must consume it (or copy what it needs) before calling next
// again — the returned slice may alias the iterator's internal cache.
func (it *FileContentIterator) next(off int64) ([]byte, error) {
	ino := it.ino
	sb := ino.sb

	block := int(off / int64(sb.BlockSize))
	inner := int(off % int64(sb.BlockSize))

	if block != it.cachedBlock {
		data, err := it.decodeBlock(block)
		if err != nil {
			return nil, err
		}
		it.cached = data
		it.cachedBlock = block
	}

	if inner > len(it.cached) {
		return nil, fmt.Errorf("%w: offset past decoded block size", ErrCorrupt)
	}
	return it.cached[inner:], nil
}

// Next advances the iterator to absolute file offset off and returns a
// slice of decoded content extending to the end of whichever block (or
// fragment) covers it, per spec §4.J's `next(desired_size)` operation.
// The returned slice aliases the iterator's internal cache and is only
// valid until the next call to Next or Skip.
func (it *FileContentIterator) Next(off int64) ([]byte, error) {
	return it.next(off)
}

// Skip advances the iterator to off without materializing any
// intervening blocks, then calls Next to decode the block that covers
// off, per spec §4.J's `skip(offset, desired_size)` operation. desired
// is accepted for parity with the spec's signature; this implementation
// always decodes exactly the block containing off, the same as Next.
func (it *FileContentIterator) Skip(off int64, desired int) ([]byte, error) {
	return it.next(off)
}

// decodeBlock decodes the file's block-th data block, or its trailing
// fragment once block runs past the last full block readBlockList
// recorded (a fragmented file's Blocks only covers its full blocks; the
// remaining tail always lives in the fragment instead, so there's no
// sentinel entry to find inside Blocks itself).
func (it *FileContentIterator) decodeBlock(block int) ([]byte, error) {
	ino := it.ino
	sb := ino.sb

	if block == len(ino.Blocks) && ino.FragBlock != noFragment {
		return it.decodeFragment()
	}

	if block < 0 || block >= len(ino.Blocks) {
		return nil, fmt.Errorf("%w: block index %d past end of file", ErrCorrupt, block)
	}

	if ino.Blocks[block] == 0 {
		// sparse block: not stored on disk at all, reads as zeroes.
		return make([]byte, sb.BlockSize), nil
	}

	size := ino.Blocks[block] & 0xffffff
	uncompressed := ino.Blocks[block]&0x1000000 != 0
	addr := int64(ino.StartBlock + ino.BlocksOfft[block])

	h, err := sb.dataCache.Get(addr, func() ([]byte, error) {
		raw := make([]byte, size)
		if err := sb.readAt(raw, addr); err != nil {
			return nil, err
		}
		if uncompressed {
			return raw, nil
		}
		dst := make([]byte, sb.BlockSize)
		n, err := sb.dec.Decompress(raw, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	})
	if err != nil {
		return nil, err
	}
	defer h.Release()

	out := make([]byte, len(h.Data()))
	copy(out, h.Data())
	return out, nil
}

func (it *FileContentIterator) decodeFragment() ([]byte, error) {
	ino := it.ino
	sb := ino.sb

	e, err := sb.fragmentEntry(ino.FragBlock)
	if err != nil {
		return nil, err
	}

	size := e.Size & 0xffffff
	uncompressed := e.Size&0x1000000 != 0
	addr := int64(e.Start)

	h, err := sb.dataCache.Get(addr, func() ([]byte, error) {
		raw := make([]byte, size)
		if err := sb.readAt(raw, addr); err != nil {
			return nil, err
		}
		if uncompressed {
			return raw, nil
		}
		dst := make([]byte, sb.BlockSize)
		n, err := sb.dec.Decompress(raw, dst)
		if err != nil {
			return nil, err
		}
		return dst[:n], nil
	})
	if err != nil {
		return nil, err
	}
	defer h.Release()

	data := h.Data()
	if int(ino.FragOfft) > len(data) {
		return nil, fmt.Errorf("%w: fragment offset past decoded size", ErrCorrupt)
	}
	out := make([]byte, len(data)-int(ino.FragOfft))
	copy(out, data[ino.FragOfft:])
	return out, nil
}
