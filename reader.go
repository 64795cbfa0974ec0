package squashfs

import "io"

// FileReader is a forward-only io.Reader over a regular file's decoded
// content, grounded on the canonical-snapd squashfs2 FileReader (which
// tracks a current position and decodes the block covering it on demand)
// but built atop FileContentIterator so it shares fragment/sparse/
// compressed handling with Inode.ReadAt instead of duplicating it.
type FileReader struct {
	ino *Inode
	it  *FileContentIterator
	pos int64
}

// NewFileReader returns a FileReader starting at the beginning of ino's
// content. ino must be a regular file.
func NewFileReader(ino *Inode) (*FileReader, error) {
	if ino.Type.Basic() != FileType {
		return nil, ErrNotAFile
	}
	return &FileReader{ino: ino, it: newFileContentIterator(ino)}, nil
}

// Read implements io.Reader, advancing strictly forward through the
// file's content.
func (fr *FileReader) Read(p []byte) (int, error) {
	if uint64(fr.pos) >= fr.ino.Size {
		return 0, io.EOF
	}
	if remaining := fr.ino.Size - uint64(fr.pos); uint64(len(p)) > remaining {
		p = p[:remaining]
	}

	chunk, err := fr.it.next(fr.pos)
	if err != nil {
		return 0, err
	}
	n := copy(p, chunk)
	fr.pos += int64(n)
	return n, nil
}
