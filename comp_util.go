package squashfs

import (
	"bytes"
	"io"
)

// bytesReader wraps a byte slice as a *bytes.Reader; small helper shared by
// the streaming codec wrappers below.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// readFull reads from r into dst until dst is full, EOF, or an error other
// than io.EOF/io.ErrUnexpectedEOF. Decompressed squashfs blocks are never
// larger than dst, so a short read simply means the block's uncompressed
// size was smaller than the class's maximum (the common case for the final
// block of a metablock chain or a small file).
func readFull(r io.Reader, dst []byte) (int, error) {
	n, err := io.ReadFull(r, dst)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, nil
	}
	return n, err
}
