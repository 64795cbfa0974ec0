package squashfs

import (
	"fmt"
	"io"
)

// lzoDecompressor decodes LZO1X block-format data. No maintained,
// actively-imported pure-Go LZO library appeared anywhere in the example
// pack (go-diskfs and friends all lean on gzip/xz/lz4/zstd only), so this
// is implemented directly against the documented LZO1X bytecode rather
// than pulled from a dependency — see DESIGN.md.
type lzoDecompressor struct{}

func (lzoDecompressor) Decompress(src, dst []byte) (int, error) {
	n, err := lzo1xDecompress(src, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrDecompressionFailed, err)
	}
	return n, nil
}

func init() {
	registerCompression(LZO, func() decompressor { return lzoDecompressor{} })
}

// lzo1xM1DistanceBase is the implicit distance offset (2048 + 1) baked
// into the short "M1" match form: it only ever appears directly after a
// literal run, so the format doesn't bother spending bits on it.
const lzo1xM1DistanceBase = 0x800 + 1

// lzo1xDecompress implements the classic LZO1X decompression bytecode: a
// byte-oriented stream of literal runs and back-references. The tricky
// part the instruction-byte values alone don't reveal is that the decoder
// is a two-state machine, not a flat dispatch table: immediately after a
// literal run, a low (<16) instruction byte means a short "M1" match
// (fixed length 3, implicit distance base); everywhere else, a low
// instruction byte instead means a literal-run-length nibble. Every match,
// of any form, is also followed by a 0-3 byte trailing literal run whose
// length is the low two bits of the byte two positions before the end of
// the match instruction (src[ip-2] at that point, mirroring the reference
// decoder's ip[-2]&3): the instruction byte itself for the two-byte forms,
// the low distance byte for the forms with a 16-bit distance. It is
// encoded there instead of in the next instruction byte, so it has to be
// copied before the next instruction byte is read at all.
func lzo1xDecompress(src, dst []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	var ip, op int
	sLen, dLen := len(src), len(dst)

	readByte := func() (int, error) {
		if ip >= sLen {
			return 0, io.ErrUnexpectedEOF
		}
		b := int(src[ip])
		ip++
		return b, nil
	}

	readU16 := func() (int, error) {
		if ip+2 > sLen {
			return 0, io.ErrUnexpectedEOF
		}
		u := int(src[ip]) | int(src[ip+1])<<8
		ip += 2
		return u, nil
	}

	copyLiteral := func(n int) error {
		if n == 0 {
			return nil
		}
		if ip+n > sLen || op+n > dLen {
			return io.ErrUnexpectedEOF
		}
		copy(dst[op:op+n], src[ip:ip+n])
		ip += n
		op += n
		return nil
	}

	copyMatch := func(mPos, n int) error {
		if mPos < 0 || mPos >= op || op+n > dLen {
			return fmt.Errorf("squashfs: lzo: invalid back-reference")
		}
		for i := 0; i < n; i++ {
			dst[op+i] = dst[mPos+i]
		}
		op += n
		return nil
	}

	// extend reads the 255-run continuation bytes used whenever an
	// instruction's inline length field is saturated (all-zero nibble).
	extend := func(base int) (int, error) {
		n := base
		for {
			b, err := readByte()
			if err != nil {
				return 0, err
			}
			if b != 0 {
				return n + b, nil
			}
			n += 255
		}
	}

	// decodeMatch handles the three instruction forms that mean the same
	// thing regardless of which state the caller is in (t is always >= 16
	// here; the t < 16 forms are state-dependent and handled by the
	// caller directly). end reports the LZO1X end-of-stream marker.
	decodeMatch := func(t int) (mPos, mLen int, end bool, err error) {
		switch {
		case t >= 64:
			d, err := readByte()
			if err != nil {
				return 0, 0, false, err
			}
			return op - 1 - ((t >> 2) & 7) - (d << 3), (t >> 5) - 1 + 2, false, nil

		case t >= 32:
			n := t & 31
			if n == 0 {
				if n, err = extend(31); err != nil {
					return 0, 0, false, err
				}
			}
			u, err := readU16()
			if err != nil {
				return 0, 0, false, err
			}
			return op - 1 - (u >> 2), n + 2, false, nil

		default: // 16 <= t < 32
			n := t & 7
			hi := (t & 8) << 11
			if n == 0 {
				if n, err = extend(7); err != nil {
					return 0, 0, false, err
				}
			}
			u, err := readU16()
			if err != nil {
				return 0, 0, false, err
			}
			if hi == 0 && u>>2 == 0 {
				// distance of exactly 0x4000 encodes the end-of-stream marker.
				return 0, 0, true, nil
			}
			return op - hi - (u >> 2) - 0x4000, n + 2, false, nil
		}
	}

	t, err := readByte()
	if err != nil {
		return 0, err
	}
	if t > 17 {
		if err := copyLiteral(t - 17); err != nil {
			return 0, err
		}
	} else {
		n := t
		if n == 0 {
			if n, err = extend(15); err != nil {
				return 0, err
			}
		} else {
			n += 3
		}
		if err := copyLiteral(n); err != nil {
			return 0, err
		}
	}

	// afterLiteral selects which instruction-byte interpretation applies
	// next: true right after any literal run (M1-match state), false
	// anywhere else (literal-run-length-nibble state). Every match leaves
	// this false unless its trailing literal run sets it back to true.
	afterLiteral := true
	for {
		if ip >= sLen {
			return op, nil
		}
		t, err := readByte()
		if err != nil {
			return 0, err
		}

		var mPos, mLen int
		if t < 16 {
			if !afterLiteral {
				n := t
				if n == 0 {
					if n, err = extend(15); err != nil {
						return 0, err
					}
				} else {
					n += 3
				}
				if err := copyLiteral(n); err != nil {
					return 0, err
				}
				afterLiteral = true
				continue
			}

			d, err := readByte()
			if err != nil {
				return 0, err
			}
			mPos, mLen = op-lzo1xM1DistanceBase-(t>>2)-(d<<2), 3
		} else {
			var end bool
			mPos, mLen, end, err = decodeMatch(t)
			if err != nil {
				return 0, err
			}
			if end {
				return op, nil
			}
		}

		if err := copyMatch(mPos, mLen); err != nil {
			return 0, err
		}

		trailing := int(src[ip-2]) & 3
		afterLiteral = false
		if trailing != 0 {
			if err := copyLiteral(trailing); err != nil {
				return 0, err
			}
			afterLiteral = true
		}
	}
}
