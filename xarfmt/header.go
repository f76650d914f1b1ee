package xarfmt

import (
	"encoding/binary"
	"io"

	"github.com/luci/luci-go/common/errors"
)

// Magic is the magic bytes which appear at the beginning of every XAR file.
const Magic = "xar!"

// magicWord is Magic decoded as a big-endian uint32, the way it appears in
// the fixed header.
const magicWord uint32 = 'x'<<24 | 'a'<<16 | 'r'<<8 | '!'

// Version is the only XAR format version this package understands.
const Version uint16 = 1

// HeaderSize is the size, in bytes, of the fixed portion of the header. When
// the checksum algorithm is ChecksumOther, a null-terminated algorithm name
// follows the fixed portion, and Header.Size reflects that larger total.
const HeaderSize = 28

// Header is the fixed 28-byte prefix of every XAR file. All integer fields
// are big-endian on the wire.
type Header struct {
	// Size is the total header size in bytes, including this fixed portion
	// and any trailing algorithm name. Must be >= HeaderSize.
	Size uint16

	// Version is the format version. Only Version (1) is currently supported.
	Version uint16

	// CompressedTOCLength is the length, in bytes, of the zlib-compressed TOC
	// XML that immediately follows the header.
	CompressedTOCLength uint64

	// UncompressedTOCLength is the length of the TOC XML after decompression.
	UncompressedTOCLength uint64

	// Checksum is the checksum algorithm protecting the TOC.
	Checksum ChecksumScheme

	// OtherName is the algorithm name when Checksum == ChecksumOther. Empty
	// otherwise.
	OtherName string
}

type wireHeader struct {
	Magic                 uint32
	Size                  uint16
	Version               uint16
	CompressedTOCLength   uint64
	UncompressedTOCLength uint64
	Checksum              uint32
}

// Encode writes the header, including the other-algorithm name and its
// padding to Size, to w.
func (h Header) Encode(w io.Writer) error {
	if h.Size < HeaderSize {
		return errors.Reason("header size %(size)d smaller than fixed portion %(fixed)d").
			D("size", h.Size).D("fixed", HeaderSize).Err()
	}
	wh := wireHeader{
		Magic:                 magicWord,
		Size:                  h.Size,
		Version:               h.Version,
		CompressedTOCLength:   h.CompressedTOCLength,
		UncompressedTOCLength: h.UncompressedTOCLength,
		Checksum:              uint32(h.Checksum),
	}
	if err := binary.Write(w, binary.BigEndian, wh); err != nil {
		return err
	}
	if h.Checksum == ChecksumOther {
		pad := int(h.Size) - HeaderSize
		if pad < len(h.OtherName)+1 {
			return errors.Reason("header size %(size)d too small for algorithm name %(name)q").
				D("size", h.Size).D("name", h.OtherName).Err()
		}
		buf := make([]byte, pad)
		copy(buf, h.OtherName)
		_, err := w.Write(buf)
		return err
	}
	return nil
}

// Decode reads and validates a Header from r.
func Decode(r io.Reader) (h Header, err error) {
	var wh wireHeader
	if err = binary.Read(r, binary.BigEndian, &wh); err != nil {
		return
	}
	if wh.Magic != magicWord {
		err = errors.Reason("invalid magic: %(magic)#x").D("magic", wh.Magic).Err()
		return
	}
	if wh.Size < HeaderSize {
		err = errors.Reason("invalid header size %(size)d: smaller than %(fixed)d").
			D("size", wh.Size).D("fixed", HeaderSize).Err()
		return
	}
	if wh.Version != Version {
		err = errors.Reason("unsupported version %(version)d").D("version", wh.Version).Err()
		return
	}
	h = Header{
		Size:                  wh.Size,
		Version:               wh.Version,
		CompressedTOCLength:   wh.CompressedTOCLength,
		UncompressedTOCLength: wh.UncompressedTOCLength,
		Checksum:              ChecksumScheme(wh.Checksum),
	}
	if err = h.Checksum.Valid(); err != nil {
		err = errors.Annotate(err).Reason("unsupported checksum algorithm").Err()
		return
	}
	if h.Checksum == ChecksumOther {
		pad := int(wh.Size) - HeaderSize
		buf := make([]byte, pad)
		if _, err = io.ReadFull(r, buf); err != nil {
			return
		}
		if i := indexNUL(buf); i >= 0 {
			h.OtherName = string(buf[:i])
		} else {
			h.OtherName = string(buf)
		}
	}
	return
}

func indexNUL(buf []byte) int {
	for i, b := range buf {
		if b == 0 {
			return i
		}
	}
	return -1
}
