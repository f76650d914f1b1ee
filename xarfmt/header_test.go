package xarfmt

import (
	"bytes"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHeader(t *testing.T) {
	t.Parallel()

	Convey("Header", t, func() {
		h := Header{
			Size:                  HeaderSize,
			Version:               Version,
			CompressedTOCLength:   100,
			UncompressedTOCLength: 200,
			Checksum:              ChecksumSHA256,
		}

		Convey("round trip", func() {
			buf := &bytes.Buffer{}
			So(h.Encode(buf), ShouldBeNil)
			So(buf.Len(), ShouldEqual, HeaderSize)

			got, err := Decode(buf)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, h)
		})

		Convey("encodes big-endian", func() {
			buf := &bytes.Buffer{}
			So(h.Encode(buf), ShouldBeNil)
			b := buf.Bytes()
			So(b[:4], ShouldResemble, []byte("xar!"))
			// header size (28) as big-endian uint16
			So(b[4:6], ShouldResemble, []byte{0, 28})
			// version (1)
			So(b[6:8], ShouldResemble, []byte{0, 1})
			// compressed TOC length (100) as big-endian uint64
			So(b[8:16], ShouldResemble, []byte{0, 0, 0, 0, 0, 0, 0, 100})
		})

		Convey("bad magic", func() {
			buf := bytes.NewBuffer([]byte("XAR!"))
			binaryPad(buf)
			_, err := Decode(buf)
			So(err, ShouldErrLike, "invalid magic")
		})

		Convey("unsupported version", func() {
			h.Version = 99
			buf := &bytes.Buffer{}
			So(h.Encode(buf), ShouldBeNil)
			_, err := Decode(buf)
			So(err, ShouldErrLike, "unsupported version")
		})

		Convey("header size too small", func() {
			h.Size = 10
			buf := &bytes.Buffer{}
			err := h.Encode(buf)
			So(err, ShouldErrLike, "smaller than fixed portion")
		})

		Convey("other algorithm name", func() {
			h.Checksum = ChecksumOther
			h.OtherName = "blake3"
			h.Size = HeaderSize + uint16(len(h.OtherName)) + 1
			buf := &bytes.Buffer{}
			So(h.Encode(buf), ShouldBeNil)

			got, err := Decode(buf)
			So(err, ShouldBeNil)
			So(got.OtherName, ShouldEqual, "blake3")
		})
	})
}

// binaryPad pads buf out to HeaderSize bytes so Decode has enough bytes to
// attempt (and fail) a magic check without also tripping a short read.
func binaryPad(buf *bytes.Buffer) {
	for buf.Len() < HeaderSize {
		buf.WriteByte(0)
	}
}
