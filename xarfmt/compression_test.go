package xarfmt

import (
	"bytes"
	"io"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompressionScheme(t *testing.T) {
	t.Parallel()

	Convey("CompressionScheme", t, func() {
		Convey("Encoding strings", func() {
			So(CompressionNone.Encoding(), ShouldEqual, "application/octet-stream")
			So(CompressionGzip.Encoding(), ShouldEqual, "application/x-gzip")
			So(CompressionBzip2.Encoding(), ShouldEqual, "application/x-bzip2")
			So(CompressionXz.Encoding(), ShouldEqual, "application/x-xz")
		})

		Convey("ParseEncoding round trips Encoding", func() {
			for _, c := range []CompressionScheme{CompressionNone, CompressionGzip, CompressionXz} {
				got, err := ParseEncoding(c.Encoding())
				So(err, ShouldBeNil)
				So(got, ShouldEqual, c)
			}
		})

		Convey("ParseEncoding rejects unknown styles", func() {
			_, err := ParseEncoding("application/x-made-up")
			So(err, ShouldErrLike, "unsupported compression encoding")
		})

		Convey("gzip-labeled streams are actually zlib", func() {
			buf := &bytes.Buffer{}
			wc, err := CompressionGzip.Writer(buf, 9)
			So(err, ShouldBeNil)
			_, err = wc.Write([]byte("hello\n"))
			So(err, ShouldBeNil)
			So(wc.Close(), ShouldBeNil)

			rc, err := CompressionGzip.Reader(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)
			data, err := io.ReadAll(rc)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "hello\n")
		})

		Convey("xz round trip", func() {
			buf := &bytes.Buffer{}
			wc, err := CompressionXz.Writer(buf, 0)
			So(err, ShouldBeNil)
			_, err = wc.Write([]byte("hello xz\n"))
			So(err, ShouldBeNil)
			So(wc.Close(), ShouldBeNil)

			rc, err := CompressionXz.Reader(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)
			data, err := io.ReadAll(rc)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "hello xz\n")
		})

		Convey("bzip2 can be read but not written", func() {
			_, err := CompressionBzip2.Writer(&bytes.Buffer{}, 0)
			So(err, ShouldErrLike, "not supported")
		})

		Convey("none passes bytes through unmodified", func() {
			buf := &bytes.Buffer{}
			wc, err := CompressionNone.Writer(buf, 0)
			So(err, ShouldBeNil)
			_, err = wc.Write([]byte("raw"))
			So(err, ShouldBeNil)
			So(wc.Close(), ShouldBeNil)
			So(buf.String(), ShouldEqual, "raw")
		})
	})
}
