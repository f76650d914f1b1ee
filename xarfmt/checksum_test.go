package xarfmt

import (
	"crypto/sha256"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestChecksumScheme(t *testing.T) {
	t.Parallel()

	Convey("ChecksumScheme", t, func() {
		Convey("Valid", func() {
			So(ChecksumSHA256.Valid(), ShouldBeNil)
			So(ChecksumScheme(99).Valid(), ShouldErrLike, "unknown checksum scheme")
		})

		Convey("DigestLength", func() {
			So(ChecksumSHA1.DigestLength(), ShouldEqual, 20)
			So(ChecksumMD5.DigestLength(), ShouldEqual, 16)
			So(ChecksumSHA256.DigestLength(), ShouldEqual, 32)
			So(ChecksumSHA512.DigestLength(), ShouldEqual, 64)
			So(ChecksumNone.DigestLength(), ShouldEqual, 0)
		})

		Convey("New computes the real digest", func() {
			h, err := ChecksumSHA256.New()
			So(err, ShouldBeNil)
			h.Write([]byte("hello\n"))
			want := sha256.Sum256([]byte("hello\n"))
			So(h.Sum(nil), ShouldResemble, want[:])
		})

		Convey("ChecksumOther cannot be constructed", func() {
			_, err := ChecksumOther.New()
			So(err, ShouldErrLike, "cannot construct a digest")
		})

		Convey("ParseChecksumStyle", func() {
			s, err := ParseChecksumStyle("sha256")
			So(err, ShouldBeNil)
			So(s, ShouldEqual, ChecksumSHA256)

			_, err = ParseChecksumStyle("blake3")
			So(err, ShouldErrLike, "unknown checksum style")
		})
	})
}
