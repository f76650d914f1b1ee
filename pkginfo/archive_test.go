package pkginfo_test

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/pkginfo"
	"github.com/igankevich/zar/xar"
)

const distributionFixture = `<installer-gui-script><title>Fixture App</title><product version="1.2.3"/></installer-gui-script>`

func TestFromArchive(t *testing.T) {
	Convey("FromArchive prefers Distribution over PackageInfo", t, func() {
		buf := &bytes.Buffer{}
		b := xar.NewBuilder(buf)
		So(b.AppendFile("Distribution", xar.FileMeta{}, bytes.NewReader([]byte(distributionFixture)), 0), ShouldBeNil)
		So(b.AppendFile("PackageInfo", xar.FileMeta{}, bytes.NewReader([]byte(`<plist version="1.0"><dict><key>identifier</key><string>com.example.Other</string></dict></plist>`)), 0), ShouldBeNil)
		So(b.Finish(), ShouldBeNil)

		ar, err := xar.Open(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)

		meta, err := pkginfo.FromArchive(ar)
		So(err, ShouldBeNil)
		So(meta, ShouldNotBeNil)
		So(meta.ApplicationTitle, ShouldEqual, "Fixture App")
		So(meta.Version, ShouldEqual, "1.2.3")
	})

	Convey("FromArchive returns nil, nil when neither entry is present", t, func() {
		buf := &bytes.Buffer{}
		b := xar.NewBuilder(buf)
		So(b.AppendFile("payload/data", xar.FileMeta{}, bytes.NewReader([]byte("x")), 0), ShouldBeNil)
		So(b.Finish(), ShouldBeNil)

		ar, err := xar.Open(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)

		meta, err := pkginfo.FromArchive(ar)
		So(err, ShouldBeNil)
		So(meta, ShouldBeNil)
	})
}
