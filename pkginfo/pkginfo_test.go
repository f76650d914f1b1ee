package pkginfo

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const samplePackageInfo = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>identifier</key>
	<string>com.example.pkg.MyApp</string>
	<key>version</key>
	<string>1.0</string>
	<key>install-location</key>
	<string>/Applications</string>
	<key>bundles</key>
	<array>
		<dict>
			<key>id</key>
			<string>com.example.MyApp</string>
			<key>path</key>
			<string>MyApp.app</string>
			<key>CFBundleShortVersionString</key>
			<string>2.1.0</string>
			<key>CFBundleDisplayName</key>
			<string>My App</string>
			<key>LSMinimumSystemVersion</key>
			<string>12.0</string>
		</dict>
	</array>
</dict>
</plist>
`

const sampleDistribution = `<?xml version="1.0" encoding="utf-8"?>
<installer-gui-script minSpecVersion="1">
    <title>My App</title>
    <options hostArchitectures="x86_64,arm64"/>
    <allowed-os-versions>
        <os-version min="12.0"/>
    </allowed-os-versions>
    <pkg-ref id="com.example.MyApp" version="2.1.0">
        <bundle-version>
            <bundle CFBundleShortVersionString="2.1.0" id="com.example.MyApp" path="MyApp.app"/>
        </bundle-version>
    </pkg-ref>
    <product version="2.1.0"/>
</installer-gui-script>
`

func TestParsePackageInfo(t *testing.T) {
	Convey("a PackageInfo plist yields bundle metadata", t, func() {
		meta, err := ParsePackageInfo([]byte(samplePackageInfo))
		So(err, ShouldBeNil)
		So(meta.ApplicationTitle, ShouldEqual, "MyApp.app")
		So(meta.Version, ShouldEqual, "2.1.0")
		So(meta.PrimaryBundleIdentifier, ShouldEqual, "com.example.MyApp")
		So(meta.DisplayName, ShouldEqual, "My App")
		So(meta.MinimumOperatingSystemVersion, ShouldEqual, "12.0")
		So(meta.PackageIDs, ShouldResemble, []string{"com.example.MyApp"})
	})

	Convey("a PackageInfo with no matching bundle path falls back to package-level fields", t, func() {
		meta, err := ParsePackageInfo([]byte(`<?xml version="1.0"?>
<plist version="1.0"><dict>
<key>identifier</key><string>com.example.Fallback</string>
<key>version</key><string>9.9</string>
</dict></plist>`))
		So(err, ShouldBeNil)
		So(meta.PrimaryBundleIdentifier, ShouldEqual, "com.example.Fallback")
		So(meta.Version, ShouldEqual, "9.9")
		So(meta.ApplicationTitle, ShouldEqual, "Fallback")
		So(meta.PackageIDs, ShouldResemble, []string{"com.example.Fallback"})
	})
}

func TestParseDistribution(t *testing.T) {
	Convey("a Distribution script yields title, arch, and bundle metadata", t, func() {
		meta, err := ParseDistribution([]byte(sampleDistribution))
		So(err, ShouldBeNil)
		So(meta.ApplicationTitle, ShouldEqual, "My App")
		So(meta.HostArchitectures, ShouldEqual, "x86_64,arm64")
		So(meta.MinimumOperatingSystemVersion, ShouldEqual, "12.0")
		So(meta.PrimaryBundleIdentifier, ShouldEqual, "com.example.MyApp")
		So(meta.PrimaryBundlePath, ShouldEqual, "MyApp.app")
		So(meta.Version, ShouldEqual, "2.1.0")
		So(len(meta.AppBundles), ShouldEqual, 1)
	})

	Convey("a Distribution with no pkg-ref bundles falls back to the product version", t, func() {
		meta, err := ParseDistribution([]byte(`<installer-gui-script><title>Empty</title><product version="3.0"/></installer-gui-script>`))
		So(err, ShouldBeNil)
		So(meta.Version, ShouldEqual, "3.0")
		So(meta.AppBundles, ShouldBeEmpty)
	})
}
