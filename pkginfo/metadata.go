package pkginfo

// Metadata is the installer metadata extracted from a package's Distribution
// or PackageInfo entry.
type Metadata struct {
	ApplicationTitle              string
	DisplayName                   string
	Version                       string
	PrimaryBundleIdentifier       string
	PrimaryBundlePath             string
	PackageIDs                    []string
	MinimumOperatingSystemVersion string
	HostArchitectures             string
	AppBundles                    []AppBundle
}

// AppBundle is one application bundle named by a pkg-ref's bundle-version,
// or (for a bare PackageInfo) one of its bundles.
type AppBundle struct {
	ID              string
	ShortVersion    string
	AppLocationPath string
}
