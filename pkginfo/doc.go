// Package pkginfo extracts installer metadata from a macOS .pkg archive's
// well-known entries: the plain-XML Distribution script and the XML-plist
// PackageInfo file. Either may be absent; callers typically prefer
// Distribution and fall back to PackageInfo, per FromArchive.
package pkginfo
