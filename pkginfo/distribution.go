package pkginfo

import (
	"encoding/xml"

	"github.com/luci/luci-go/common/errors"
)

// distributionXML mirrors the well-known Distribution script's relevant
// elements; a real Distribution file is a JavaScript-embedding installer
// script, of which only a handful of elements carry metadata we extract.
type distributionXML struct {
	XMLName xml.Name `xml:"installer-gui-script"`
	Title   string   `xml:"title"`
	Options []struct {
		HostArchitectures string `xml:"hostArchitectures,attr"`
	} `xml:"options"`
	AllowedOSVersions struct {
		OSVersions []struct {
			Min string `xml:"min,attr"`
		} `xml:"os-version"`
	} `xml:"allowed-os-versions"`
	PkgRefs []struct {
		ID            string `xml:"id,attr"`
		Version       string `xml:"version,attr"`
		BundleVersion *struct {
			Bundles []struct {
				CFBundleShortVersionString string `xml:"CFBundleShortVersionString,attr"`
				ID                         string `xml:"id,attr"`
				Path                       string `xml:"path,attr"`
			} `xml:"bundle"`
		} `xml:"bundle-version"`
	} `xml:"pkg-ref"`
	Product struct {
		Version string `xml:"version,attr"`
	} `xml:"product"`
}

// ParseDistribution decodes a Distribution entry's raw XML bytes and derives
// installer metadata: title, supported architectures, minimum OS version,
// and every app bundle named by a pkg-ref's bundle-version.
func ParseDistribution(raw []byte) (*Metadata, error) {
	var d distributionXML
	if err := xml.Unmarshal(raw, &d); err != nil {
		return nil, errors.Annotate(err).Reason("decoding Distribution XML").Err()
	}

	hostArch := ""
	if len(d.Options) > 0 {
		hostArch = d.Options[0].HostArchitectures
	}
	minOS := ""
	if len(d.AllowedOSVersions.OSVersions) > 0 {
		minOS = d.AllowedOSVersions.OSVersions[0].Min
	}

	var appBundles []AppBundle
	primaryID, primaryPath := "", ""
	primaryFound := false
	seen := map[string]struct{}{}

	for _, pkg := range d.PkgRefs {
		if pkg.BundleVersion == nil {
			continue
		}
		for _, b := range pkg.BundleVersion.Bundles {
			if b.CFBundleShortVersionString == "" || b.ID == "" {
				continue
			}
			if _, dup := seen[b.ID]; !dup {
				seen[b.ID] = struct{}{}
				appBundles = append(appBundles, AppBundle{
					ID:              b.ID,
					ShortVersion:    b.CFBundleShortVersionString,
					AppLocationPath: b.Path,
				})
			}
			if !primaryFound && pkg.ID == b.ID {
				primaryID, primaryPath = pkg.ID, b.Path
				primaryFound = true
			}
		}
	}
	if !primaryFound && len(appBundles) > 0 {
		primaryID, primaryPath = appBundles[0].ID, appBundles[0].AppLocationPath
	}

	var packageIDs []string
	for _, ab := range appBundles {
		packageIDs = append(packageIDs, ab.ID)
	}

	version := d.Product.Version
	if len(appBundles) > 0 {
		version = appBundles[0].ShortVersion
	}

	return &Metadata{
		ApplicationTitle:              d.Title,
		DisplayName:                   d.Title,
		Version:                       version,
		PrimaryBundleIdentifier:       primaryID,
		PrimaryBundlePath:             primaryPath,
		PackageIDs:                    packageIDs,
		MinimumOperatingSystemVersion: minOS,
		HostArchitectures:             hostArch,
		AppBundles:                    appBundles,
	}, nil
}
