package pkginfo

import (
	"path/filepath"
	"strings"

	"github.com/luci/luci-go/common/errors"
	"howett.net/plist"
)

// packageInfoPlist mirrors the well-known PackageInfo file's plist schema.
type packageInfoPlist struct {
	Version         string            `plist:"version"`
	InstallLocation string            `plist:"install-location"`
	Identifier      string            `plist:"identifier"`
	Bundles         []bundleInfoPlist `plist:"bundles"`
}

type bundleInfoPlist struct {
	Path                       string `plist:"path"`
	ID                         string `plist:"id"`
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString"`
	CFBundleDisplayName        string `plist:"CFBundleDisplayName"`
	CFBundleName               string `plist:"CFBundleName"`
	LSMinimumSystemVersion     string `plist:"LSMinimumSystemVersion"`
}

// ParsePackageInfo decodes a PackageInfo entry's raw bytes (an XML, binary,
// or OpenStep plist — plist.Unmarshal auto-detects the format) and derives
// installer metadata from its bundle list.
func ParsePackageInfo(raw []byte) (*Metadata, error) {
	var p packageInfoPlist
	if _, err := plist.Unmarshal(raw, &p); err != nil {
		return nil, errors.Annotate(err).Reason("decoding PackageInfo plist").Err()
	}

	var (
		name, identifier, version, displayName, minOS string
		appBundles                                     []AppBundle
	)
	seen := map[string]struct{}{}

	for _, b := range p.Bundles {
		installPath := b.Path
		if p.InstallLocation != "" {
			installPath = filepath.Join(p.InstallLocation, installPath)
		}
		installPath = strings.TrimPrefix(installPath, "/")
		installPath = strings.TrimPrefix(installPath, "./")

		if base, ok := isAppPath(installPath); ok {
			identifier = sanitize(b.ID)
			name = base
			version = sanitize(b.CFBundleShortVersionString)
			displayName = sanitize(b.CFBundleDisplayName)
			minOS = sanitize(b.LSMinimumSystemVersion)
		}

		id := sanitize(b.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		appBundles = append(appBundles, AppBundle{
			ID:              id,
			ShortVersion:    sanitize(b.CFBundleShortVersionString),
			AppLocationPath: b.Path,
		})
	}

	if version == "" {
		version = sanitize(p.Version)
	}
	if identifier == "" {
		identifier = sanitize(p.Identifier)
	}
	if name == "" {
		parts := strings.Split(identifier, ".")
		if len(parts) > 0 {
			name = parts[len(parts)-1]
		}
	}

	var packageIDs []string
	for _, ab := range appBundles {
		packageIDs = append(packageIDs, ab.ID)
	}
	if len(packageIDs) == 0 && identifier != "" {
		packageIDs = append(packageIDs, identifier)
	}

	return &Metadata{
		ApplicationTitle:              name,
		DisplayName:                   displayName,
		Version:                       version,
		PrimaryBundleIdentifier:       identifier,
		PackageIDs:                    packageIDs,
		MinimumOperatingSystemVersion: minOS,
		AppBundles:                    appBundles,
	}, nil
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("\n", "", "\r", "", "\t", "").Replace(s)
}

// isAppPath reports whether installPath names a top-level bundle or one
// living directly under Applications/.
func isAppPath(installPath string) (string, bool) {
	dir, file := filepath.Split(installPath)
	if dir == "" && file == installPath {
		return file, true
	}
	if strings.HasSuffix(file, ".app") && dir == "Applications/" {
		return file, true
	}
	return "", false
}
