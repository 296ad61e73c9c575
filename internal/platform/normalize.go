package platform

import "strings"

// familyMap maps distribution family strings from gopsutil to canonical names.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
}

// normalizeArch maps architecture aliases to GOARCH names.
// Unlike prebuilt-binary installs, a source build works on any architecture,
// so unknown values pass through unchanged.
func normalizeArch(arch string) string {
	switch strings.ToLower(arch) {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps distribution family strings to canonical family names.
func mapFamily(family string) string {
	normalized := strings.ToLower(strings.TrimSpace(family))
	if canonical, ok := familyMap[normalized]; ok {
		return canonical
	}
	return FamilyUnknown
}
