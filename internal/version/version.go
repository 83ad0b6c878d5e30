package version

import (
	"fmt"

	"github.com/earthboundkid/versioninfo/v2"
)

// GetVersion returns the short version string from the embedded build info
func GetVersion() string {
	return versioninfo.Short()
}

// GetFullVersion returns the module version with revision and commit time when known
func GetFullVersion() string {
	if versioninfo.Revision == "unknown" || versioninfo.Revision == "" {
		return versioninfo.Version
	}

	rev := versioninfo.Revision
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if versioninfo.DirtyBuild {
		rev += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, %s)", versioninfo.Version, rev, versioninfo.LastCommit.UTC().Format("2006-01-02"))
}
