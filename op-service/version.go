package op_service

import "strings"

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
	Meta      = "dev"
)

// FormatVersion joins the release version with the short commit, the commit date and build meta.
func FormatVersion(version string, gitCommit string, gitDate string, meta string) string {
	parts := []string{version}
	if gitCommit != "" {
		parts = append(parts, gitCommit[:min(8, len(gitCommit))])
	}
	if gitDate != "" {
		parts = append(parts, gitDate)
	}
	if meta != "" {
		parts = append(parts, meta)
	}
	return strings.Join(parts, "-")
}
