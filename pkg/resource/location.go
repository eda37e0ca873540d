// Package resource parses the URI schemes C-Star resources may be
// located by: a local filesystem path, an HTTPS/HTTP URL, or a git
// remote.
package resource

import "strings"

// Scheme identifies how a Resource's Location should be fetched.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeHTTPS Scheme = "https"
	SchemeHTTP  Scheme = "http"
	SchemeGit   Scheme = "git"
)

// ParseScheme splits a location into its scheme and the remaining path
// or URL. A location with no recognized scheme prefix is treated as a
// plain filesystem path.
func ParseScheme(location string) (Scheme, string) {
	switch {
	case strings.HasPrefix(location, "https://"):
		return SchemeHTTPS, location
	case strings.HasPrefix(location, "http://"):
		return SchemeHTTP, location
	case strings.HasPrefix(location, "git@"), strings.HasSuffix(location, ".git"):
		return SchemeGit, location
	case strings.HasPrefix(location, "file://"):
		return SchemeFile, strings.TrimPrefix(location, "file://")
	default:
		return SchemeFile, location
	}
}

// IsRemote reports whether a scheme requires a network fetch.
func (s Scheme) IsRemote() bool {
	return s == SchemeHTTPS || s == SchemeHTTP || s == SchemeGit
}
