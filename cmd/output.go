package cmd

import "strings"

// parseDestination splits a spec.md section 6 "file:/group" destination
// string into its path and group components, splitting at the last colon;
// everything after it, including any leading "/", is the group. A
// destination with no colon, or whose last colon is a drive-letter prefix,
// has no explicit group; defaultGroup is used instead.
func parseDestination(dest, defaultGroup string) (path, group string) {
	idx := strings.LastIndex(dest, ":")
	if idx < 0 {
		return dest, defaultGroup
	}
	// Guard against a Windows-style drive letter ("C:\...") being mistaken
	// for a group separator: only treat the colon as a separator when
	// something other than a single letter precedes it.
	if idx == 1 {
		return dest, defaultGroup
	}
	return dest[:idx], dest[idx+1:]
}
