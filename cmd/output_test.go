package cmd

import "testing"

func TestParseDestinationSplitsPathAndGroup(t *testing.T) {
	path, group := parseDestination("out.pfiredb:map", "registered")
	if path != "out.pfiredb" || group != "map" {
		t.Fatalf("got path=%q group=%q", path, group)
	}
}

func TestParseDestinationFallsBackToDefaultGroup(t *testing.T) {
	path, group := parseDestination("out.pfiredb", "registered")
	if path != "out.pfiredb" || group != "registered" {
		t.Fatalf("got path=%q group=%q", path, group)
	}
}

func TestParseDestinationIgnoresDriveLetterColon(t *testing.T) {
	path, group := parseDestination(`C:\out.pfiredb`, "registered")
	if path != `C:\out.pfiredb` || group != "registered" {
		t.Fatalf("got path=%q group=%q", path, group)
	}
}
