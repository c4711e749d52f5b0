package main

import (
	"runtime/debug"

	"github.com/marcus/bam/cmd"
)

// Version is injected with -ldflags "-X main.Version=v1.2.3"
var Version = "dev"

// effectiveVersion prefers an injected version, then the module version
// recorded by go install, then the VCS revision.
func effectiveVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return v
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		return mv
	}
	if rev := vcsVersion(info.Settings); rev != "" {
		return rev
	}
	return v
}

// vcsVersion renders "devel+<rev12>[+dirty]" from build settings
func vcsVersion(settings []debug.BuildSetting) string {
	var rev string
	dirty := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return ""
	}
	v := "devel+" + rev[:min(len(rev), 12)]
	if dirty {
		v += "+dirty"
	}
	return v
}

func main() {
	cmd.SetVersion(effectiveVersion(Version))
	cmd.Execute()
}
