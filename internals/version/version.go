package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// SemVer is set at build time for releases.
//
//	-ldflags "-X github.com/Oudwins/walletgate/internals/version.SemVer=1.2.3"
var SemVer = "0.0.0-dev"

// BuiltAt is set at build time for releases.
var BuiltAt = ""

type Info struct {
	SemVer    string `json:"semver"`
	Revision  string `json:"revision,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	vcsOnce  sync.Once
	revision string
	dirty    bool
)

func Get() Info {
	vcsOnce.Do(func() {
		revision, dirty = vcsInfo(debug.ReadBuildInfo())
	})
	semver := strings.TrimSpace(SemVer)
	if semver == "" {
		semver = "0.0.0-dev"
	}
	return Info{
		SemVer:    semver,
		Revision:  revision,
		Dirty:     dirty,
		BuiltAt:   strings.TrimSpace(BuiltAt),
		GoVersion: runtime.Version(),
	}
}

// Version returns SemVer with the vcs revision as build metadata, e.g.
// 1.2.3+a1b2c3d4e5f6 or 0.0.0-dev+a1b2c3d4e5f6.dirty.
func Version() string {
	return Get().String()
}

func (i Info) String() string {
	if i.Revision == "" {
		return i.SemVer
	}
	meta := i.Revision
	if i.Dirty {
		meta += ".dirty"
	}
	if strings.Contains(i.SemVer, "+") {
		return i.SemVer + "." + meta
	}
	return i.SemVer + "+" + meta
}

func vcsInfo(info *debug.BuildInfo, ok bool) (rev12 string, modified bool) {
	if !ok || info == nil {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev12 = strings.TrimSpace(s.Value)
		case "vcs.modified":
			v := strings.TrimSpace(strings.ToLower(s.Value))
			modified = v == "true" || v == "1" || v == "yes"
		}
	}
	if len(rev12) > 12 {
		rev12 = rev12[:12]
	}
	return rev12, modified
}
