// Package version хранит сведения о сборке бинарника.
package version

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Значения подставляются при сборке:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/ordering/internal/version.version=v1.2.0"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// readBuildInfo подменяется в тестах.
var readBuildInfo = debug.ReadBuildInfo

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return GetVersion(), GetCommit(), GetDate() }

func GetVersion() string { return version }

// GetCommit возвращает коммит из -ldflags, а без него ревизию VCS,
// которую go build записывает в бинарник.
func GetCommit() string {
	if commit != "unknown" {
		return commit
	}
	if rev := buildSetting("vcs.revision"); rev != "" {
		return rev
	}
	return commit
}

func GetDate() string {
	if date != "unknown" {
		return date
	}
	if ts := buildSetting("vcs.time"); ts != "" {
		return ts
	}
	return date
}

func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", GetVersion(), GetCommit(), GetDate())
}

// Fields возвращает сведения о сборке для стартовой записи в лог.
func Fields() log.Fields {
	return log.Fields{
		"version": GetVersion(),
		"commit":  GetCommit(),
		"built":   GetDate(),
	}
}

func buildSetting(key string) string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
