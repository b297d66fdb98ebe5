// Package version хранит сведения о сборке, подставляемые через -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build: сведения о сборке.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info возвращает сведения о текущей сборке.
func Info() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// String форматирует сведения для логов и флага -version.
func String() string {
	return fmt.Sprintf("resale version=%s commit=%s date=%s", version, commit, date)
}
