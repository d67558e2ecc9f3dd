// Package savedlog remembers where the most recently finalized session log
// lives and how it is classified, and copies it into an export tree.
package savedlog

import (
	"errors"
	"strings"
	"sync/atomic"
)

// Folder defaults applied when the session did not classify the log.
const (
	DefaultRootFolder       = "Other"
	DefaultBossFolder       = "Unknown"
	DefaultDifficultyFolder = "None"
)

var (
	ErrNoSavedLog = errors.New("savedlog: no log has been saved")
	ErrNoSource   = errors.New("savedlog: source path is empty")
)

// Info describes one finalized log.
type Info struct {
	SourcePath       string `json:"source_path"`
	RootFolder       string `json:"root_folder"`
	BossFolder       string `json:"boss_folder"`
	DifficultyFolder string `json:"difficulty_folder"`
}

// Normalize returns a copy with empty or unsafe folders replaced by defaults.
func (i Info) Normalize() Info {
	i.RootFolder = folder(i.RootFolder, DefaultRootFolder)
	i.BossFolder = folder(i.BossFolder, DefaultBossFolder)
	i.DifficultyFolder = folder(i.DifficultyFolder, DefaultDifficultyFolder)
	return i
}

// FileName is the base name of SourcePath, accepting either separator so logs
// recorded on Windows resolve the same everywhere.
func (i Info) FileName() string {
	p := i.SourcePath
	if idx := strings.LastIndexAny(p, `/\`); idx >= 0 {
		p = p[idx+1:]
	}
	return p
}

// folder keeps a classification name to a single path element.
func folder(name, def string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return def
	}
	return name
}

// Index holds the snapshot of the last saved log for this process. Safe for
// concurrent use; readers never observe a partially written value.
type Index struct {
	current atomic.Pointer[Info]
}

// Set replaces the snapshot. info is normalized first.
func (x *Index) Set(info Info) {
	n := info.Normalize()
	x.current.Store(&n)
}

// TryGet returns the last snapshot, or false if none was recorded.
func (x *Index) TryGet() (Info, bool) {
	p := x.current.Load()
	if p == nil {
		return Info{}, false
	}
	return *p, true
}
