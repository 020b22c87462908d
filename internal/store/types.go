// Package store implements the Task Store: the persistent mapping from
// task id to task record (spec section 4.1), plus the Global Settings
// document. Both are serialized whole-document to a single JSON artifact
// and written via write-temp-then-rename, grounded on the teacher's
// internal/config/write.go atomicWriteFile and internal/tokenfile's
// JSON-document-on-disk pattern.
package store

import "time"

// Kind distinguishes the two task record variants carried by the single
// tagged Task sum type (design note: heterogeneous task kinds map to tagged
// variants, not a type hierarchy).
type Kind string

const (
	KindSync Kind = "sync"
	KindStrm Kind = "strm"
)

// Status is the live status of a task, held in memory and never persisted
// structurally (spec section 4.1: "live-only fields ... held in memory
// only").
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusQueued  Status = "QUEUED"
	StatusRunning Status = "RUNNING"
	StatusError   Status = "ERROR"
)

// SuffixMode selects how the suffix filter list is interpreted.
type SuffixMode string

const (
	SuffixNone    SuffixMode = "NONE"
	SuffixInclude SuffixMode = "INCLUDE"
	SuffixExclude SuffixMode = "EXCLUDE"
)

// SuffixFilter holds the extension allow/deny list. Extensions are stored
// lowercase without a leading dot; the empty string represents
// extensionless files.
type SuffixFilter struct {
	Mode SuffixMode `json:"mode"`
	List []string   `json:"list,omitempty"`
}

// SizeFilter bounds file size; either bound may be nil for an open range.
type SizeFilter struct {
	MinBytes *int64 `json:"minBytes,omitempty"`
	MaxBytes *int64 `json:"maxBytes,omitempty"`
}

// DeleteTimeBase selects which instant a delete-delay is measured from.
type DeleteTimeBase string

const (
	DeleteBaseSyncComplete DeleteTimeBase = "SYNC_COMPLETE"
	DeleteBaseFileCreate   DeleteTimeBase = "FILE_CREATE"
)

// DeletePolicy controls the source-deletion pass run at the end of a normal
// sync (spec section 4.1, 4.3, 4.6).
type DeletePolicy struct {
	Enabled             bool           `json:"enabled"`
	DelayDays           int            `json:"delayDays"`
	TimeBase            DeleteTimeBase `json:"timeBase"`
	ParentDeletion      bool           `json:"parentDeletion"`
	ParentLevels        int            `json:"parentLevels"`
	ForceDeleteNonempty bool           `json:"forceDeleteNonempty"`
}

// RuleFlags is the union-of-rules per-file decision configuration (spec
// section 4.3). If all three are false, the engine behaves as if
// NotExists alone were true.
type RuleFlags struct {
	NotExists  bool `json:"notExists"`
	SizeDiff   bool `json:"sizeDiff"`
	MtimeNewer bool `json:"mtimeNewer"`
}

// StatsSnapshot is the final result of one run.
type StatsSnapshot struct {
	Total           int  `json:"total"`
	Success         int  `json:"success"`
	Skipped         int  `json:"skipped"`
	Failed          int  `json:"failed"`
	SkippedFiltered int  `json:"skippedFiltered"`
	ProtectionWarn  bool `json:"protectionWarn,omitempty"`
}

// ProgressSnapshot is the live, in-flight progress of a running task,
// published at least once per 500ms (spec section 4.3, 5).
type ProgressSnapshot struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Success int     `json:"success"`
	Skipped int     `json:"skipped"`
	Failed  int     `json:"failed"`
	Percent float64 `json:"percent"`
}

// StrmMode selects how .strm file content is constructed (spec section 4.4).
type StrmMode string

const (
	ModeAlistURL  StrmMode = "AlistURL"
	ModeRawURL    StrmMode = "RawURL"
	ModeAlistPath StrmMode = "AlistPath"
)

// ExtraFileFlags controls which companion files are materialized alongside
// .strm pointers.
type ExtraFileFlags struct {
	Subtitle bool `json:"subtitle"`
	Image    bool `json:"image"`
	Nfo      bool `json:"nfo"`
}

// SmartProtection is the STRM anti-mass-delete configuration (spec section
// 3, 4.4).
type SmartProtection struct {
	Threshold   int `json:"threshold"`
	GraceScans  int `json:"graceScans"`
}

// Task is the tagged sum type covering both sync and STRM task records
// (design note 1). Kind selects which of SyncFields / StrmFields is
// populated; the scheduler core dispatches on Kind.
type Task struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"type"`
	Cron    string `json:"cron"`
	Enabled bool   `json:"enabled"`

	Sync *SyncFields `json:"sync,omitempty"`
	Strm *StrmFields `json:"strm,omitempty"`

	LastRun *time.Time `json:"lastRun,omitempty"`
	NextRun *time.Time `json:"nextRun,omitempty"`

	// Live-only fields: never round-tripped through the persisted document,
	// but present on the in-memory record the scheduler/workers mutate.
	Status    Status            `json:"-"`
	LastStats StatsSnapshot     `json:"-"`
	Progress  ProgressSnapshot  `json:"-"`
}

// SyncFields holds the directory-sync-specific task fields (spec section 3).
type SyncFields struct {
	SourcePath      string       `json:"sourcePath"`
	TargetPath      string       `json:"targetPath"`
	ThreadCap       int          `json:"threadCap"`
	IsSlowStorage   bool         `json:"isSlowStorage"`
	Rules           RuleFlags    `json:"rules"`
	Size            SizeFilter   `json:"size"`
	Suffix          SuffixFilter `json:"suffix"`
	DeleteSource    DeletePolicy `json:"deleteSource"`
}

// StrmFields holds the STRM-generation-specific task fields (spec section 3).
type StrmFields struct {
	SourceDir        string          `json:"sourceDir"`
	TargetDir        string          `json:"targetDir"`
	Mode             StrmMode        `json:"mode"`
	Extra            ExtraFileFlags  `json:"extra"`
	MaxWorkers       int             `json:"maxWorkers"`
	WaitTimeSeconds  int             `json:"waitTimeSeconds"`
	SyncServerDelete bool            `json:"syncServerDelete"`
	SyncLocalDelete  bool            `json:"syncLocalDelete"`
	Suffix           SuffixFilter    `json:"suffix"`
	Protection       SmartProtection `json:"protection"`
}

// EffectiveThreadCap returns the thread cap actually honored by the sync
// worker: slow storage caps concurrency at 2 regardless of the configured
// value (spec section 3, 4.3).
func (f *SyncFields) EffectiveThreadCap() int {
	cap := f.ThreadCap
	if cap < 1 {
		cap = 1
	}

	if f.IsSlowStorage && cap > 2 {
		return 2
	}

	return cap
}
