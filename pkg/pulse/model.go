package pulse

import (
	"time"
)

// RequestType is the coarse category of a profiled request.
type RequestType string

const (
	RequestTypePage  RequestType = "page"
	RequestTypeAsset RequestType = "asset"
	RequestTypeImage RequestType = "image"
	RequestTypeAPI   RequestType = "api"
	RequestTypeFeed  RequestType = "feed"
)

// AssetType is the kind of a front-end asset.
type AssetType string

const (
	AssetCSS AssetType = "css"
	AssetJS  AssetType = "js"
)

// AssetSource identifies who shipped an asset.
type AssetSource string

const (
	SourcePlugin AssetSource = "plugin"
	SourceTheme  AssetSource = "theme"
	SourceCore   AssetSource = "core"
)

// Profile is the full measurement bundle of one sampled request.
type Profile struct {
	ID          string                  `json:"id,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
	TotalTime   float64                 `json:"total_time"`
	TotalMemory uint64                  `json:"total_memory"`
	SampleRate  int                     `json:"sample_rate"`
	RequestURI  string                  `json:"request_uri"`
	UserAgent   string                  `json:"user_agent"`
	RequestType RequestType             `json:"request_type"`
	PageType    string                  `json:"page_type"`
	Method      string                  `json:"method"`
	QueryCount  int                     `json:"query_count"`
	Plugins     map[string]PluginTiming `json:"plugins"`
	Checkpoints []Checkpoint            `json:"checkpoints,omitempty"`

	// Children, persisted as separate rows.
	SlowQueries []SlowQuery `json:"slow_queries,omitempty"`
	Assets      []Asset     `json:"assets,omitempty"`
}

// PluginTiming accumulates load cost for one plugin, theme or MU plugin.
type PluginTiming struct {
	Name        string  `json:"name"`
	File        string  `json:"file,omitempty"`
	LoadTime    float64 `json:"load_time"`
	MemoryUsage uint64  `json:"memory_usage"`
	FilesLoaded int     `json:"files_loaded"`
}

// SlowQuery is a query whose execution time exceeded the slow threshold.
type SlowQuery struct {
	ProfileID     string    `json:"profile_id,omitempty"`
	SQL           string    `json:"sql"`
	ExecutionTime float64   `json:"execution_time"`
	Caller        string    `json:"caller"`
	RequestURI    string    `json:"request_uri"`
	Timestamp     time.Time `json:"timestamp"`
}

// Asset is a CSS or JS resource, or inline content, seen while rendering.
type Asset struct {
	Handle        string      `json:"handle"`
	Type          AssetType   `json:"type"`
	Src           string      `json:"src,omitempty"`
	Source        AssetSource `json:"source"`
	SourceName    string      `json:"source_name"`
	Version       string      `json:"version,omitempty"`
	Dependencies  []string    `json:"dependencies,omitempty"`
	Size          *int64      `json:"size"`
	LoadOrder     int         `json:"load_order"`
	InFooter      bool        `json:"in_footer"`
	InlineContent *string     `json:"inline_content,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Checkpoint is a named timestamp and memory marker at a lifecycle phase.
type Checkpoint struct {
	Phase      string    `json:"phase"`
	Time       time.Time `json:"time"`
	Elapsed    float64   `json:"elapsed"`
	Memory     uint64    `json:"memory"`
	MemoryUsed int64     `json:"memory_used"`
}

// ChildResult is the outcome of inserting one child row.
type ChildResult struct {
	Key string
	Err error
}

// BatchResult collects per-child outcomes of a best-effort batch insert.
type BatchResult struct {
	Results []ChildResult
}

// Add records the outcome for key.
func (b *BatchResult) Add(key string, err error) {
	b.Results = append(b.Results, ChildResult{Key: key, Err: err})
}

// Succeeded returns the number of children inserted.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the children whose insert failed.
func (b BatchResult) Failed() []ChildResult {
	var failed []ChildResult
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// FlushReport describes what happened when a session was flushed.
type FlushReport struct {
	ProfileID  string
	ProfileErr error
	Queries    BatchResult
	Assets     BatchResult

	// Fallback is true when the bundle went to the fallback cache instead of the store.
	Fallback    bool
	FallbackErr error

	Profile *Profile
}

// Stored reports whether the parent profile reached the store.
func (r FlushReport) Stored() bool {
	return r.ProfileErr == nil && r.ProfileID != ""
}
