package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/coral-mesh/pulse/internal/safe"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

type profileRow struct {
	ID          string    `duckdb:"id,pk"`
	Timestamp   time.Time `duckdb:"timestamp"`
	TotalTime   float64   `duckdb:"total_time"`
	TotalMemory int64     `duckdb:"total_memory"`
	SampleRate  int       `duckdb:"sample_rate"`
	RequestURI  string    `duckdb:"request_uri"`
	UserAgent   string    `duckdb:"user_agent"`
	RequestType string    `duckdb:"request_type"`
	PageType    string    `duckdb:"page_type"`
	Method      string    `duckdb:"method"`
	QueryCount  int       `duckdb:"query_count"`
	PluginData  string    `duckdb:"plugin_data"`
	Checkpoints string    `duckdb:"checkpoints"`
}

type slowQueryRow struct {
	ID            string    `duckdb:"id,pk"`
	ProfileID     string    `duckdb:"profile_id"`
	SQL           string    `duckdb:"query_sql"`
	Hash          string    `duckdb:"query_hash"`
	ExecutionTime float64   `duckdb:"execution_time"`
	Caller        string    `duckdb:"caller"`
	RequestURI    string    `duckdb:"request_uri"`
	Timestamp     time.Time `duckdb:"timestamp"`
}

type assetRow struct {
	ID            string         `duckdb:"id,pk"`
	ProfileID     string         `duckdb:"profile_id"`
	Handle        string         `duckdb:"handle"`
	Type          string         `duckdb:"type"`
	Src           string         `duckdb:"src"`
	Source        string         `duckdb:"source"`
	SourceName    string         `duckdb:"source_name"`
	Version       string         `duckdb:"version"`
	Dependencies  string         `duckdb:"dependencies"`
	Size          sql.NullInt64  `duckdb:"size"`
	LoadOrder     int            `duckdb:"load_order"`
	InFooter      bool           `duckdb:"in_footer"`
	InlineContent sql.NullString `duckdb:"inline_content"`
	Timestamp     time.Time      `duckdb:"timestamp"`
}

func clampInt64(v uint64) int64 {
	if n, ok := safe.Uint64ToInt64(v); ok {
		return n
	}
	return math.MaxInt64
}

func unclampUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func newProfileRow(id string, p *pulse.Profile) (profileRow, error) {
	plugins := p.Plugins
	if plugins == nil {
		plugins = map[string]pulse.PluginTiming{}
	}
	pluginData, err := json.Marshal(plugins)
	if err != nil {
		return profileRow{}, fmt.Errorf("encode plugin data: %w", err)
	}
	checkpoints := p.Checkpoints
	if checkpoints == nil {
		checkpoints = []pulse.Checkpoint{}
	}
	cpData, err := json.Marshal(checkpoints)
	if err != nil {
		return profileRow{}, fmt.Errorf("encode checkpoints: %w", err)
	}

	return profileRow{
		ID:          id,
		Timestamp:   p.Timestamp.UTC(),
		TotalTime:   p.TotalTime,
		TotalMemory: clampInt64(p.TotalMemory),
		SampleRate:  p.SampleRate,
		RequestURI:  p.RequestURI,
		UserAgent:   p.UserAgent,
		RequestType: string(p.RequestType),
		PageType:    p.PageType,
		Method:      p.Method,
		QueryCount:  p.QueryCount,
		PluginData:  string(pluginData),
		Checkpoints: string(cpData),
	}, nil
}

func (r profileRow) profile() (pulse.Profile, error) {
	p := pulse.Profile{
		ID:          r.ID,
		Timestamp:   r.Timestamp,
		TotalTime:   r.TotalTime,
		TotalMemory: unclampUint64(r.TotalMemory),
		SampleRate:  r.SampleRate,
		RequestURI:  r.RequestURI,
		UserAgent:   r.UserAgent,
		RequestType: pulse.RequestType(r.RequestType),
		PageType:    r.PageType,
		Method:      r.Method,
		QueryCount:  r.QueryCount,
		Plugins:     map[string]pulse.PluginTiming{},
	}
	if r.PluginData != "" {
		if err := json.Unmarshal([]byte(r.PluginData), &p.Plugins); err != nil {
			return p, fmt.Errorf("decode plugin data of profile %s: %w", r.ID, err)
		}
	}
	if r.Checkpoints != "" {
		if err := json.Unmarshal([]byte(r.Checkpoints), &p.Checkpoints); err != nil {
			return p, fmt.Errorf("decode checkpoints of profile %s: %w", r.ID, err)
		}
	}
	return p, nil
}

func profilesFromRows(rows []profileRow) ([]pulse.Profile, error) {
	out := make([]pulse.Profile, 0, len(rows))
	for _, r := range rows {
		p, err := r.profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r slowQueryRow) slowQuery() pulse.SlowQuery {
	return pulse.SlowQuery{
		ProfileID:     r.ProfileID,
		SQL:           r.SQL,
		ExecutionTime: r.ExecutionTime,
		Caller:        r.Caller,
		RequestURI:    r.RequestURI,
		Timestamp:     r.Timestamp,
	}
}

func newAssetRow(id, profileID string, a pulse.Asset) assetRow {
	deps := a.Dependencies
	if deps == nil {
		deps = []string{}
	}
	depData, _ := json.Marshal(deps)

	row := assetRow{
		ID:           id,
		ProfileID:    profileID,
		Handle:       a.Handle,
		Type:         string(a.Type),
		Src:          a.Src,
		Source:       string(a.Source),
		SourceName:   a.SourceName,
		Version:      a.Version,
		Dependencies: string(depData),
		LoadOrder:    a.LoadOrder,
		InFooter:     a.InFooter,
		Timestamp:    a.Timestamp.UTC(),
	}
	if a.Size != nil {
		row.Size = sql.NullInt64{Int64: *a.Size, Valid: true}
	}
	if a.InlineContent != nil {
		row.InlineContent = sql.NullString{String: *a.InlineContent, Valid: true}
	}
	return row
}

func (r assetRow) asset() pulse.Asset {
	a := pulse.Asset{
		Handle:     r.Handle,
		Type:       pulse.AssetType(r.Type),
		Src:        r.Src,
		Source:     pulse.AssetSource(r.Source),
		SourceName: r.SourceName,
		Version:    r.Version,
		LoadOrder:  r.LoadOrder,
		InFooter:   r.InFooter,
		Timestamp:  r.Timestamp,
	}
	if r.Dependencies != "" {
		_ = json.Unmarshal([]byte(r.Dependencies), &a.Dependencies)
	}
	if len(a.Dependencies) == 0 {
		a.Dependencies = nil
	}
	if r.Size.Valid {
		size := r.Size.Int64
		a.Size = &size
	}
	if r.InlineContent.Valid {
		content := r.InlineContent.String
		a.InlineContent = &content
	}
	return a
}
