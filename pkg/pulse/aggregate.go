package pulse

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Aggregation thresholds.
const (
	DefaultAggregateLimit = 100

	slowPluginMs       = 50
	slowPluginListed   = 3
	highLoadTimeMs     = 1000
	elevatedLoadTimeMs = 500
	highMemoryBytes    = 100 * 1024 * 1024
	fewProfiles        = 10
)

// Confidence levels.
const (
	ConfidenceHigh    = "High"
	ConfidenceMedium  = "Medium"
	ConfidenceLow     = "Low"
	ConfidenceVeryLow = "Very Low"
)

// Insight kinds.
const (
	InsightInfo    = "info"
	InsightWarning = "warning"
	InsightError   = "error"
	InsightSuccess = "success"
)

// PluginAggregate is the rolling view of one plugin across profiles.
type PluginAggregate struct {
	Name         string  `json:"name" header:"PLUGIN"`
	AvgTime      float64 `json:"avg_time" header:"AVG TIME (MS)"`
	AvgMemory    float64 `json:"avg_memory" header:"AVG MEMORY (B)"`
	AvgFiles     float64 `json:"avg_files" header:"AVG FILES"`
	ProfileCount int     `json:"profile_count" header:"PROFILES"`
}

// AggregateView summarises the most recent profiles. It is computed on read and never stored.
type AggregateView struct {
	TotalProfiles int               `json:"total_profiles"`
	AvgLoadTime   float64           `json:"avg_load_time"`
	AvgMemory     float64           `json:"avg_memory_usage"`
	Plugins       []PluginAggregate `json:"plugins"`
	SampleRate    int               `json:"sample_rate"`
	Confidence    string            `json:"confidence_level"`
}

// Insight is a human-readable finding about an AggregateView.
type Insight struct {
	Type    string `json:"type" header:"TYPE"`
	Message string `json:"message" header:"MESSAGE"`
}

// ConfidenceLevel buckets a profile count.
func ConfidenceLevel(samples int) string {
	switch {
	case samples >= 100:
		return ConfidenceHigh
	case samples >= 30:
		return ConfidenceMedium
	case samples >= 10:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// Aggregate computes the rolling view of profiles, which must be ordered newest first.
// Plugin means are taken over the profiles that contain the plugin.
func Aggregate(profiles []Profile, sampleRate int) AggregateView {
	view := AggregateView{
		TotalProfiles: len(profiles),
		Plugins:       []PluginAggregate{},
		SampleRate:    sampleRate,
		Confidence:    ConfidenceLevel(len(profiles)),
	}
	if len(profiles) == 0 {
		return view
	}

	type totals struct {
		name   string
		time   float64
		memory float64
		files  float64
		count  int
	}

	var (
		totalTime   float64
		totalMemory float64
		order       []string
		byKey       = make(map[string]*totals)
	)

	for _, p := range profiles {
		totalTime += p.TotalTime
		totalMemory += float64(p.TotalMemory)

		keys := make([]string, 0, len(p.Plugins))
		for k := range p.Plugins {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			pt := p.Plugins[k]
			t, ok := byKey[k]
			if !ok {
				name := pt.Name
				if name == "" {
					name = k
				}
				t = &totals{name: name}
				byKey[k] = t
				order = append(order, k)
			}
			files := pt.FilesLoaded
			if files == 0 {
				files = 1
			}
			t.time += pt.LoadTime
			t.memory += float64(pt.MemoryUsage)
			t.files += float64(files)
			t.count++
		}
	}

	n := float64(len(profiles))
	view.AvgLoadTime = totalTime / n
	view.AvgMemory = totalMemory / n

	for _, k := range order {
		t := byKey[k]
		c := float64(t.count)
		view.Plugins = append(view.Plugins, PluginAggregate{
			Name:         t.name,
			AvgTime:      t.time / c,
			AvgMemory:    t.memory / c,
			AvgFiles:     t.files / c,
			ProfileCount: t.count,
		})
	}
	sort.SliceStable(view.Plugins, func(i, j int) bool {
		return view.Plugins[i].AvgTime > view.Plugins[j].AvgTime
	})

	return view
}

// Insights derives findings from an aggregate view.
func Insights(view AggregateView) []Insight {
	var out []Insight

	if view.TotalProfiles < fewProfiles {
		out = append(out, Insight{
			Type:    InsightInfo,
			Message: "Collecting more data for better accuracy. Current confidence: " + view.Confidence,
		})
	}

	var slow []string
	for _, p := range view.Plugins {
		if p.AvgTime > slowPluginMs {
			slow = append(slow, p.Name)
		}
	}
	if len(slow) > 0 {
		msg := "Slow plugins detected: " + strings.Join(slow[:min(len(slow), slowPluginListed)], ", ")
		if len(slow) > slowPluginListed {
			msg += fmt.Sprintf(" and %d more", len(slow)-slowPluginListed)
		}
		out = append(out, Insight{Type: InsightWarning, Message: msg})
	}

	avg := FormatNumber(view.AvgLoadTime, 2)
	switch {
	case view.AvgLoadTime > highLoadTimeMs:
		out = append(out, Insight{
			Type:    InsightError,
			Message: "Average total load time is high (" + avg + "ms). Consider optimizing plugins.",
		})
	case view.AvgLoadTime > elevatedLoadTimeMs:
		out = append(out, Insight{
			Type:    InsightWarning,
			Message: "Average load time could be improved (" + avg + "ms).",
		})
	default:
		out = append(out, Insight{
			Type:    InsightSuccess,
			Message: "Good performance! Average load time: " + avg + "ms",
		})
	}

	if view.AvgMemory > highMemoryBytes {
		out = append(out, Insight{
			Type:    InsightWarning,
			Message: "High memory usage: " + FormatBytes(view.AvgMemory),
		})
	}

	return out
}

// ExportHeader is the header row of the CSV export.
var ExportHeader = []string{"Plugin Name", "Average Load Time (ms)", "Average Memory (bytes)", "Profile Count", "Confidence"}

// ExportRows returns the CSV export of view, header first.
func ExportRows(view AggregateView) [][]string {
	rows := [][]string{append([]string(nil), ExportHeader...)}
	for _, p := range view.Plugins {
		rows = append(rows, []string{
			p.Name,
			FormatNumber(p.AvgTime, 2),
			strconv.FormatFloat(p.AvgMemory, 'f', -1, 64),
			strconv.Itoa(p.ProfileCount),
			view.Confidence,
		})
	}
	return rows
}

var byteUnits = []struct {
	size float64
	name string
}{
	{1 << 40, "TB"},
	{1 << 30, "GB"},
	{1 << 20, "MB"},
	{1 << 10, "KB"},
}

// FormatBytes renders a byte count in the largest fitting unit, rounded to an integer.
func FormatBytes(b float64) string {
	for _, u := range byteUnits {
		if b >= u.size {
			return fmt.Sprintf("%s %s", FormatNumber(b/u.size, 0), u.name)
		}
	}
	return fmt.Sprintf("%s B", FormatNumber(b, 0))
}

// FormatNumber renders v with the given decimals and comma thousands separators.
func FormatNumber(v float64, decimals int) string {
	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', decimals, 64)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
