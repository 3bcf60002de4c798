// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mcpserver

import (
	"encoding/json"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
)

// ResourceUsageData is the report of get_resource_usage.
type ResourceUsageData struct {
	Timestamp      string         `json:"timestamp"`
	MemoryUsage    map[string]any `json:"memory_usage"`
	GCStats        map[string]any `json:"gc_stats"`
	SystemInfo     map[string]any `json:"system_info"`
	TrustStore     map[string]any `json:"trust_store"`
	DetailedMemory map[string]any `json:"detailed_memory,omitempty"`
	CRLCache       map[string]any `json:"crl_cache,omitempty"`
}

const mb = 1024 * 1024

// CollectResourceUsage gathers runtime statistics and the state of e.
func CollectResourceUsage(e *engine.Engine, detailed bool) *ResourceUsageData {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	data := &ResourceUsageData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MemoryUsage: map[string]any{
			"heap_alloc_mb":  float64(memStats.HeapAlloc) / mb,
			"heap_sys_mb":    float64(memStats.HeapSys) / mb,
			"heap_inuse_mb":  float64(memStats.HeapInuse) / mb,
			"heap_objects":   memStats.HeapObjects,
			"stack_inuse_mb": float64(memStats.StackInuse) / mb,
		},
		GCStats: map[string]any{
			"num_gc":          memStats.NumGC,
			"num_forced_gc":   memStats.NumForcedGC,
			"gc_cpu_fraction": memStats.GCCPUFraction,
		},
		SystemInfo: map[string]any{
			"go_version":    runtime.Version(),
			"go_os":         runtime.GOOS,
			"go_arch":       runtime.GOARCH,
			"num_cpu":       runtime.NumCPU(),
			"num_goroutine": runtime.NumGoroutine(),
		},
	}

	stats := e.Store().Stats()
	data.TrustStore = map[string]any{
		"acceptances":     stats.Acceptances,
		"revoked":         stats.Revoked,
		"pending_changes": stats.Dirty,
	}
	for kind, n := range stats.Records {
		data.TrustStore[kind+"_records"] = n
	}

	if !detailed {
		return data
	}

	data.DetailedMemory = map[string]any{
		"total_alloc_mb":    float64(memStats.TotalAlloc) / mb,
		"sys_mb":            float64(memStats.Sys) / mb,
		"mallocs":           memStats.Mallocs,
		"frees":             memStats.Frees,
		"gc_pause_total_ns": memStats.PauseTotalNs,
		"next_gc_mb":        float64(memStats.NextGC) / mb,
	}

	if cache := e.CRLCache(); cache != nil {
		m := cache.Metrics()
		data.CRLCache = map[string]any{
			"size":             m.Size,
			"max_size":         cache.Config().MaxSize,
			"total_memory_mb":  float64(m.TotalMemory) / mb,
			"hits":             m.Hits,
			"misses":           m.Misses,
			"evictions":        m.Evictions,
			"cleanups":         m.Cleanups,
			"hit_rate_percent": calculateHitRate(m.Hits, m.Misses),
		}
	}
	return data
}

// FormatResourceUsageAsJSON formats data as indented JSON.
func FormatResourceUsageAsJSON(data *ResourceUsageData) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal resource usage: %w", err)
	}
	return string(jsonData), nil
}

// FormatResourceUsageAsMarkdown formats data as markdown tables, one per
// section.
func FormatResourceUsageAsMarkdown(data *ResourceUsageData) string {
	var buf strings.Builder
	buf.WriteString("# Resource Usage Report\n\n")
	if t, err := time.Parse(time.RFC3339, data.Timestamp); err == nil {
		fmt.Fprintf(&buf, "**Generated:** %s\n\n", t.Format("January 2, 2006 at 3:04 PM MST"))
	}

	sections := []struct {
		title string
		data  map[string]any
	}{
		{"System Information", data.SystemInfo},
		{"Memory Usage", data.MemoryUsage},
		{"Garbage Collection", data.GCStats},
		{"Trust Store", data.TrustStore},
		{"Detailed Memory Statistics", data.DetailedMemory},
		{"CRL Cache Metrics", data.CRLCache},
	}
	for _, s := range sections {
		if s.data == nil {
			continue
		}
		fmt.Fprintf(&buf, "## %s\n\n", s.title)
		buf.WriteString(formatMarkdownTable(s.data))
		buf.WriteString("\n")
	}
	return buf.String()
}

// formatMarkdownTable renders data sorted by key.
func formatMarkdownTable(data map[string]any) string {
	keys := slices.Sorted(maps.Keys(data))

	var buf strings.Builder
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
	table.Header([]string{"Metric", "Value"})
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatValueForMarkdown(data[k], k)})
	}
	table.Bulk(rows)
	table.Render()
	return buf.String()
}

// formatValueForMarkdown formats a value for markdown display.
func formatValueForMarkdown(value any, key string) string {
	switch v := value.(type) {
	case float64:
		switch {
		case key == "gc_cpu_fraction" || key == "hit_rate_percent":
			return fmt.Sprintf("%.2f%%", v)
		case strings.HasSuffix(key, "_mb"):
			return fmt.Sprintf("%.2f MB", v)
		}
		return fmt.Sprintf("%.2f", v)
	case uint64:
		if strings.HasSuffix(key, "_ns") {
			return fmt.Sprintf("%.2f ms", float64(v)/1e6)
		}
	}
	return fmt.Sprintf("%v", value)
}

// calculateHitRate returns hits as a percentage of all lookups.
func calculateHitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}
