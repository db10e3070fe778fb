package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/jonathan/lead-collector/internal/types"
)

// History accumulates completed searches for the dashboard. It only grows;
// nothing is persisted across restarts.
type History struct {
	mu         sync.RWMutex
	searches   []types.SearchEntry
	totalLeads int
	segments   map[string]types.Segment
	now        func() time.Time
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{
		segments: make(map[string]types.Segment),
		now:      time.Now,
	}
}

// Record appends a completed search and returns its entry.
func (h *History) Record(niche, city string, results []types.BusinessRecord) types.SearchEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := types.SearchEntry{
		ID:           len(h.searches) + 1,
		Timestamp:    h.now().Format(time.RFC3339),
		Niche:        niche,
		City:         city,
		TotalResults: len(results),
		Results:      cloneRecords(results),
	}
	h.searches = append(h.searches, entry)
	h.totalLeads += len(results)

	key := types.SegmentKey(niche, city)
	segment, ok := h.segments[key]
	if !ok {
		segment = types.Segment{Niche: niche, City: city}
	}
	segment.TotalLeads += len(results)
	segment.Searches = append(segment.Searches, entry.ID)
	segment.Companies = append(segment.Companies, cloneRecords(results)...)
	h.segments[key] = segment

	return cloneEntry(entry)
}

// Snapshot returns a deep copy of the history.
func (h *History) Snapshot() types.SearchHistory {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := types.SearchHistory{
		Searches:   make([]types.SearchEntry, len(h.searches)),
		TotalLeads: h.totalLeads,
		Segments:   make(map[string]types.Segment, len(h.segments)),
	}
	for i, entry := range h.searches {
		snap.Searches[i] = cloneEntry(entry)
	}
	for key, segment := range h.segments {
		segment.Searches = append([]int(nil), segment.Searches...)
		segment.Companies = cloneRecords(segment.Companies)
		snap.Segments[key] = segment
	}
	return snap
}

// WhatsAppLeads lists every recorded company with a WhatsApp number,
// labelled with its segment. Segments are ordered by key.
func (h *History) WhatsAppLeads() []types.WhatsAppLead {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]string, 0, len(h.segments))
	for key := range h.segments {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	leads := make([]types.WhatsAppLead, 0)
	for _, key := range keys {
		for _, company := range h.segments[key].Companies {
			if company.WhatsApp != "" {
				leads = append(leads, types.NewWhatsAppLead(key, company))
			}
		}
	}
	return leads
}

// Len returns the number of recorded searches.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.searches)
}

func cloneEntry(e types.SearchEntry) types.SearchEntry {
	e.Results = cloneRecords(e.Results)
	return e
}

func cloneRecords(records []types.BusinessRecord) []types.BusinessRecord {
	out := make([]types.BusinessRecord, len(records))
	copy(out, records)
	return out
}
