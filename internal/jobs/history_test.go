package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-collector/internal/types"
)

func TestHistory_Record(t *testing.T) {
	h := NewHistory()
	h.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	first := h.Record("padaria", "Curitiba", []types.BusinessRecord{
		{Name: "Padaria Central", WhatsApp: "5541999998888"},
		{Name: "Padaria Sem Zap"},
	})
	h.Record("padaria", "Curitiba", []types.BusinessRecord{{Name: "Padaria Nova", WhatsApp: "5541988887777"}})
	h.Record("mercado", "Londrina", []types.BusinessRecord{{Name: "Mercado Bom", WhatsApp: "5543977776666"}})

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "2026-03-01T10:00:00Z", first.Timestamp)
	assert.Equal(t, 2, first.TotalResults)

	snap := h.Snapshot()
	assert.Len(t, snap.Searches, 3)
	assert.Equal(t, 4, snap.TotalLeads)
	require.Contains(t, snap.Segments, "padaria - Curitiba")

	segment := snap.Segments["padaria - Curitiba"]
	assert.Equal(t, 3, segment.TotalLeads)
	assert.Equal(t, []int{1, 2}, segment.Searches)
	assert.Len(t, segment.Companies, 3)
}

func TestHistory_SnapshotIsDeepCopy(t *testing.T) {
	h := NewHistory()
	results := []types.BusinessRecord{{Name: "Padaria Central"}}
	h.Record("padaria", "Curitiba", results)
	results[0].Name = "changed by caller"

	snap := h.Snapshot()
	snap.Searches[0].Results[0].Name = "changed by reader"
	seg := snap.Segments["padaria - Curitiba"]
	seg.Companies[0].Name = "changed by reader"

	again := h.Snapshot()
	assert.Equal(t, "Padaria Central", again.Searches[0].Results[0].Name)
	assert.Equal(t, "Padaria Central", again.Segments["padaria - Curitiba"].Companies[0].Name)
}

func TestHistory_WhatsAppLeads(t *testing.T) {
	h := NewHistory()
	h.Record("padaria", "Curitiba", []types.BusinessRecord{
		{Name: "Padaria Central", WhatsApp: "5541999998888", Email: "a@b.com"},
		{Name: "Padaria Sem Zap"},
	})
	h.Record("mercado", "Londrina", []types.BusinessRecord{{Name: "Mercado Bom", WhatsApp: "5543977776666"}})

	leads := h.WhatsAppLeads()
	require.Len(t, leads, 2)
	assert.Equal(t, "mercado - Londrina", leads[0].Segment)
	assert.Equal(t, "Mercado Bom", leads[0].Company)
	assert.Equal(t, types.WhatsAppLead{
		Segment:  "padaria - Curitiba",
		Company:  "Padaria Central",
		WhatsApp: "5541999998888",
		Email:    "a@b.com",
	}, leads[1])
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory()

	snap := h.Snapshot()
	assert.Empty(t, snap.Searches)
	assert.NotNil(t, snap.Segments)
	assert.Zero(t, snap.TotalLeads)
	assert.NotNil(t, h.WhatsAppLeads())
	assert.Empty(t, h.WhatsAppLeads())
}
