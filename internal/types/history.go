package types

import (
	"fmt"
	"strings"
)

// SearchEntry summarizes one completed search.
type SearchEntry struct {
	ID           int              `json:"id"`
	Timestamp    string           `json:"timestamp"`
	Niche        string           `json:"nicho"`
	City         string           `json:"cidade"`
	TotalResults int              `json:"total_results"`
	Results      []BusinessRecord `json:"results"`
}

// Segment accumulates the companies collected for one niche and city.
type Segment struct {
	Niche      string           `json:"nicho"`
	City       string           `json:"cidade"`
	TotalLeads int              `json:"total_leads"`
	Searches   []int            `json:"searches"`
	Companies  []BusinessRecord `json:"companies"`
}

// SearchHistory is the dashboard view of every search run by the process.
type SearchHistory struct {
	Searches   []SearchEntry      `json:"searches"`
	TotalLeads int                `json:"total_leads"`
	Segments   map[string]Segment `json:"segments"`
}

// SegmentKey builds the key that groups searches by niche and city.
func SegmentKey(niche, city string) string {
	return fmt.Sprintf("%s - %s", strings.TrimSpace(niche), strings.TrimSpace(city))
}

// WhatsAppLead is a record with a WhatsApp number, labelled with its segment.
type WhatsAppLead struct {
	Segment  string `json:"segmento"`
	Company  string `json:"empresa"`
	WhatsApp string `json:"whatsapp"`
	Phone    string `json:"telefone"`
	Email    string `json:"email"`
	Website  string `json:"site"`
	Address  string `json:"endereco"`
	LinkedIn string `json:"linkedin"`
	Facebook string `json:"facebook"`
}

// NewWhatsAppLead reshapes a record for the WhatsApp leads view.
func NewWhatsAppLead(segment string, r BusinessRecord) WhatsAppLead {
	return WhatsAppLead{
		Segment:  segment,
		Company:  r.Name,
		WhatsApp: r.WhatsApp,
		Phone:    r.Phone,
		Email:    r.Email,
		Website:  r.Website,
		Address:  r.Address,
		LinkedIn: r.LinkedIn,
		Facebook: r.Facebook,
	}
}
