// Package types provides type definitions for structured data used throughout the lead collector.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// BusinessRecord represents one company discovered by the places lookup.
// Identity fields come from the lookup; contact fields are filled by enrichment.
type BusinessRecord struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Address string `json:"address"`
	PlaceID string `json:"place_id,omitempty"`

	Email    string `json:"email"`
	LinkedIn string `json:"linkedin"`
	Facebook string `json:"facebook"`
	WhatsApp string `json:"whatsapp"`
}

// HasName reports whether the record carries a usable name.
func (b BusinessRecord) HasName() bool {
	return strings.TrimSpace(b.Name) != ""
}

// NameKey returns the case-insensitive key used to deduplicate records.
func (b BusinessRecord) NameKey() string {
	return strings.ToLower(strings.TrimSpace(b.Name))
}

// WithContacts returns a copy of the record with the contact fields replaced.
func (b BusinessRecord) WithContacts(c Contacts) BusinessRecord {
	b.Email = c.Email
	b.LinkedIn = c.LinkedIn
	b.Facebook = c.Facebook
	b.WhatsApp = c.WhatsApp
	return b
}

// Contacts returns the contact fields of the record.
func (b BusinessRecord) Contacts() Contacts {
	return Contacts{
		Email:    b.Email,
		LinkedIn: b.LinkedIn,
		Facebook: b.Facebook,
		WhatsApp: b.WhatsApp,
	}
}

// Contacts holds the contact details scraped from a company website.
// An empty string means the field was not found.
type Contacts struct {
	Email    string `json:"email"`
	LinkedIn string `json:"linkedin"`
	Facebook string `json:"facebook"`
	WhatsApp string `json:"whatsapp"`
}

// Empty reports whether no contact field was found.
func (c Contacts) Empty() bool {
	return c == Contacts{}
}

// Found lists the labels of the populated fields, in a stable order.
func (c Contacts) Found() []string {
	var found []string
	if c.Email != "" {
		found = append(found, "email")
	}
	if c.LinkedIn != "" {
		found = append(found, "linkedin")
	}
	if c.Facebook != "" {
		found = append(found, "facebook")
	}
	if c.WhatsApp != "" {
		found = append(found, "whatsapp")
	}
	return found
}
