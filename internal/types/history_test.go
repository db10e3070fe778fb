package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentKey(t *testing.T) {
	assert.Equal(t, "padaria - Curitiba", SegmentKey("padaria", "Curitiba"))
	assert.Equal(t, "padaria - Curitiba", SegmentKey(" padaria ", "Curitiba "))
}

func TestNewWhatsAppLead(t *testing.T) {
	r := BusinessRecord{
		Name:     "Padaria Central",
		Phone:    "+55 41 3333-4444",
		WhatsApp: "5541999998888",
		Email:    "contato@padariacentral.com.br",
	}

	lead := NewWhatsAppLead("padaria - Curitiba", r)
	assert.Equal(t, "padaria - Curitiba", lead.Segment)
	assert.Equal(t, "Padaria Central", lead.Company)
	assert.Equal(t, "5541999998888", lead.WhatsApp)
	assert.Equal(t, "+55 41 3333-4444", lead.Phone)
	assert.Equal(t, "contato@padariacentral.com.br", lead.Email)
}
