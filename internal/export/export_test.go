package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonathan/lead-collector/internal/types"
)

func sampleRecords() []types.BusinessRecord {
	return []types.BusinessRecord{
		{
			Name:     "Padaria Central",
			Phone:    "+55 41 3333-4444",
			Email:    "contato@padariacentral.com.br",
			Website:  "https://padariacentral.com.br",
			Address:  "Rua XV, 100, Curitiba",
			LinkedIn: "https://www.linkedin.com/company/padaria-central",
			Facebook: "https://facebook.com/padariacentral",
			WhatsApp: "5541999998888",
		},
		{Name: "Padaria Sem Site", Phone: "+55 41 1111-2222"},
	}
}

func TestWriteXLSX_Leads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, LeadsLayout(), sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Leads"}, f.GetSheetList())
	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"name", "phone", "email", "website", "address", "linkedin", "facebook", "whatsapp"}, rows[0])
	assert.Equal(t, []string{
		"Padaria Central",
		"+55 41 3333-4444",
		"contato@padariacentral.com.br",
		"https://padariacentral.com.br",
		"Rua XV, 100, Curitiba",
		"https://www.linkedin.com/company/padaria-central",
		"https://facebook.com/padariacentral",
		"5541999998888",
	}, rows[1])
	// trailing empty cells are trimmed by GetRows
	assert.Equal(t, []string{"Padaria Sem Site", "+55 41 1111-2222"}, rows[2])
}

func TestWriteXLSX_WhatsAppLayoutIsStyled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, WhatsAppLayout(), sampleRecords()[:1]))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheet := "WhatsApp Leads"
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Empresa", "Telefone", "Email", "Website", "Endereço", "WhatsApp", "LinkedIn", "Facebook"}, rows[0])
	assert.Equal(t, "5541999998888", rows[1][5])

	styleID, err := f.GetCellStyle(sheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, 1, style.Fill.Pattern)

	width, err := f.GetColWidth(sheet, "H")
	require.NoError(t, err)
	assert.Equal(t, float64(ColumnWidth), width)
}

func TestWriteXLSX_NoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, LeadsLayout(), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, LeadsLayout(), sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "name", rows[0][0])
	assert.Equal(t, "Rua XV, 100, Curitiba", rows[1][4], "commas must be quoted")
	assert.Equal(t, []string{"Padaria Sem Site", "+55 41 1111-2222", "", "", "", "", "", ""}, rows[2])
}

func TestWrite_DispatchesOnFormat(t *testing.T) {
	var csvBuf, xlsxBuf bytes.Buffer
	require.NoError(t, Write(&csvBuf, FormatCSV, LeadsLayout(), sampleRecords()))
	require.NoError(t, Write(&xlsxBuf, FormatXLSX, LeadsLayout(), sampleRecords()))

	assert.True(t, bytes.HasPrefix(csvBuf.Bytes(), []byte("name,phone")))
	assert.True(t, bytes.HasPrefix(xlsxBuf.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Error(t, Write(&csvBuf, Format("pdf"), LeadsLayout(), nil))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatXLSX, false},
		{"xlsx", FormatXLSX, false},
		{"Excel", FormatXLSX, false},
		{" CSV ", FormatCSV, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
}

func TestFileNames(t *testing.T) {
	at := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)

	assert.Equal(t, "leads_20260301_140509.xlsx", FileName("leads", FormatXLSX, at))
	assert.Equal(t, "whatsapp_leads_20260301_140509.xlsx", FileName("whatsapp_leads", FormatXLSX, at))
	assert.Equal(t, "leads_padaria_São_José_dos_Pinhais_20260301_140509.csv",
		SearchFileName("padaria", "São José dos Pinhais", FormatCSV, at))
	assert.Equal(t, "leads_material_de_construç_Rio_de_Janeiro_20260301_140509.xlsx",
		SearchFileName("material de construção civil", "Rio/de Janeiro", FormatXLSX, at))
}
