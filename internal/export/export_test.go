package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clausewise/internal/domain"
	"clausewise/internal/export"
)

func sampleContracts(t *testing.T) []domain.Contract {
	t.Helper()
	analysis, err := json.Marshal(domain.AnalysisResult{
		KeyInsights:     domain.SummaryCategory("Standard lease.", "12 month term", "Rent 1000"),
		PotentialIssues: domain.PointsCategory("Uncapped late fee"),
		Recommendations: domain.PointsCategory(),
		FinancialTerms: &domain.FinancialTerms{
			PropertyValue:   "250000",
			AdditionalCosts: []domain.FlexString{"parking", "", "pets"},
		},
	})
	require.NoError(t, err)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Contract{
		{
			ID: uuid.New(), Name: "lease.pdf", DocumentType: domain.DocumentTypePDF,
			Summary: "A lease.", Analysis: analysis, ChunkCount: 3, ModelUsed: "gpt-4o",
			CreatedAt: created,
		},
		{
			ID: uuid.New(), Name: "broken", DocumentType: domain.DocumentTypeText,
			Analysis: json.RawMessage(`{"keyInsights":"oops"}`), CreatedAt: created,
		},
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, domain.ExportFormatCSV, sampleContracts(t)))

	require.True(t, bytes.HasPrefix(buf.Bytes(), export.BOM))
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(export.BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Contract Name", rows[0][0])
	assert.Equal(t, "Created At", rows[0][len(rows[0])-1])

	lease := rows[1]
	assert.Equal(t, "lease.pdf", lease[0])
	assert.Equal(t, "3", lease[2])
	assert.Equal(t, "Standard lease. | 12 month term; Rent 1000", lease[4])
	assert.Equal(t, "Uncapped late fee", lease[5])
	assert.Equal(t, "", lease[6])
	assert.Equal(t, "250000", lease[7])
	assert.Equal(t, "parking; pets", lease[9])
	assert.Equal(t, "2026-03-01T12:00:00Z", lease[12])

	// Undecodable analysis leaves the analysis columns empty.
	broken := rows[2]
	assert.Equal(t, "broken", broken[0])
	assert.Equal(t, "", broken[4])
}

func TestWrite_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, domain.ExportFormatXLSX, sampleContracts(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Contracts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Contract Name", rows[0][0])
	assert.Equal(t, "lease.pdf", rows[1][0])
	assert.Equal(t, "3", rows[1][2])
	assert.Equal(t, "Uncapped late fee", rows[1][5])
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := export.Write(&bytes.Buffer{}, "pdf", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidExportFormat)
}

func TestContentType(t *testing.T) {
	mt, ext := export.ContentType(domain.ExportFormatXLSX)
	assert.Contains(t, mt, "spreadsheetml")
	assert.Equal(t, "xlsx", ext)

	mt, ext = export.ContentType(domain.ExportFormatCSV)
	assert.Equal(t, "text/csv; charset=utf-8", mt)
	assert.Equal(t, "csv", ext)
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "contracts_2025-03-09.csv", export.Filename(domain.ExportFormatCSV, now))
	assert.Equal(t, "contracts_2025-03-09.xlsx", export.Filename(domain.ExportFormatXLSX, now))
}
