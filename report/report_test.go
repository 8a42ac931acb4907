package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/calendar"
	"github.com/artsia/hr-portal/report"
)

func row(id int64, t absence.Type, start, end string, duration int, status absence.Status) absence.ExportRow {
	return absence.ExportRow{
		Request: absence.Request{
			ID: id, Type: t, StartDate: calendar.MustParseDate(start), Duration: duration,
			Status: status, RequesterName: "Luca Verdi", Team: absence.TeamSviluppo,
		},
		EndDate: calendar.MustParseDate(end),
	}
}

func TestGenerateExcelReport(t *testing.T) {
	rows := []absence.ExportRow{
		row(1, absence.TypePermesso, "2025-03-12", "2025-03-12", 4, absence.StatusApproved),
		row(2, absence.TypeFerie, "2025-06-02", "2025-06-05", 3, absence.StatusPending),
		row(3, absence.TypeFerie, "2025-12-24", "2025-12-29", 2, absence.StatusRejected),
		row(4, absence.TypeFestivita, "2025-08-14", "2025-08-14", 1, absence.StatusApproved),
	}

	t.Run("one sheet per type in display order", func(t *testing.T) {
		buffer, err := report.GenerateExcelReport(rows)
		require.NoError(t, err)

		f, err := excelize.OpenReader(buffer)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Ferie", "Permesso", "Festività"}, f.GetSheetList())

		header, err := f.GetCellValue("Ferie", "B1")
		require.NoError(t, err)
		assert.Equal(t, "Dipendente", header)

		end, err := f.GetCellValue("Ferie", "E2")
		require.NoError(t, err)
		assert.Equal(t, "05/06/2025", end)

		status, err := f.GetCellValue("Ferie", "H3")
		require.NoError(t, err)
		assert.Equal(t, "Rifiutata", status)

		unit, err := f.GetCellValue("Permesso", "G2")
		require.NoError(t, err)
		assert.Equal(t, "ore", unit)
	})

	t.Run("no rows", func(t *testing.T) {
		buffer, err := report.GenerateExcelReport(nil)
		require.ErrorIs(t, err, report.ErrNoRows)
		assert.Nil(t, buffer)
	})
}
