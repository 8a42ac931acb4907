// Package report renders absence exports as xlsx workbooks.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/artsia/hr-portal/absence"
)

var ErrNoRows = errors.New("failed to generate report, no absences were provided")

// ContentType of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"ID", "Dipendente", "Team", "Inizio", "Fine", "Durata", "Unità", "Stato", "Motivo"}

var statusLabels = map[absence.Status]string{
	absence.StatusPending:  "In attesa",
	absence.StatusApproved: "Approvata",
	absence.StatusRejected: "Rifiutata",
}

// Generator holds the state for one workbook.
type Generator struct {
	file *excelize.File
}

func NewGenerator() *Generator {
	return &Generator{file: excelize.NewFile()}
}

// GenerateExcelReport writes one sheet per absence type, in the display
// order of absence.AllTypes, with one row per request.
func GenerateExcelReport(rows []absence.ExportRow) (*bytes.Buffer, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	byType := make(map[absence.Type][]absence.ExportRow)
	for _, row := range rows {
		byType[row.Type] = append(byType[row.Type], row)
	}

	gen := NewGenerator()
	defer gen.file.Close()

	for _, t := range absence.AllTypes {
		if len(byType[t]) == 0 {
			continue
		}
		if err := gen.addSheet(t, byType[t]); err != nil {
			return nil, err
		}
	}

	if idx, _ := gen.file.GetSheetIndex("Sheet1"); idx != -1 {
		if err := gen.file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet 'Sheet1': %w", err)
		}
	}
	gen.file.SetActiveSheet(0)

	buffer, err := gen.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buffer, nil
}

func (g *Generator) addSheet(t absence.Type, rows []absence.ExportRow) error {
	sheet := truncateSheetName(t.Label())
	if _, err := g.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet '%s': %w", sheet, err)
	}
	if err := g.setupSheet(sheet, string(t), len(rows)); err != nil {
		return fmt.Errorf("failed to setup sheet '%s': %w", sheet, err)
	}
	for i, row := range rows {
		if err := g.addRow(sheet, i+2, row); err != nil { // row 1 is the header
			return fmt.Errorf("failed to add row %d: %w", i+2, err)
		}
	}
	return nil
}

func (g *Generator) setupSheet(sheet, tableSuffix string, rowCount int) error {
	headerStyle, err := g.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2E6B5E"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center", Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err = g.file.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err = g.file.SetCellStyle(sheet, "A1", "I1", headerStyle); err != nil {
		return fmt.Errorf("failed to style headers: %w", err)
	}

	widths := map[string]float64{
		"A": 8, "B": 28, "C": 18, "D": 12, "E": 12, "F": 10, "G": 10, "H": 12, "I": 40,
	}
	for col, width := range widths {
		if err = g.file.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	return g.file.AddTable(sheet, &excelize.Table{
		Range:     fmt.Sprintf("A1:I%d", rowCount+1),
		Name:      "table_" + tableSuffix,
		StyleName: "TableStyleMedium2",
	})
}

func (g *Generator) addRow(sheet string, rowNum int, row absence.ExportRow) error {
	values := []any{
		row.ID,
		row.RequesterName,
		string(row.Team),
		row.StartDate.Time().Format("02/01/2006"),
		row.EndDate.Time().Format("02/01/2006"),
		row.Duration,
		row.Unit().Italian(row.Duration),
		statusLabel(row.Status),
		row.Reason,
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return g.file.SetSheetRow(sheet, cell, &values)
}

func statusLabel(s absence.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// truncateSheetName keeps sheet names within Excel's 31 character limit.
func truncateSheetName(name string) string {
	if utf8.RuneCountInString(name) > 31 {
		return string([]rune(name)[:31])
	}
	return name
}
