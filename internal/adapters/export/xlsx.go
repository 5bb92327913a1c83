// Package export renders the family directory and the follow-up roster as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

// ContentType is the MIME type of the generated workbooks
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02"

type column struct {
	header string
	width  float64
}

var familyColumns = []column{
	{"Family ID", 12},
	{"Head of Family", 24},
	{"Village", 18},
	{"Mobile", 16},
	{"Members", 10},
	{"Pregnant Woman", 16},
	{"Risk", 12},
	{"Follow-up Due", 14},
	{"Priority", 10},
	{"Registered On", 14},
}

var followUpColumns = []column{
	{"ID", 8},
	{"Patient", 24},
	{"Age", 8},
	{"Village", 18},
	{"Conditions", 28},
	{"Last Visit", 14},
	{"Due Date", 14},
	{"Status", 12},
	{"Completed", 12},
}

// FamilyDirectory renders directory rows in the order given
func FamilyDirectory(rows []domain.FamilySummary) ([]byte, error) {
	data := make([][]any, len(rows))
	for i, s := range rows {
		registered := ""
		if !s.RegisteredOn.IsZero() {
			registered = s.RegisteredOn.Format(dateLayout)
		}
		data[i] = []any{
			s.ID, s.HeadName, s.Village, s.Mobile, s.MembersCount,
			domain.YesNo(s.HasPregnantWoman), s.RiskLabel, domain.YesNo(s.FollowUpDue),
			s.Priority, registered,
		}
	}
	return writeWorkbook("Families", familyColumns, data)
}

// FollowUpRoster renders the NCD follow-up roster
func FollowUpRoster(items []*domain.FollowUp) ([]byte, error) {
	data := make([][]any, len(items))
	for i, f := range items {
		lastVisit := ""
		if !f.LastVisit.IsZero() {
			lastVisit = f.LastVisit.Format(dateLayout)
		}
		data[i] = []any{
			f.ID, f.PatientName, f.Age, f.Village, strings.Join(f.Conditions, ", "),
			lastVisit, f.DueDate.Format(dateLayout), string(f.Status), domain.YesNo(f.Completed),
		}
	}
	return writeWorkbook("Follow-ups", followUpColumns, data)
}

func writeWorkbook(sheet string, columns []column, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, c := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, c.header); err != nil {
			return nil, fmt.Errorf("failed to set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
