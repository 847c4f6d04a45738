// Package export renders ground-truth labels as spreadsheets for clinical review.
package export

import (
	"bytes"
	"fmt"
	"time"

	"heartguard-alerts/internal/catalog"
	"heartguard-alerts/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Ground Truth"
	// ContentType xlsx MIME
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// GroundTruthHeader 导出表头
var GroundTruthHeader = []string{
	"Label ID",
	"Patient ID",
	"Event Type",
	"Event",
	"Onset",
	"Offset",
	"Annotated By",
	"Annotator Name",
	"Source",
	"Alert ID",
	"Note",
	"Created At",
}

var columnWidths = []float64{38, 20, 16, 18, 22, 22, 20, 20, 16, 38, 40, 22}

// cellTimeLayout Excel 单元格时间格式（UTC）
const cellTimeLayout = "2006-01-02 15:04:05"

// GroundTruthWorkbook 生成真值标注导出 Excel 文件
// labels 为空时只生成表头
func GroundTruthWorkbook(labels []domain.GroundTruthLabel) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range GroundTruthHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, l := range labels {
		row := i + 2 // 第1行是表头
		if err := f.SetSheetRow(SheetName, fmt.Sprintf("A%d", row), ptr(labelRow(l))); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func labelRow(l domain.GroundTruthLabel) []interface{} {
	offset := ""
	if off, ok := l.OffsetAt(); ok {
		offset = cellTime(off)
	}
	return []interface{}{
		l.ID(),
		l.PatientID(),
		string(l.EventType()),
		catalog.EventType(l.EventType()).Label,
		cellTime(l.Onset()),
		offset,
		l.AnnotatedByUserID(),
		l.AnnotatedByUserName(),
		catalog.Source(l.Source()).Label,
		l.AlertID(),
		l.Note(),
		cellTime(l.CreatedAt()),
	}
}

func cellTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(cellTimeLayout)
}

func ptr[T any](v T) *T { return &v }
