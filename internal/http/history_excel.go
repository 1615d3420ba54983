package httpapi

import (
	"bytes"
	"fmt"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"

	"github.com/xuri/excelize/v2"
)

// HelpRequestHistoryHeader 历史请求导出表头
var HelpRequestHistoryHeader = []string{
	"Wearer",
	"Type",
	"Status",
	"Created At",
	"Responded At",
	"Resolved At",
	"Notes",
}

// GenerateHelpRequestHistoryExport 生成历史请求导出 Excel 文件
// requests: 已关闭请求列表（resolved / false_alarm），为空时只生成表头
func GenerateHelpRequestHistoryExport(requests []*domain.HelpRequest) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Help Requests"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range HelpRequestHistoryHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 列宽
	columnWidths := []float64{
		20, // Wearer
		15, // Type
		15, // Status
		22, // Created At
		22, // Responded At
		22, // Resolved At
		40, // Notes
	}
	for i := range HelpRequestHistoryHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 写入数据
	const timeLayout = "2006-01-02 15:04:05"
	for rowIdx, req := range requests {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）

		values := []any{
			req.WearerName,
			req.RequestType,
			req.Status,
			req.CreatedAt.UTC().Format(timeLayout),
			"",
			"",
			"",
		}
		if req.RespondedAt.Valid {
			values[4] = req.RespondedAt.Time.UTC().Format(timeLayout)
		}
		if req.ResolvedAt.Valid {
			values[5] = req.ResolvedAt.Time.UTC().Format(timeLayout)
		}
		if req.Notes.Valid {
			values[6] = req.Notes.String
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	f.Close()
	return buf.Bytes(), nil
}
