package httpapi

import (
	"bytes"
	"fmt"

	"smart-industry/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sensorDataSheet = "Sensor Data"

// SensorDataExportHeader 导出表头
var SensorDataExportHeader = []string{
	"ID",
	"Device ID",
	"User ID",
	"Timestamp",
	"Temperature",
	"Humidity",
	"VOC",
	"CO",
	"PM1",
	"PM2.5",
	"PM10",
}

var sensorDataColumnWidths = []float64{10, 20, 20, 22, 14, 12, 10, 10, 10, 10, 10}

// GenerateSensorDataExport 生成采集数据导出 Excel 文件
// samples 为空时只生成表头
func GenerateSensorDataExport(samples []*domain.SensorSample) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，出错时再 Close

	index, err := f.NewSheet(sensorDataSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
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
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range SensorDataExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sensorDataSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sensorDataSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, width := range sensorDataColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sensorDataSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, s := range samples {
		row := []any{
			s.ID,
			s.DeviceID,
			s.WorkerID,
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Temperature,
			s.Humidity,
			s.VOC,
			s.CO,
			s.PM1,
			s.PM25,
			s.PM10,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sensorDataSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
