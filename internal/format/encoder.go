// Package format turns tabular query results into report artifacts.
package format

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/reportengine/internal/datasource"
	"github.com/reportengine/internal/models"
)

// ErrEncoding marks a failure producing the output artifact.
var ErrEncoding = errors.New("encoding failed")

// Extension returns the artifact file extension for a format.
func Extension(f models.OutputFormat) string {
	switch f {
	case models.FormatXLSX:
		return "xlsx"
	case models.FormatJSON:
		return "json"
	default:
		return "csv"
	}
}

// Encode writes result to outputPath in the requested format and returns the
// artifact size in bytes.
func Encode(result *datasource.Result, target models.OutputFormat, outputPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	var err error
	switch target {
	case models.FormatCSV:
		err = encodeCSV(result, outputPath)
	case models.FormatJSON:
		err = encodeJSON(result, outputPath)
	case models.FormatXLSX:
		err = encodeXLSX(result, outputPath)
	default:
		return 0, fmt.Errorf("%w: unsupported output format %q", ErrEncoding, target)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return info.Size(), nil
}

func encodeCSV(result *datasource.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(result.Columns); err != nil {
		return err
	}
	for _, row := range result.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func encodeJSON(result *datasource.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records := make([]map[string]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		record := make(map[string]string, len(result.Columns))
		for i, col := range result.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		records = append(records, record)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func encodeXLSX(result *datasource.Result, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]interface{}, len(result.Columns))
	for i, c := range result.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range result.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
