package format

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reportengine/internal/datasource"
	"github.com/reportengine/internal/models"
)

func sampleResult() *datasource.Result {
	return &datasource.Result{
		Columns: []string{"id", "merchant", "amount"},
		Rows: [][]string{
			{"1", "acme", "10.50"},
			{"2", "globex, inc", "99.00"},
		},
	}
}

func TestEncodeCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	size, err := Encode(sampleResult(), models.FormatCSV, path)
	require.NoError(t, err)
	require.Greater(t, size, int64(0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id,merchant,amount\n1,acme,10.50\n2,\"globex, inc\",99.00\n", string(data))
}

func TestEncodeJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	_, err := Encode(sampleResult(), models.FormatJSON, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	require.Equal(t, "acme", records[0]["merchant"])
}

func TestEncodeXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	size, err := Encode(sampleResult(), models.FormatXLSX, path)
	require.NoError(t, err)
	require.Greater(t, size, int64(0))
}

func TestEncodeEmptyResultStillWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	result := &datasource.Result{Columns: []string{"id"}}
	_, err := Encode(result, models.FormatCSV, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "id\n", string(data))
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	_, err := Encode(sampleResult(), models.OutputFormat("parquet"), path)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestExtension(t *testing.T) {
	require.Equal(t, "csv", Extension(models.FormatCSV))
	require.Equal(t, "json", Extension(models.FormatJSON))
	require.Equal(t, "xlsx", Extension(models.FormatXLSX))
}
