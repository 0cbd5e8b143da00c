package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadExportMissingFile(t *testing.T) {
	r := NewReader(t.TempDir())

	rows, err := r.ReadExport(models.ExportKey{Kind: models.KindVideos, Range: "7d"})

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadExportMissingDirectory(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope"))

	rows, err := r.ReadExport(models.ExportKey{Kind: models.KindProducts, Range: "30d"})

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadSheetReturnsHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "videos-7d.xlsx"), [][]any{
		{"Title", "Creator", "Views"},
		{"First", "@ana", 1500},
		{},
		{"Second", "@bia"},
	})
	r := NewReader(dir)

	sheet, err := r.ReadSheet(models.ExportKey{Kind: models.KindVideos, Range: "7d"})

	require.NoError(t, err)
	assert.Equal(t, models.RawRow{"Title", "Creator", "Views"}, sheet.Header)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, models.RawRow{"First", "@ana", "1500"}, sheet.Rows[0])
	assert.Equal(t, models.RawRow{"Second", "@bia", ""}, sheet.Rows[1], "rows are padded to header width")
}

func TestReadSheetCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "creators-7d.xlsx"), []byte("not a zip"), 0o644))
	r := NewReader(dir)
	key := models.ExportKey{Kind: models.KindCreators, Range: "7d"}

	_, err := r.ReadSheet(key)
	require.ErrorIs(t, err, ErrUnreadable)

	sheet, err := r.ReadOrEmpty(key)
	assert.Error(t, err)
	assert.Empty(t, sheet.Rows)
}

func TestReadSheetInvalidKey(t *testing.T) {
	r := NewReader(t.TempDir())

	_, err := r.ReadSheet(models.ExportKey{Kind: "videos", Range: "../../etc"})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = r.ReadSheet(models.ExportKey{Kind: "posts", Range: "7d"})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"videos-7d.xlsx", "new-products-30d.xlsx", "products-7d.xlsx", "notes.txt", "posts-7d.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	r := NewReader(dir)

	keys, err := r.Available()

	require.NoError(t, err)
	assert.Equal(t, []models.ExportKey{
		{Kind: models.KindNewProducts, Range: "30d"},
		{Kind: models.KindProducts, Range: "7d"},
		{Kind: models.KindVideos, Range: "7d"},
	}, keys)
	assert.True(t, r.Exists(models.ExportKey{Kind: models.KindVideos, Range: "7d"}))
	assert.False(t, r.Exists(models.ExportKey{Kind: models.KindCreators, Range: "7d"}))
}
