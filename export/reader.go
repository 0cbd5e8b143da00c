// Package export locates and reads the spreadsheet exports the dashboard is
// built from.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnreadable wraps failures opening or decoding an export that exists.
	ErrUnreadable = errors.New("export: unreadable")
	// ErrInvalidKey is returned for unknown kinds or malformed range labels.
	ErrInvalidKey = errors.New("export: invalid key")
)

// Reader opens exports stored as <dir>/<kind>-<range>.xlsx.
type Reader struct {
	dir string
}

// NewReader returns a reader rooted at dir.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Path returns the conventional location of the export for key.
func (r *Reader) Path(key models.ExportKey) string {
	return filepath.Join(r.dir, key.FileName())
}

// ReadSheet returns the header and data rows of the export's first
// worksheet. A missing file yields an empty sheet and no error.
func (r *Reader) ReadSheet(key models.ExportKey) (models.Sheet, error) {
	if !key.Kind.Valid() || !config.ValidRange(key.Range) {
		return models.Sheet{}, fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	path := r.Path(key)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("export not found", slog.String("path", path))
			return models.Sheet{}, nil
		}
		return models.Sheet{}, fmt.Errorf("%w: stat %s: %v", ErrUnreadable, path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Sheet{}, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("close export", slog.String("path", path), slog.Any("error", err))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Sheet{}, nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return models.Sheet{}, fmt.Errorf("%w: rows %s: %v", ErrUnreadable, path, err)
	}
	return toSheet(rows), nil
}

// ReadExport returns the data rows after the header row.
func (r *Reader) ReadExport(key models.ExportKey) ([]models.RawRow, error) {
	sheet, err := r.ReadSheet(key)
	if err != nil {
		return nil, err
	}
	return sheet.Rows, nil
}

// ReadOrEmpty applies the fail-open policy: any read failure is logged and
// converted to an empty sheet. The error is returned for reporting only.
func (r *Reader) ReadOrEmpty(key models.ExportKey) (models.Sheet, error) {
	sheet, err := r.ReadSheet(key)
	if err != nil {
		slog.Error("reading export failed, serving empty result",
			slog.String("export", key.String()),
			slog.Any("error", err),
		)
		return models.Sheet{}, err
	}
	return sheet, nil
}

// Exists reports whether the export for key is present on disk.
func (r *Reader) Exists(key models.ExportKey) bool {
	info, err := os.Stat(r.Path(key))
	return err == nil && !info.IsDir()
}

// Available lists the exports present in the directory, sorted by kind then range.
func (r *Reader) Available() ([]models.ExportKey, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list exports: %w", err)
	}

	var keys []models.ExportKey
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Range < keys[j].Range
	})
	return keys, nil
}

func parseFileName(name string) (models.ExportKey, bool) {
	base, ok := strings.CutSuffix(name, ".xlsx")
	if !ok {
		return models.ExportKey{}, false
	}
	idx := strings.LastIndex(base, "-")
	if idx <= 0 {
		return models.ExportKey{}, false
	}
	key := models.ExportKey{Kind: models.RecordKind(base[:idx]), Range: base[idx+1:]}
	if !key.Kind.Valid() || !config.ValidRange(key.Range) {
		return models.ExportKey{}, false
	}
	return key, true
}

// toSheet splits off the header, drops blank rows and pads every data row to
// the header width so positional lookups never go out of range.
func toSheet(rows [][]string) models.Sheet {
	var sheet models.Sheet
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return sheet
	}

	sheet.Header = models.RawRow(rows[0])
	width := len(sheet.Header)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		padded := make(models.RawRow, max(width, len(row)))
		copy(padded, row)
		sheet.Rows = append(sheet.Rows, padded)
	}
	return sheet
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
