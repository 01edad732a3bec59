// Package export writes filtered lead records to CSV, JSON or XLSX files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/blok-blok-studio/leadscraper/internal/model"
	"github.com/blok-blok-studio/leadscraper/internal/store"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q (csv, json, xlsx)", s)
	}
}

// Lister is the store query an export reads from.
type Lister interface {
	ListRecords(ctx context.Context, filter store.RecordFilter) ([]model.Record, error)
}

// Options configures one export.
type Options struct {
	Format Format
	// Dir receives the file. Defaults to the working directory.
	Dir    string
	Filter store.RecordFilter
	// Now stamps the file name. Defaults to time.Now.
	Now func() time.Time
}

// Result describes a written export.
type Result struct {
	Path    string
	Records int
}

// Columns is the export column order: the record id followed by every
// record field in canonical order.
func Columns() []string {
	cols := make([]string, 0, len(model.Fields)+1)
	cols = append(cols, "id")
	for _, f := range model.Fields {
		cols = append(cols, string(f))
	}
	return cols
}

// FileName returns the timestamped file name for an export.
func FileName(f Format, at time.Time) string {
	return fmt.Sprintf("leads_%s.%s", at.Format("20060102_150405"), f)
}

// Run queries the records matching opts.Filter and writes them to a new file.
func Run(ctx context.Context, l Lister, opts Options) (*Result, error) {
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	recs, err := l.ListRecords(ctx, opts.Filter)
	if err != nil {
		return nil, eris.Wrap(err, "export: list records")
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "export: create %s", opts.Dir)
		}
	}
	path := filepath.Join(opts.Dir, FileName(opts.Format, now()))

	switch opts.Format {
	case FormatXLSX:
		err = WriteXLSX(path, recs)
	default:
		err = writeFile(path, func(w io.Writer) error {
			if opts.Format == FormatJSON {
				return WriteJSON(w, recs)
			}
			return WriteCSV(w, recs)
		})
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("export: written",
		zap.String("path", path),
		zap.String("format", string(opts.Format)),
		zap.Int("records", len(recs)),
	)
	return &Result{Path: path, Records: len(recs)}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// WriteCSV writes recs with a header row of Columns.
func WriteCSV(w io.Writer, recs []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	row := make([]string, len(model.Fields)+1)
	for i := range recs {
		row[0] = recs[i].ID
		for j, f := range model.Fields {
			row[j+1] = cellText(recs[i].Value(f))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteJSON writes recs as an indented JSON array.
func WriteJSON(w io.Writer, recs []model.Record) error {
	if recs == nil {
		recs = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(recs), "export: encode json")
}

// WriteXLSX writes recs to a single-sheet workbook at path. Numbers and
// booleans keep their cell types.
func WriteXLSX(path string, recs []model.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns() {
		header.AddCell().SetString(c)
	}
	for i := range recs {
		row := sheet.AddRow()
		row.AddCell().SetString(recs[i].ID)
		for _, fld := range model.Fields {
			setCell(row.AddCell(), recs[i].Value(fld))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
		c.SetString("")
	case float64:
		c.SetFloat(x)
	case int:
		c.SetInt(x)
	case bool:
		c.SetBool(x)
	default:
		c.SetString(cellText(v))
	}
}

// cellText renders a field value for flat formats. Lists join with "; ",
// the separator file ingestion splits on.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, "; ")
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
