package ingest

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
	"gopkg.in/yaml.v3"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

// FileProducer serves listings from a local JSON, YAML, CSV or XLSX file. Category
// and location narrow the file's records when given.
type FileProducer struct {
	Path string
}

// Name implements Producer.
func (p *FileProducer) Name() string { return "file" }

// Search implements Producer. Pages is ignored.
func (p *FileProducer) Search(_ context.Context, category, location string, _ int) ([]model.Record, error) {
	recs, err := LoadFile(p.Path)
	if err != nil {
		return nil, err
	}
	var out []model.Record
	for _, r := range recs {
		if category != "" && !strings.Contains(strings.ToLower(r.Category), strings.ToLower(category)) {
			continue
		}
		if location != "" && !matchesLocation(r, location) {
			continue
		}
		if r.Source == "" {
			r.Source = "file:" + filepath.Base(p.Path)
		}
		out = append(out, r)
	}
	return out, nil
}

// matchesLocation accepts "City, ST", "City" or "ST".
func matchesLocation(r model.Record, location string) bool {
	city, state, found := strings.Cut(location, ",")
	city, state = strings.TrimSpace(city), strings.TrimSpace(state)
	if !found {
		return strings.EqualFold(r.City, city) || strings.EqualFold(r.State, city)
	}
	return strings.EqualFold(r.City, city) && (state == "" || strings.EqualFold(r.State, state))
}

// LoadFile reads raw records from path. The format follows the extension:
// .json, .yaml/.yml, .csv or .xlsx. JSON and YAML accept either a list of
// records or an object with a "records" list; CSV and XLSX header rows name
// record fields.
func LoadFile(path string) ([]model.Record, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return decodeXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return decodeJSON(f)
	case ".yaml", ".yml":
		return decodeYAML(f)
	case ".csv":
		return decodeCSV(f)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", ext)
	}
}

func decodeJSON(r io.Reader) ([]model.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read json")
	}
	var list []model.Record
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Records []model.Record `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, eris.Wrap(err, "ingest: decode json")
	}
	return wrapped.Records, nil
}

func decodeYAML(r io.Reader) ([]model.Record, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "ingest: decode yaml")
	}
	if m, ok := doc.(map[string]any); ok {
		doc = m["records"]
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, eris.New("ingest: yaml must be a list of records or contain a records list")
	}

	out := make([]model.Record, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, eris.Errorf("ingest: yaml record %d is not a mapping", i)
		}
		rec, err := fromMap(m)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: yaml record %d", i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeCSV(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}

	var out []model.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read csv line %d", line)
		}
		rec, err := fromRow(header, row)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: csv line %d", line)
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeXLSX reads the first sheet of a workbook. Rows with no values are
// skipped.
func decodeXLSX(path string) ([]model.Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	if len(f.Sheets) == 0 || len(f.Sheets[0].Rows) == 0 {
		return nil, nil
	}

	rows := f.Sheets[0].Rows
	header := rowToStrings(rows[0])
	var out []model.Record
	for i, row := range rows[1:] {
		cells := rowToStrings(row)
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		rec, err := fromRow(header, cells)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: xlsx row %d", i+2)
		}
		out = append(out, rec)
	}
	return out, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// fromRow maps a tabular row onto record fields by header name. Empty cells
// are skipped.
func fromRow(header, row []string) (model.Record, error) {
	m := make(map[string]any, len(row))
	for i, v := range row {
		if i < len(header) && v != "" {
			m[strings.ToLower(strings.TrimSpace(header[i]))] = v
		}
	}
	return fromMap(m)
}

// fromMap builds a record from loosely typed values keyed by field name.
// Unknown keys are ignored; text values are parsed by the field's kind.
func fromMap(m map[string]any) (model.Record, error) {
	var rec model.Record
	for k, v := range m {
		if k == "id" {
			rec.ID = fmt.Sprint(v)
			continue
		}
		f := model.Field(k)
		if !f.Valid() {
			continue
		}
		val, err := coerce(f, v)
		if err != nil {
			return rec, err
		}
		if err := rec.Set(f, val); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func coerce(f model.Field, v any) (any, error) {
	if list, ok := v.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch f.Kind() {
	case model.KindFloat:
		n, err := strconv.ParseFloat(s, 64)
		return n, eris.Wrapf(err, "field %s", f)
	case model.KindInt:
		n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
		return n, eris.Wrapf(err, "field %s", f)
	case model.KindBool:
		b, err := strconv.ParseBool(s)
		return b, eris.Wrapf(err, "field %s", f)
	case model.KindStrings:
		var out []string
		for _, part := range strings.Split(s, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case model.KindTime:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse("2006-01-02", s)
		}
		return t, eris.Wrapf(err, "field %s", f)
	}
	return s, nil
}
