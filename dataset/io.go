package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// ReadOptions tells the loaders how to interpret a header row.
type ReadOptions struct {
	// Target is the name of the target column. Required.
	Target string
	// Categorical lists columns to read as categorical levels.
	Categorical []string
	// Exclude lists columns to ignore entirely.
	Exclude []string
	// Sheet is the XLSX worksheet; empty means the first sheet.
	Sheet string
}

// index columns written by dataframe libraries ("", "Unnamed: 0")
var unnamedColumn = regexp.MustCompile(`^(Unnamed: ?\d+)?$`)

// IsIndexColumn reports whether a header names an unnamed index column.
func IsIndexColumn(header string) bool {
	return unnamedColumn.MatchString(strings.TrimSpace(header))
}

// ReadFile loads a .csv or .xlsx file according to its extension.
func ReadFile(path string, opts ReadOptions) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", path)
		}
		defer f.Close()
		return ReadCSV(f, opts)
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return nil, errors.NewConfigurationError("data.path", "unsupported file type, expected .csv or .xlsx", path)
	}
}

// ReadCSV parses a CSV stream with a header row.
func ReadCSV(r io.Reader, opts ReadOptions) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV")
	}
	return fromRecords(rows, opts)
}

// ReadXLSX reads one worksheet of an Excel workbook.
func ReadXLSX(path string, opts ReadOptions) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", path)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	return fromRecords(rows, opts)
}

func isNA(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// fromRecords converts string records into a Dataset. Categorical levels
// are numbered in order of first appearance.
func fromRecords(rows [][]string, opts ReadOptions) (*Dataset, error) {
	if strings.TrimSpace(opts.Target) == "" {
		return nil, errors.NewConfigurationError("target", "target column name is required", opts.Target)
	}
	if len(rows) < 2 {
		return nil, errors.NewValueError("dataset.Read", "file must have at least a header row and one data row")
	}

	categorical := toSet(opts.Categorical)
	exclude := toSet(opts.Exclude)

	targetCol := -1
	var featureCols []int
	var schema Schema
	schema.Target = opts.Target
	for j, h := range rows[0] {
		h = strings.TrimSpace(h)
		switch {
		case h == opts.Target:
			targetCol = j
		case IsIndexColumn(h):
		case exclude[h]:
		default:
			kind := Continuous
			if categorical[h] {
				kind = Categorical
			}
			schema.Columns = append(schema.Columns, Column{Name: h, Kind: kind})
			featureCols = append(featureCols, j)
		}
	}
	if targetCol < 0 {
		return nil, errors.NewConfigurationError("target", "target column not found in header", opts.Target)
	}

	levelIndex := make([]map[string]int, len(featureCols))
	x := make([][]float64, 0, len(rows)-1)
	y := make([]float64, 0, len(rows)-1)
	for i, rec := range rows[1:] {
		cell := func(j int) string {
			if j < len(rec) {
				return strings.TrimSpace(rec[j])
			}
			return ""
		}

		row := make([]float64, len(featureCols))
		for k, j := range featureCols {
			s := cell(j)
			if isNA(s) {
				row[k] = math.NaN()
				continue
			}
			if schema.Columns[k].Kind == Categorical {
				if levelIndex[k] == nil {
					levelIndex[k] = make(map[string]int)
				}
				code, ok := levelIndex[k][s]
				if !ok {
					code = len(schema.Columns[k].Levels)
					levelIndex[k][s] = code
					schema.Columns[k].Levels = append(schema.Columns[k].Levels, s)
				}
				row[k] = float64(code)
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %q", i+1, schema.Columns[k].Name)
			}
			row[k] = v
		}

		target := math.NaN()
		if s := cell(targetCol); !isNA(s) {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d target %q", i+1, opts.Target)
			}
			target = v
		}
		x = append(x, row)
		y = append(y, target)
	}

	// a categorical column that was entirely missing still needs a level
	for k := range schema.Columns {
		if schema.Columns[k].Kind == Categorical && len(schema.Columns[k].Levels) == 0 {
			schema.Columns[k].Levels = []string{""}
		}
	}
	return New(schema, x, y)
}

// WriteCSV writes the features and the target (last column) with a header.
// Categorical codes are written as their level names.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	schema := ds.Schema()
	header := append(schema.Names(), schema.Target)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	rec := make([]string, len(header))
	for i := 0; i < ds.NumRows(); i++ {
		row := ds.RowView(i)
		for j, c := range schema.Columns {
			rec[j] = formatCell(c, row[j])
		}
		rec[len(rec)-1] = formatFloat(ds.Target(i))
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func formatCell(c Column, v float64) string {
	if c.Kind == Categorical && !math.IsNaN(v) {
		return c.Levels[int(v)]
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
