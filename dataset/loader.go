// Package dataset reads the labeling CSV into lazily evaluated views and
// splits them into train and test partitions.
package dataset

import (
	"encoding/csv"
	"io"
	"io/fs"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/pkg/telemetry"
	"github.com/polishequity/analytics/schema"
)

// missingTokens are parsed as NaN in numeric columns. Compared lower-cased.
var missingTokens = map[string]struct{}{
	"":    {},
	"na":  {},
	"nan": {},
	"?":   {},
}

type options struct {
	separator rune
	header    bool
}

// Option configures Load.
type Option func(*options)

// WithSeparator sets the field separator. Default ','.
func WithSeparator(sep rune) Option {
	return func(o *options) { o.separator = sep }
}

// WithHeader sets whether the first line is a header. Default true.
func WithHeader(header bool) Option {
	return func(o *options) { o.header = header }
}

// View is a re-iterable sequence of records. A file-backed view reads
// the file again on every iteration.
type View struct {
	path    string
	opts    options
	records []schema.InputRecord
}

// Load returns a lazy view over the CSV at path. Only the file's existence
// is checked here; rows are parsed and validated during iteration.
func Load(path string, opts ...Option) (*View, error) {
	o := options{separator: ',', header: true}
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewDatasetNotFoundError(path)
		}
		return nil, errors.Wrapf(err, "stat dataset %s", path)
	}
	if info.IsDir() {
		return nil, errors.NewDatasetNotFoundError(path)
	}

	log.GetLoggerWithName("dataset").Info("Dataset opened",
		log.PathKey, path,
		"size_bytes", int(info.Size()),
	)
	return &View{path: path, opts: o}, nil
}

// FromRecords returns an in-memory view over a copy of records.
func FromRecords(records []schema.InputRecord) *View {
	cp := make([]schema.InputRecord, len(records))
	copy(cp, records)
	return &View{records: cp}
}

// Path returns the backing file, or "" for in-memory views.
func (v *View) Path() string {
	return v.path
}

// Records yields every row in file order. Iteration stops after the first
// error, which is yielded with a zero record.
func (v *View) Records() iter.Seq2[schema.InputRecord, error] {
	if v.path == "" {
		return func(yield func(schema.InputRecord, error) bool) {
			for _, r := range v.records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
	return v.readFile
}

func (v *View) readFile(yield func(schema.InputRecord, error) bool) {
	f, err := os.Open(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.NewDatasetNotFoundError(v.path)
		}
		yield(schema.InputRecord{}, err)
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = v.opts.separator
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	row := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return
		}
		row++
		if err != nil {
			telemetry.Observer.RowRejected()
			yield(schema.InputRecord{}, errors.NewSchemaFieldError(row, err.Error()))
			return
		}
		if row == 1 && v.opts.header {
			continue
		}

		rec, err := parseRow(row, fields)
		if err != nil {
			telemetry.Observer.RowRejected()
			yield(schema.InputRecord{}, err)
			return
		}
		telemetry.Observer.RowLoaded()
		if !yield(rec, nil) {
			return
		}
	}
}

// Len counts the rows by iterating the view.
func (v *View) Len() (int, error) {
	n := 0
	for _, err := range v.Records() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Collect materialises a record sequence.
func Collect(seq iter.Seq2[schema.InputRecord, error]) ([]schema.InputRecord, error) {
	var out []schema.InputRecord
	for r, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRow(row int, fields []string) (schema.InputRecord, error) {
	if len(fields) != schema.NumColumns {
		return schema.InputRecord{}, errors.NewSchemaMismatchError(row, schema.NumColumns, len(fields))
	}

	var nums [schema.NumColumns]float64
	for _, idx := range []int{
		schema.IdxNetIncome, schema.IdxNetCashFlow, schema.IdxRoe,
		schema.IdxRoa, schema.IdxEbitda, schema.IdxCumulation,
	} {
		v, err := parseNumeric(fields[idx])
		if err != nil {
			return schema.InputRecord{}, errors.NewSchemaFieldError(row,
				schema.Columns[idx]+": "+strconv.Quote(fields[idx])+" is not a number")
		}
		nums[idx] = v
	}

	return schema.InputRecord{
		NetIncome:            nums[schema.IdxNetIncome],
		NetCashFlow:          nums[schema.IdxNetCashFlow],
		Roe:                  nums[schema.IdxRoe],
		Roa:                  nums[schema.IdxRoa],
		Ebitda:               nums[schema.IdxEbitda],
		Sector:               strings.TrimSpace(fields[schema.IdxSector]),
		Cumulation:           nums[schema.IdxCumulation],
		InvestmentAssessment: strings.TrimSpace(fields[schema.IdxInvestmentAssessment]),
	}, nil
}

func parseNumeric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if _, ok := missingTokens[strings.ToLower(s)]; ok {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, errors.Newf("infinite value %q", s)
	}
	return v, nil
}
