package preprocessing

import (
	"bytes"
	"encoding/gob"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/polishequity/analytics/core/parallel"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/schema"
)

// parallelThreshold is the row count above which TransformAll fans out.
const parallelThreshold = 2048

// Preprocessor fits the feature pipeline. It holds configuration only;
// Fit returns the frozen FittedPreprocessor.
type Preprocessor struct {
	// FeatureRange is the min-max target interval.
	FeatureRange [2]float64
}

// NewPreprocessor returns a Preprocessor scaling to [0, 1].
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{FeatureRange: [2]float64{0, 1}}
}

// Fit learns column means, min/max and the sector vocabulary from records.
func (p *Preprocessor) Fit(records []schema.InputRecord) (*FittedPreprocessor, error) {
	if len(records) == 0 {
		return nil, errors.NewInsufficientDataError("Preprocessor.Fit", 0, 1)
	}
	start := time.Now()
	logger := log.GetLoggerWithName("preprocessing")

	raw := numericMatrix(records)

	imputer := NewMeanImputer()
	imputed, err := imputer.FitTransform(raw)
	if err != nil {
		return nil, errors.Wrap(err, "impute numeric columns")
	}
	for j, n := range imputer.Observed {
		if n == 0 {
			logger.Warn("Column has no observed values, imputing 0",
				log.ColumnKey, schema.NumericColumns[j])
		}
	}

	scaler := NewMinMaxScaler(p.FeatureRange)
	if err := scaler.Fit(imputed); err != nil {
		return nil, errors.Wrap(err, "scale numeric columns")
	}

	sectors := make([]string, len(records))
	for i, r := range records {
		sectors[i] = r.Sector
	}
	encoder := NewOneHotEncoder(schema.ColSector)
	if err := encoder.Fit(sectors); err != nil {
		return nil, errors.Wrap(err, "encode sector")
	}

	fp := &FittedPreprocessor{imputer: imputer, scaler: scaler, sector: encoder}
	logger.Info("Preprocessor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(records),
		log.FeaturesKey, fp.Width(),
		"sector_vocabulary", len(encoder.Vocabulary),
		log.DurationMsKey, int(time.Since(start).Milliseconds()),
	)
	return fp, nil
}

func numericMatrix(records []schema.InputRecord) *mat.Dense {
	X := mat.NewDense(len(records), schema.NumNumeric, nil)
	for i, r := range records {
		num := r.Numeric()
		X.SetRow(i, num[:])
	}
	return X
}

// FittedPreprocessor is the frozen feature pipeline. Its methods do not
// modify it and are safe for concurrent use.
type FittedPreprocessor struct {
	imputer *MeanImputer
	scaler  *MinMaxScaler
	sector  *OneHotEncoder
}

// Width is the feature vector length: the numeric columns followed by one
// slot per sector in the vocabulary.
func (f *FittedPreprocessor) Width() int {
	return schema.NumNumeric + f.sector.Width()
}

// Transform returns a new feature vector for r. An unseen sector yields an
// all-zero group and a warning.
func (f *FittedPreprocessor) Transform(r schema.InputRecord) []float64 {
	out := make([]float64, f.Width())
	f.transformInto(out, r)
	return out
}

func (f *FittedPreprocessor) transformInto(out []float64, r schema.InputRecord) {
	num := r.Numeric()
	row := out[:schema.NumNumeric]
	copy(row, num[:])
	f.imputer.fill(row)
	f.scaler.scaleRow(row)
	f.sector.EncodeInto(out[schema.NumNumeric:], r.Sector)
}

// TransformAll builds the feature matrix for records, one row each.
func (f *FittedPreprocessor) TransformAll(records []schema.InputRecord) *mat.Dense {
	n, w := len(records), f.Width()
	if n == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, n*w)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, 0, func(start, end int) {
		for i := start; i < end; i++ {
			f.transformInto(data[i*w:(i+1)*w], records[i])
		}
	})
	return mat.NewDense(n, w, data)
}

// FeatureNames names each position of the feature vector.
func (f *FittedPreprocessor) FeatureNames() []string {
	names := make([]string, 0, f.Width())
	names = append(names, schema.NumericColumns[:]...)
	for _, v := range f.sector.Vocabulary {
		names = append(names, schema.ColSector+"="+v)
	}
	return names
}

// Means returns the imputation values in numeric column order.
func (f *FittedPreprocessor) Means() []float64 {
	return append([]float64(nil), f.imputer.Means...)
}

// Mins returns the fit-time minimum of each imputed numeric column.
func (f *FittedPreprocessor) Mins() []float64 {
	return append([]float64(nil), f.scaler.DataMin...)
}

// Maxs returns the fit-time maximum of each imputed numeric column.
func (f *FittedPreprocessor) Maxs() []float64 {
	return append([]float64(nil), f.scaler.DataMax...)
}

// Vocabulary returns the sector values in encoding order.
func (f *FittedPreprocessor) Vocabulary() []string {
	return append([]string(nil), f.sector.Vocabulary...)
}

type fittedState struct {
	Imputer MeanImputer
	Scaler  MinMaxScaler
	Sector  OneHotEncoder
}

// GobEncode implements gob.GobEncoder.
func (f *FittedPreprocessor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(fittedState{
		Imputer: *f.imputer,
		Scaler:  *f.scaler,
		Sector:  *f.sector,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode preprocessor")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *FittedPreprocessor) GobDecode(data []byte) error {
	var st fittedState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return errors.Wrap(err, "decode preprocessor")
	}
	if len(st.Imputer.Means) != schema.NumNumeric || st.Scaler.NFeatures != schema.NumNumeric {
		return errors.NewDimensionError("FittedPreprocessor.GobDecode", schema.NumNumeric, len(st.Imputer.Means), 1)
	}
	st.Sector.Reindex()
	f.imputer, f.scaler, f.sector = &st.Imputer, &st.Scaler, &st.Sector
	return nil
}
