// Package errors provides the error and warning types shared by the pipeline.
// Errors carry structured fields for zerolog and a stack trace from
// cockroachdb/errors; warnings are routed through a process-wide handler.
package errors

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("analytics-warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink. Passing nil
// restores the fallback handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a non-fatal warning.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning is raised when boosting stops before the loss settles.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UnseenCategoryWarning is raised when a categorical value was not part of
// the fit-time vocabulary. The value is encoded as an all-zero group.
type UnseenCategoryWarning struct {
	Column string
	Value  string
}

func (w *UnseenCategoryWarning) Error() string {
	return fmt.Sprintf("unseen category %q in column %q encoded as all zeros", w.Value, w.Column)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UnseenCategoryWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("value", w.Value).
		Str("type", "UnseenCategoryWarning")
}

// NewUnseenCategoryWarning creates an UnseenCategoryWarning.
func NewUnseenCategoryWarning(column, value string) *UnseenCategoryWarning {
	return &UnseenCategoryWarning{Column: column, Value: value}
}

// UndefinedMetricWarning is raised when a metric has no support, e.g. a
// class that never appears in the evaluation data.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Dataset errors
//
// ===========================================================================

// DatasetNotFoundError reports a missing input file.
type DatasetNotFoundError struct {
	Path string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset not found: %s", e.Path)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DatasetNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).Str("type", "DatasetNotFoundError")
}

// NewDatasetNotFoundError creates a DatasetNotFoundError with a stack trace.
func NewDatasetNotFoundError(path string) error {
	return errors.WithStack(&DatasetNotFoundError{Path: path})
}

// SchemaMismatchError reports a row that does not fit the input layout.
// Row is 1-based and counts the header line when one is present.
type SchemaMismatchError struct {
	Row      int
	Expected int
	Got      int
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema mismatch at row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("schema mismatch at row %d: expected %d fields, got %d", e.Row, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("row", e.Row).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError reports a field count mismatch.
func NewSchemaMismatchError(row, expected, got int) error {
	return errors.WithStack(&SchemaMismatchError{Row: row, Expected: expected, Got: got})
}

// NewSchemaFieldError reports a field that could not be parsed.
func NewSchemaFieldError(row int, reason string) error {
	return errors.WithStack(&SchemaMismatchError{Row: row, Reason: reason})
}

// InsufficientDataError is returned when an operation receives fewer rows
// than it needs.
type InsufficientDataError struct {
	Op       string
	Got      int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: got %d rows, need at least %d", e.Op, e.Got, e.Required)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("got", e.Got).
		Int("required", e.Required).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError creates an InsufficientDataError with a stack trace.
func NewInsufficientDataError(op string, got, required int) error {
	return errors.WithStack(&InsufficientDataError{Op: op, Got: got, Required: required})
}

// LabelEncodingError lists every label outside the training vocabulary
// together with the rows (0-based) where it occurred.
type LabelEncodingError struct {
	Rows map[string][]int
}

func (e *LabelEncodingError) Error() string {
	labels := e.Labels()
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%q (rows %v)", l, e.Rows[l]))
	}
	return fmt.Sprintf("labels not seen during training: %s", strings.Join(parts, ", "))
}

// Labels returns the offending labels in sorted order.
func (e *LabelEncodingError) Labels() []string {
	labels := make([]string, 0, len(e.Rows))
	for l := range e.Rows {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Count returns the number of offending rows.
func (e *LabelEncodingError) Count() int {
	n := 0
	for _, rows := range e.Rows {
		n += len(rows)
	}
	return n
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *LabelEncodingError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("labels", e.Labels()).
		Int("rows", e.Count()).
		Str("type", "LabelEncodingError")
}

// NewLabelEncodingError creates a LabelEncodingError with a stack trace.
func NewLabelEncodingError(rows map[string][]int) error {
	return errors.WithStack(&LabelEncodingError{Rows: rows})
}

// ===========================================================================
//
//	Model errors
//
// ===========================================================================

// NotFittedError is returned when Predict or Transform is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for features
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError reports a parameter that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError reports an argument with an invalid value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general model failure, e.g. a corrupt bundle.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates err with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

var (
	// ErrEmptyData is returned for empty inputs.
	ErrEmptyData = New("empty data")

	// ErrUnsupportedVersion is returned when a persisted bundle has a
	// format version this build cannot read.
	ErrUnsupportedVersion = New("unsupported bundle version")
)
