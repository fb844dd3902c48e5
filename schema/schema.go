// Package schema defines the input and prediction records of the
// financial-health classifier and the positional CSV layout they map to.
package schema

import "math"

// Column names in CSV order.
const (
	ColNetIncome            = "net_income"
	ColNetCashFlow          = "net_cash_flow"
	ColRoe                  = "roe"
	ColRoa                  = "roa"
	ColEbitda               = "ebitda"
	ColSector               = "sector"
	ColCumulation           = "cumulation"
	ColInvestmentAssessment = "investment_assessment"
)

// Positional indexes of the input CSV.
const (
	IdxNetIncome = iota
	IdxNetCashFlow
	IdxRoe
	IdxRoa
	IdxEbitda
	IdxSector
	IdxCumulation
	IdxInvestmentAssessment

	NumColumns
)

// Columns lists the column names in CSV order.
var Columns = [NumColumns]string{
	ColNetIncome, ColNetCashFlow, ColRoe, ColRoa, ColEbitda,
	ColSector, ColCumulation, ColInvestmentAssessment,
}

// NumericColumns lists the numeric columns in feature-vector order.
var NumericColumns = [NumNumeric]string{
	ColNetIncome, ColNetCashFlow, ColRoe, ColRoa, ColEbitda, ColCumulation,
}

// NumNumeric is the number of numeric features.
const NumNumeric = 6

// InputRecord is one row of the labeling dataset. Missing numeric values
// are NaN.
type InputRecord struct {
	NetIncome            float64
	NetCashFlow          float64
	Roe                  float64
	Roa                  float64
	Ebitda               float64
	Sector               string
	Cumulation           float64
	InvestmentAssessment string
}

// Numeric returns the numeric fields in NumericColumns order.
func (r InputRecord) Numeric() [NumNumeric]float64 {
	return [NumNumeric]float64{r.NetIncome, r.NetCashFlow, r.Roe, r.Roa, r.Ebitda, r.Cumulation}
}

// Label returns the target column.
func (r InputRecord) Label() string {
	return r.InvestmentAssessment
}

// Prediction is the model output for one record. Score holds one
// probability per class in the model's class order.
type Prediction struct {
	Label          string
	PredictedLabel string
	Score          []float64
}

// Missing reports whether v is a missing numeric value.
func Missing(v float64) bool {
	return math.IsNaN(v)
}
