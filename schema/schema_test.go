package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumericOrder(t *testing.T) {
	r := InputRecord{
		NetIncome: 1, NetCashFlow: 2, Roe: 3, Roa: 4, Ebitda: 5,
		Sector: "Banking", Cumulation: 6, InvestmentAssessment: "Good",
	}
	assert.Equal(t, [NumNumeric]float64{1, 2, 3, 4, 5, 6}, r.Numeric())
	assert.Equal(t, "Good", r.Label())
}

func TestColumnLayout(t *testing.T) {
	assert.Equal(t, 8, NumColumns)
	assert.Equal(t, ColSector, Columns[IdxSector])
	assert.Equal(t, ColCumulation, Columns[IdxCumulation])
	assert.Equal(t, ColInvestmentAssessment, Columns[IdxInvestmentAssessment])
	assert.True(t, Missing(math.NaN()))
	assert.False(t, Missing(0))
}
