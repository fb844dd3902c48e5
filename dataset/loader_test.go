package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/telemetry"
	"github.com/polishequity/analytics/schema"
)

const header = "net_income,net_cash_flow,roe,roa,ebitda,sector,cumulation,investment_assessment\n"

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	var nf *errors.DatasetNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestLoadParsesRows(t *testing.T) {
	path := writeCSV(t, header+
		"100,20,0.1,0.05,300,Banking,1.5,Good\n"+
		"NA,,NaN,?,12,Energy,2,Bad\n")

	v, err := Load(path)
	require.NoError(t, err)

	records, err := Collect(v.Records())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, schema.InputRecord{
		NetIncome: 100, NetCashFlow: 20, Roe: 0.1, Roa: 0.05, Ebitda: 300,
		Sector: "Banking", Cumulation: 1.5, InvestmentAssessment: "Good",
	}, records[0])

	assert.True(t, math.IsNaN(records[1].NetIncome))
	assert.True(t, math.IsNaN(records[1].NetCashFlow))
	assert.True(t, math.IsNaN(records[1].Roe))
	assert.True(t, math.IsNaN(records[1].Roa))
	assert.Equal(t, 12.0, records[1].Ebitda)
	assert.Equal(t, "Energy", records[1].Sector)
}

func TestLoadIsLazyAndReiterable(t *testing.T) {
	path := writeCSV(t, header+"1,2,3,4,5,A,6,Good\n")
	v, err := Load(path)
	require.NoError(t, err)

	n, err := v.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, os.WriteFile(path, []byte(header+"1,2,3,4,5,A,6,Good\n1,2,3,4,5,B,6,Bad\n"), 0o644))
	n, err = v.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadSchemaMismatch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantRow int
	}{
		{"too few fields", header + "1,2,3,4,5,A,6,Good\n1,2,3,4,5,A,Good\n", 3},
		{"too many fields", header + "1,2,3,4,5,A,6,Good,extra\n", 2},
		{"not a number", header + "1,2,abc,4,5,A,6,Good\n", 2},
		{"infinite", header + "1,2,3,Inf,5,A,6,Good\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected := testutil.ToFloat64(telemetry.Observer.RowCounter("rejected"))

			v, err := Load(writeCSV(t, tt.body))
			require.NoError(t, err)
			_, err = Collect(v.Records())
			require.Error(t, err)

			var sm *errors.SchemaMismatchError
			require.True(t, errors.As(err, &sm))
			assert.Equal(t, tt.wantRow, sm.Row)
			assert.Equal(t, rejected+1, testutil.ToFloat64(telemetry.Observer.RowCounter("rejected")))
		})
	}
}

func TestLoadOptions(t *testing.T) {
	path := writeCSV(t, "1;2;3;4;5;A;6;Good\n")
	v, err := Load(path, WithSeparator(';'), WithHeader(false))
	require.NoError(t, err)

	records, err := Collect(v.Records())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].Sector)
}

func TestEarlyBreak(t *testing.T) {
	v := FromRecords([]schema.InputRecord{{Sector: "A"}, {Sector: "B"}, {Sector: "C"}})
	var seen []string
	for r, err := range v.Records() {
		require.NoError(t, err)
		seen = append(seen, r.Sector)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}
