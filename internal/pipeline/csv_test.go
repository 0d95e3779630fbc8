package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claims-cli/internal/model"
)

const sampleCSV = `claim_id,vehicle_type,model,part_replaced,failure_description,total_cost
WC-1,sedan,Civic,alternator,no charge at idle,850
WC-2,truck,F-150,"turbocharger, left","boost loss, whining noise","2,400"
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseClaimsCSV(t *testing.T) {
	t.Parallel()

	claims, header, err := ParseClaimsCSV(writeTempCSV(t, sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"claim_id", "vehicle_type", "model", "part_replaced", "failure_description", "total_cost",
	}, header)

	require.Len(t, claims, 2)
	assert.Equal(t, "WC-1", claims[0].ID)
	assert.Equal(t, "alternator", claims[0].PartReplaced)
	assert.Equal(t, map[string]string{"total_cost": "850"}, claims[0].Extra)

	// Quoted cells with embedded commas stay intact.
	assert.Equal(t, "turbocharger, left", claims[1].PartReplaced)
	assert.Equal(t, "2,400", claims[1].Extra["total_cost"])
}

func TestParseClaimsCSVNoDataRows(t *testing.T) {
	t.Parallel()

	_, _, err := ParseClaimsCSV(writeTempCSV(t, "claim_id,total_cost\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestParseClaimsCSVMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := ParseClaimsCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestParseClaimsCSVShortRow(t *testing.T) {
	t.Parallel()

	// Rows shorter than the header simply omit the missing columns.
	claims, _, err := claimsFromRows([][]string{
		{"claim_id", "vehicle_type", "total_cost"},
		{"WC-1", "sedan"},
	})
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "sedan", claims[0].VehicleType)
	_, ok := claims[0].Field("total_cost")
	assert.False(t, ok)
}

func TestExportResultsCSV(t *testing.T) {
	t.Parallel()

	st := model.NewClaimState(
		model.NewClaim(map[string]string{"claim_id": "WC-1", "total_cost": "850"}),
		model.AnomalyResult{Score: 1.732, Bucket: model.RiskMedium, PerFieldZ: map[string]float64{"total_cost": 1.732}},
	)
	st.Policy = model.PolicyAssessment{Coverage: model.CoverageCovered, Summary: "covered"}
	st.Fraud = model.FraudAssessment{Score: 12.5, Reasons: []string{"a", "b"}}
	st.Evidence = model.EvidenceBundle{Summary: "routine repair"}
	st.Decision = model.Decision{Outcome: model.OutcomeApprove, Rationale: "fine", Confidence: 0.9}
	st.Tracef("policy_check", "coverage=covered")

	path := filepath.Join(t.TempDir(), "out.csv")
	header := []string{"claim_id", "total_cost"}
	require.NoError(t, ExportResultsCSV(path, header, []*model.ClaimState{st}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	wantHeader := append([]string{"claim_id", "total_cost"}, OutputColumns...)
	assert.Equal(t, wantHeader, records[0])

	row := records[1]
	require.Len(t, row, len(wantHeader))
	assert.Equal(t, "WC-1", row[0])
	assert.Equal(t, "850", row[1])
	assert.Equal(t, "covered", row[2])
	assert.Equal(t, "12.5", row[5])
	assert.Equal(t, "a; b", row[6])
	assert.Equal(t, "approve", row[8])
	assert.Equal(t, "false", row[11])
	assert.Equal(t, "medium", row[14])
	assert.Contains(t, row[15], "total_cost")
	assert.Equal(t, "[policy_check] coverage=covered", row[16])
}
