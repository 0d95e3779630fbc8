package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

// OutputColumns are appended to every input row in batch output, in this
// order.
var OutputColumns = []string{
	"policy_coverage",
	"policy_check_summary",
	"policy_context",
	"fraud_score",
	"fraud_reasons",
	"evidence_summary",
	"decision",
	"decision_rationale",
	"decision_confidence",
	"hitl_required",
	"hitl_notes",
	"anomaly_score",
	"risk_bucket",
	"anomaly_features",
	"trace",
	"error",
}

// ParseClaimsCSV reads a claims CSV, one claim per row. It returns the
// claims and the original header so unknown columns survive untouched in
// the output.
func ParseClaimsCSV(path string) ([]model.Claim, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "claims: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "claims: read csv")
	}

	return claimsFromRows(records)
}

// claimsFromRows converts a header row plus data rows into claims.
func claimsFromRows(records [][]string) ([]model.Claim, []string, error) {
	if len(records) < 2 {
		return nil, nil, eris.New("claims: no data rows")
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
	}

	claims := make([]model.Claim, 0, len(records)-1)
	for _, row := range records[1:] {
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[col] = strings.TrimSpace(row[i])
			}
		}
		claims = append(claims, model.NewClaim(fields))
	}

	return claims, header, nil
}

// ExportResultsCSV writes one row per adjudicated claim: the original input
// columns followed by OutputColumns.
func ExportResultsCSV(path string, header []string, states []*model.ClaimState) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "claims: create output csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	outHeader := append(append([]string{}, header...), OutputColumns...)
	if err := w.Write(outHeader); err != nil {
		return eris.Wrap(err, "claims: write header")
	}

	for _, st := range states {
		row := make([]string, 0, len(outHeader))
		for _, col := range header {
			v, _ := st.Claim.Field(col)
			row = append(row, v)
		}
		row = append(row, outputValues(st)...)

		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "claims: write row")
		}
	}

	if err := w.Error(); err != nil {
		return eris.Wrap(err, "claims: flush output csv")
	}
	return nil
}

// outputValues renders the adjudication output columns for one claim, in
// OutputColumns order.
func outputValues(st *model.ClaimState) []string {
	features := "{}"
	if b, err := json.Marshal(st.Anomaly.PerFieldZ); err == nil && st.Anomaly.PerFieldZ != nil {
		features = string(b)
	}

	return []string{
		string(st.Policy.Coverage),
		st.Policy.Summary,
		st.Policy.Context,
		formatFloat(st.Fraud.Score),
		strings.Join(st.Fraud.Reasons, "; "),
		st.Evidence.Summary,
		string(st.Decision.Outcome),
		st.Decision.Rationale,
		formatFloat(st.Decision.Confidence),
		strconv.FormatBool(st.Escalation.Required),
		st.Escalation.Note,
		formatFloat(st.Anomaly.Score),
		string(st.Anomaly.Bucket),
		features,
		strings.Join(st.Trace, "\n"),
		st.Error,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
