package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClaimSplitsCoreFields(t *testing.T) {
	t.Parallel()

	c := NewClaim(map[string]string{
		"claim_id":            "WC-1001",
		"Vehicle_Type":        "SUV",
		"model":               "Highlander",
		"part_replaced":       "water pump",
		"failure_description": "coolant leak at 42k miles",
		"total_cost":          "850",
	})

	assert.Equal(t, "WC-1001", c.ID)
	assert.Equal(t, "SUV", c.VehicleType)
	assert.Equal(t, "Highlander", c.Model)
	assert.Equal(t, "water pump", c.PartReplaced)
	assert.Equal(t, "coolant leak at 42k miles", c.FailureDescription)
	assert.Equal(t, map[string]string{"total_cost": "850"}, c.Extra)
}

func TestNewClaimIDFallback(t *testing.T) {
	t.Parallel()

	c := NewClaim(map[string]string{"id": "7", "total_cost": "100"})
	assert.Equal(t, "7", c.ID)

	// claim_id wins over id; the loser stays an extra column.
	c = NewClaim(map[string]string{"claim_id": "WC-1", "id": "7"})
	assert.Equal(t, "WC-1", c.ID)
	assert.Equal(t, "7", c.Extra["id"])
}

func TestClaimField(t *testing.T) {
	t.Parallel()

	c := NewClaim(map[string]string{
		"claim_id":   "WC-1001",
		"model":      "Civic",
		"total_cost": "850",
		"notes":      "",
	})

	v, ok := c.Field("model")
	assert.True(t, ok)
	assert.Equal(t, "Civic", v)

	v, ok = c.Field("claim_id")
	assert.True(t, ok)
	assert.Equal(t, "WC-1001", v)

	v, ok = c.Field("total_cost")
	assert.True(t, ok)
	assert.Equal(t, "850", v)

	// Empty values count as absent.
	_, ok = c.Field("notes")
	assert.False(t, ok)

	_, ok = c.Field("mileage")
	assert.False(t, ok)
}

func TestDisplayID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "WC-1", NewClaim(map[string]string{"claim_id": "WC-1"}).DisplayID())
	assert.Equal(t, "UNKNOWN-CLAIM", NewClaim(map[string]string{"model": "Civic"}).DisplayID())
}

func TestJSONStringDeterministic(t *testing.T) {
	t.Parallel()

	c := NewClaim(map[string]string{
		"claim_id":   "WC-1",
		"model":      "Civic",
		"total_cost": "850",
	})

	first := c.JSONString()
	assert.Contains(t, first, `"claim_id":"WC-1"`)
	assert.Contains(t, first, `"total_cost":"850"`)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.JSONString())
	}
}

func TestTracef(t *testing.T) {
	t.Parallel()

	st := NewClaimState(NewClaim(map[string]string{"claim_id": "WC-1"}), AnomalyResult{})
	st.Tracef("policy_check", "coverage=%s, summary=%s", "covered", "ok")
	st.Tracef("fraud_scoring", "fraud_score=%g", 12.5)

	assert.Equal(t, []string{
		"[policy_check] coverage=covered, summary=ok",
		"[fraud_scoring] fraud_score=12.5",
	}, st.Trace)
}

func TestNormalizeCoverage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CoverageCovered, NormalizeCoverage("covered"))
	assert.Equal(t, CoverageNotCovered, NormalizeCoverage("not_covered"))
	assert.Equal(t, CoverageUnclear, NormalizeCoverage("unclear"))
	assert.Equal(t, CoverageUnclear, NormalizeCoverage("maybe"))
	assert.Equal(t, CoverageUnclear, NormalizeCoverage(""))
}

func TestValidOutcome(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidOutcome("approve"))
	assert.True(t, ValidOutcome("decline"))
	assert.True(t, ValidOutcome("escalate_hitl"))
	assert.False(t, ValidOutcome("escalate"))
	assert.False(t, ValidOutcome(""))
}
