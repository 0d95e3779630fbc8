package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Core claim field names recognized by the pipeline. Any other column on an
// input row is carried in Extra and passed through untouched.
const (
	FieldClaimID            = "claim_id"
	FieldVehicleType        = "vehicle_type"
	FieldModel              = "model"
	FieldPartReplaced       = "part_replaced"
	FieldFailureDescription = "failure_description"
)

// Claim is one warranty request record. The typed fields are the ones the
// pipeline reasons about directly; Extra holds every other input column.
// A Claim is immutable once loaded.
type Claim struct {
	ID                 string            `json:"claim_id"`
	VehicleType        string            `json:"vehicle_type,omitempty"`
	Model              string            `json:"model,omitempty"`
	PartReplaced       string            `json:"part_replaced,omitempty"`
	FailureDescription string            `json:"failure_description,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// NewClaim builds a Claim from a raw field map, splitting recognized core
// fields out of the extension map. The claim id falls back to an "id" column
// when "claim_id" is absent.
func NewClaim(fields map[string]string) Claim {
	c := Claim{Extra: make(map[string]string)}
	for k, v := range fields {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case FieldClaimID:
			c.ID = v
		case "id":
			if c.ID == "" {
				c.ID = v
			} else {
				c.Extra[k] = v
			}
		case FieldVehicleType:
			c.VehicleType = v
		case FieldModel:
			c.Model = v
		case FieldPartReplaced:
			c.PartReplaced = v
		case FieldFailureDescription:
			c.FailureDescription = v
		default:
			c.Extra[k] = v
		}
	}
	return c
}

// Field looks up a claim field by name, checking core fields before the
// extension map. Returns ("", false) when the field is absent.
func (c Claim) Field(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FieldClaimID, "id":
		if c.ID != "" {
			return c.ID, true
		}
	case FieldVehicleType:
		if c.VehicleType != "" {
			return c.VehicleType, true
		}
	case FieldModel:
		if c.Model != "" {
			return c.Model, true
		}
	case FieldPartReplaced:
		if c.PartReplaced != "" {
			return c.PartReplaced, true
		}
	case FieldFailureDescription:
		if c.FailureDescription != "" {
			return c.FailureDescription, true
		}
	}
	v, ok := c.Extra[name]
	if ok && v != "" {
		return v, true
	}
	return "", false
}

// DisplayID returns the claim id, or a placeholder for claims loaded
// without one.
func (c Claim) DisplayID() string {
	if c.ID == "" {
		return "UNKNOWN-CLAIM"
	}
	return c.ID
}

// FlatMap returns every claim field (core and extra) as a single map.
func (c Claim) FlatMap() map[string]string {
	out := make(map[string]string, len(c.Extra)+5)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.ID != "" {
		out[FieldClaimID] = c.ID
	}
	if c.VehicleType != "" {
		out[FieldVehicleType] = c.VehicleType
	}
	if c.Model != "" {
		out[FieldModel] = c.Model
	}
	if c.PartReplaced != "" {
		out[FieldPartReplaced] = c.PartReplaced
	}
	if c.FailureDescription != "" {
		out[FieldFailureDescription] = c.FailureDescription
	}
	return out
}

// JSONString serializes the full claim (core + extra fields, flattened) as a
// deterministic JSON object for prompt injection.
func (c Claim) JSONString() string {
	flat := c.FlatMap()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]string, len(flat))
	for _, k := range keys {
		ordered[k] = flat[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(b)
}
