package neighbor

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Response is the decoded body of a neighbor lookup.
// Exactly one of Error and Neighbors is expected to be set.
type Response struct {
	Error     *APIError  `json:"error,omitempty"`
	Neighbors []Neighbor `json:"neighbors,omitempty"`
}

// APIError is the embedded domain error of a 200 response.
type APIError struct {
	Details string `json:"details"`
}

// NeighborInfo identifies the neighbor account.
type NeighborInfo struct {
	Address string `json:"address"`
}

// Neighbor is one entry of a lookup response.
type Neighbor struct {
	NeighborInfo NeighborInfo `json:"neighbor_info"`

	// TransfersToNeighbor is zero when the relationship is outbound-only or
	// predates the requested time window.
	TransfersToNeighbor int64 `json:"transfers_to_neighbor"`

	// FiatToNeighbor is the transferred value; it may be absent.
	FiatToNeighbor Amount `json:"fiat_to_neighbor"`
}

// Amount is a transfer value reported either as a string with thousands
// separators ("1,234.50"), as a bare JSON number, or as null.
type Amount struct {
	raw   string
	valid bool
}

// NewAmount builds an Amount from its textual form.
func NewAmount(s string) Amount {
	return Amount{raw: s, valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount{raw: s, valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = Amount{raw: n.String(), valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.raw)
}

// Present reports whether the API returned a value.
func (a Amount) Present() bool {
	return a.valid
}

// Float parses the value, ignoring thousands separators.
// It returns false when the value is absent, not a number, or not finite
// ("NaN", "Infinity" and the like).
func (a Amount) Float() (float64, bool) {
	if !a.valid {
		return 0, false
	}
	s := strings.ReplaceAll(strings.TrimSpace(a.raw), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
