package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueryMatchAll(t *testing.T) {
	q := buildQuery("", false)
	assert.Contains(t, q, "match_all")
}

func TestBuildQueryOfferableFilter(t *testing.T) {
	q := buildQuery("bombonera", true)

	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded struct {
		Bool struct {
			Must   []map[string]any `json:"must"`
			Filter []map[string]any `json:"filter"`
		} `json:"bool"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded.Bool.Must, 1)
	assert.Len(t, decoded.Bool.Filter, 2)
	assert.Contains(t, string(raw), `"fuzziness":"AUTO"`)
}

func TestBuildSort(t *testing.T) {
	assert.Len(t, buildSort("futbol"), 2)
	assert.Len(t, buildSort(""), 1)
}
