package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	t.Run("parsed time encodes as RFC 3339", func(t *testing.T) {
		ts := Timestamp{Time: time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("", -5*3600))}

		data, err := json.Marshal(ts)
		require.NoError(t, err)
		assert.Equal(t, `"2024-03-01T09:30:00-05:00"`, string(data))

		var decoded Timestamp
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, ts.Time.Equal(decoded.Time))
		assert.Empty(t, decoded.Raw)
	})

	t.Run("unparsed header keeps its text", func(t *testing.T) {
		ts := Timestamp{Raw: "sometime last week"}

		data, err := json.Marshal(ts)
		require.NoError(t, err)
		assert.Equal(t, `"sometime last week"`, string(data))

		var decoded Timestamp
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, ts, decoded)
	})

	t.Run("missing date is an empty string", func(t *testing.T) {
		assert.Equal(t, "", Timestamp{}.String())
	})
}
