package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantUTC string
		wantErr error
	}{
		{
			name:    "HAR format with milliseconds",
			input:   "2023-01-15T14:30:45.123Z",
			wantUTC: "2023-01-15T14:30:45.123Z",
		},
		{
			name:    "offset",
			input:   "2023-01-15T14:30:45.123-08:00",
			wantUTC: "2023-01-15T22:30:45.123Z",
		},
		{
			name:    "no fraction",
			input:   "2023-01-15T14:30:45+02:00",
			wantUTC: "2023-01-15T12:30:45Z",
		},
		{
			name:    "compact offset",
			input:   "2023-01-15T14:30:45.5+0100",
			wantUTC: "2023-01-15T13:30:45.5Z",
		},
		{
			name:    "naive datetime",
			input:   "2023-01-15T14:30:45.123",
			wantErr: ErrNaiveTimestamp,
		},
		{
			name:    "naive date only",
			input:   "2023-01-15",
			wantErr: ErrNaiveTimestamp,
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, ts.String())
			assert.Equal(t, tt.wantUTC, ts.Time().UTC().Format(time.RFC3339Nano))
		})
	}
}

func TestTimestampJSON(t *testing.T) {
	t.Run("keeps original text", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T10:15:30.200+01:00"`), &ts))
		data, err := json.Marshal(ts)
		require.NoError(t, err)
		assert.Equal(t, `"2024-03-01T10:15:30.200+01:00"`, string(data))
	})

	t.Run("new timestamps carry their offset", func(t *testing.T) {
		loc := time.FixedZone("test", 5*3600+1800)
		ts := NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 600_000_000, loc))
		assert.Equal(t, "2024-01-02T03:04:05.6+05:30", ts.String())
	})

	t.Run("naive timestamps are rejected on decode", func(t *testing.T) {
		var ts Timestamp
		assert.ErrorIs(t, json.Unmarshal([]byte(`"2024-03-01T10:15:30"`), &ts), ErrNaiveTimestamp)
	})

	t.Run("non-string is invalid", func(t *testing.T) {
		var ts Timestamp
		assert.ErrorIs(t, json.Unmarshal([]byte(`1709284530`), &ts), ErrInvalidTimestamp)
	})

	t.Run("unset does not encode", func(t *testing.T) {
		_, err := json.Marshal(Timestamp{})
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})
}
