package api

import (
	"encoding/json/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"rfc3339", `"2026-01-15T10:30:00Z"`, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 nano", `"2026-01-15T10:30:00.123456789Z"`, time.Date(2026, 1, 15, 10, 30, 0, 123456789, time.UTC)},
		{"epoch ms number", `1768473000000`, time.UnixMilli(1768473000000)},
		{"epoch ms string", `"1768473000000"`, time.UnixMilli(1768473000000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ft))
			assert.True(t, tt.expected.Equal(ft.Time), "got %v", ft.Time)
		})
	}
}

func TestFlexTime_UnmarshalJSON_Invalid(t *testing.T) {
	for _, input := range []string{`"next tuesday"`, `true`, `{}`} {
		var ft FlexTime
		assert.Error(t, json.Unmarshal([]byte(input), &ft), input)
	}
}

func TestFlexTime_MarshalJSON(t *testing.T) {
	ft := FlexTime{Time: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(ft)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-03-01T08:00:00Z"`, string(data))
}

func TestFlexTime_TimePtr(t *testing.T) {
	var nilTime *FlexTime
	assert.Nil(t, nilTime.timePtr())

	ft := &FlexTime{Time: time.UnixMilli(1000)}
	got := ft.timePtr()
	require.NotNil(t, got)
	assert.True(t, got.Equal(ft.Time))
}
