package types

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseExtendedDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		durStr string
		expErr bool
		expDur time.Duration
	}{
		{"", true, 0},
		{"d", true, 0},
		{"2.1d", true, 0},
		{"2d-2h", true, 0},
		{"1.12s", false, 1120 * time.Millisecond},
		{"1s", false, 1 * time.Second},
		{"1d", false, 24 * time.Hour},
		{"20d", false, 480 * time.Hour},
		{"1d23h", false, 47 * time.Hour},
		{"1d24h15m", false, 48*time.Hour + 15*time.Minute},
		{"-1d2h", false, -26 * time.Hour},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("tc_%s", tc.durStr), func(t *testing.T) {
			t.Parallel()
			result, err := ParseExtendedDuration(tc.durStr)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expDur, result)
		})
	}
}

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	t.Run("unmarshal number", func(t *testing.T) {
		t.Parallel()
		var d Duration
		assert.NoError(t, json.Unmarshal([]byte(`75000`), &d))
		assert.Equal(t, Duration(75*time.Second), d)
	})
	t.Run("unmarshal string", func(t *testing.T) {
		t.Parallel()
		var d Duration
		assert.NoError(t, json.Unmarshal([]byte(`"1m15s"`), &d))
		assert.Equal(t, Duration(75*time.Second), d)
	})
	t.Run("unmarshal extended string", func(t *testing.T) {
		t.Parallel()
		var d Duration
		assert.NoError(t, json.Unmarshal([]byte(`"1d2h1m15s"`), &d))
		assert.Equal(t, Duration(26*time.Hour+75*time.Second), d)
	})
	t.Run("marshal", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(Duration(75 * time.Second))
		assert.NoError(t, err)
		assert.Equal(t, `"1m15s"`, string(data))
	})
}

func TestNullDuration(t *testing.T) {
	t.Parallel()

	t.Run("unmarshal null", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		assert.NoError(t, json.Unmarshal([]byte(`null`), &d))
		assert.Equal(t, NullDuration{Duration(0), false}, d)
	})
	t.Run("unmarshal value", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		assert.NoError(t, json.Unmarshal([]byte(`"75s"`), &d))
		assert.Equal(t, NullDuration{Duration(75 * time.Second), true}, d)
	})
	t.Run("marshal valid", func(t *testing.T) {
		t.Parallel()
		d := NullDuration{Duration(75 * time.Second), true}
		data, err := json.Marshal(d)
		assert.NoError(t, err)
		assert.Equal(t, `"1m15s"`, string(data))
	})
	t.Run("marshal invalid", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		data, err := json.Marshal(d)
		assert.NoError(t, err)
		assert.Equal(t, `null`, string(data))
	})
	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		assert.NoError(t, d.UnmarshalText([]byte(`10s`)))
		assert.Equal(t, NullDurationFrom(10*time.Second), d)
	})
	t.Run("text empty", func(t *testing.T) {
		t.Parallel()
		var d NullDuration
		assert.NoError(t, d.UnmarshalText([]byte(``)))
		assert.Equal(t, NullDuration{}, d)
	})
}

func TestGetDurationValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		val      interface{}
		expError bool
		exp      time.Duration
	}{
		{false, true, 0},
		{time.Now(), true, 0},
		{"invalid", true, 0},

		{int(1000), false, time.Second},
		{int64(1000), false, time.Second},
		{uint64(1000), false, time.Second},
		{1000.0, false, time.Second},
		{float64(1000.001), false, time.Second + time.Microsecond},
		{"1s", false, time.Second},
		{"1.5s", false, 1500 * time.Millisecond},
		{time.Second, false, time.Second},
		{"1d3h1s", false, 27*time.Hour + time.Second},
	}

	for i, tc := range testCases {
		i, tc := i, tc
		t.Run(fmt.Sprintf("testcase_%02d", i), func(t *testing.T) {
			t.Parallel()
			res, err := GetDurationValue(tc.val)
			if tc.expError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.exp, res)
		})
	}
}
