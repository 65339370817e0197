package resultset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dyntable/internal/dialect"
)

func marshal(t *testing.T, v Value) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestValueJSONRendering(t *testing.T) {
	assert.Equal(t, "null", marshal(t, NullValue{}))
	assert.Equal(t, `"it's \"quoted\""`, marshal(t, TextValue(`it's "quoted"`)))
	assert.Equal(t, "42", marshal(t, IntegerValue(42)))
	assert.Equal(t, "123.450000", marshal(t, DecimalValue("123.450000")))
	assert.Equal(t, "true", marshal(t, BooleanValue(true)))
	assert.Equal(t, "[2026,3,15]", marshal(t, DateValue{2026, 3, 15}))
	assert.Equal(t, "[2026,3,15,9,30,0,0]",
		marshal(t, DateTimeValue{Year: 2026, Month: 3, Day: 15, Hour: 9, Minute: 30}))
	assert.Equal(t, "7", marshal(t, CodeLookupValue(7)))
}

func TestValueCSVRendering(t *testing.T) {
	assert.Equal(t, "", NullValue{}.CSV())
	assert.Equal(t, "plain, text", TextValue("plain, text").CSV())
	assert.Equal(t, "2026-03-05", DateValue{2026, 3, 5}.CSV())
	assert.Equal(t, "2026-03-05 09:05:00",
		DateTimeValue{Year: 2026, Month: 3, Day: 5, Hour: 9, Minute: 5}.CSV())
}

func TestNewValueCoercions(t *testing.T) {
	tests := []struct {
		name string
		dt   dialect.DisplayType
		raw  any
		want Value
	}{
		{"nil", dialect.DisplayText, nil, NullValue{}},
		{"int64", dialect.DisplayInteger, int64(9), IntegerValue(9)},
		{"int32", dialect.DisplayInteger, int32(9), IntegerValue(9)},
		{"bytes integer", dialect.DisplayInteger, []byte("9"), IntegerValue(9)},
		{"lookup", dialect.DisplayCodeLookup, int64(3), CodeLookupValue(3)},
		{"decimal bytes", dialect.DisplayDecimal, []byte("19.500000"), DecimalValue("19.500000")},
		{"decimal string", dialect.DisplayDecimal, "19.5", DecimalValue("19.5")},
		{"bool native", dialect.DisplayBoolean, true, BooleanValue(true)},
		{"bool bit", dialect.DisplayBoolean, []byte{1}, BooleanValue(true)},
		{"bool bit zero", dialect.DisplayBoolean, []byte{0}, BooleanValue(false)},
		{"date native", dialect.DisplayDate,
			time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), DateValue{2026, 2, 1}},
		{"date text", dialect.DisplayDate, "2026-02-01", DateValue{2026, 2, 1}},
		{"datetime text", dialect.DisplayDateTime, []byte("2026-02-01 10:20:30"),
			DateTimeValue{Year: 2026, Month: 2, Day: 1, Hour: 10, Minute: 20, Second: 30}},
		{"text bytes", dialect.DisplayText, []byte("hello"), TextValue("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewValue(tt.dt, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValueRejectsUnreadable(t *testing.T) {
	_, err := NewValue(dialect.DisplayInteger, struct{}{})
	assert.Error(t, err)
	_, err = NewValue(dialect.DisplayBoolean, 3.14)
	assert.Error(t, err)
}
