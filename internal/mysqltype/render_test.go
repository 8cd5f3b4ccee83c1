package mysqltype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_BasicTypes(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "hello", String([]byte("hello")))
	assert.Equal(t, "hello", String("hello"))
	assert.Equal(t, "1", String(true))
	assert.Equal(t, "0", String(false))
	assert.Equal(t, "42", String(int64(42)))
	assert.Equal(t, "42", String(uint64(42)))
	assert.Equal(t, "3.14", String(float64(3.14)))
}

func TestString_TimeTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2024-01-02 03:04:05.000000", String(ts))
}

func TestString_InvalidUTF8IsReplaced(t *testing.T) {
	assert.Contains(t, String([]byte{0xff, 0xfe}), "�")
}

func TestParseDuration_PositiveUnderADay(t *testing.T) {
	d, err := ParseDuration("12:34:56.500000")
	require.NoError(t, err)
	assert.False(t, d.Negative)
	assert.Equal(t, 0, d.Days)
	assert.Equal(t, 12, d.Hours)
	assert.Equal(t, 34, d.Minutes)
	assert.Equal(t, 56, d.Seconds)
	assert.Equal(t, 500000, d.Micros)
}

func TestParseDuration_OverADayNormalizesIntoDays(t *testing.T) {
	d, err := ParseDuration("838:59:59")
	require.NoError(t, err)
	assert.Equal(t, 34, d.Days)
	assert.Equal(t, 22, d.Hours)
	assert.Equal(t, 59, d.Minutes)
	assert.Equal(t, 59, d.Seconds)
}

func TestParseDuration_Negative(t *testing.T) {
	d, err := ParseDuration("-01:02:03")
	require.NoError(t, err)
	assert.True(t, d.Negative)
	assert.Equal(t, 1, d.Hours)
}

func TestParseDuration_Malformed(t *testing.T) {
	_, err := ParseDuration("not-a-time")
	assert.Error(t, err)
}

func TestDuration_StringOmitsDaySuffixWhenZero(t *testing.T) {
	d := Duration{Hours: 1, Minutes: 2, Seconds: 3}
	assert.Equal(t, "01:02:03.000000", d.String())
}

func TestDuration_StringIncludesDaySuffix(t *testing.T) {
	d := Duration{Days: 2, Hours: 1, Minutes: 2, Seconds: 3}
	assert.Equal(t, "01:02:03.000000 (2 days)", d.String())
}

func TestDuration_StringNegative(t *testing.T) {
	d := Duration{Negative: true, Hours: 1}
	assert.Equal(t, "-01:00:00.000000", d.String())
}

func TestCoerceByType_TimeColumnParsesRawBytes(t *testing.T) {
	v := CoerceByType("TIME", []byte("838:59:59"))
	d, ok := v.(Duration)
	require.True(t, ok)
	assert.Equal(t, 34, d.Days)
	assert.Equal(t, "22:59:59.000000 (34 days)", String(d))
}

func TestCoerceByType_NonTimeColumnPassesThrough(t *testing.T) {
	v := CoerceByType("VARCHAR", []byte("hello"))
	assert.Equal(t, []byte("hello"), v)
}

func TestCoerceByType_MalformedTimeFallsBackToRawValue(t *testing.T) {
	raw := []byte("not-a-time")
	v := CoerceByType("TIME", raw)
	assert.Equal(t, raw, v)
}

func TestJSONValue_RendersDurationAsString(t *testing.T) {
	d := Duration{Hours: 1, Minutes: 0, Seconds: 0}
	assert.Equal(t, "01:00:00.000000", JSONValue(d))
}
