package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Run("Should round percentages to two places before dividing by 100", func(t *testing.T) {
		tests := []struct {
			input    string
			expected float64
		}{
			{"45.5%", 0.455},
			{"45.567%", 0.4557},
			{"12%", 0.12},
			{"0.125%", 0.0013},
			{"-3.5%", -0.035},
			{"100 %", 1},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				result := Value(tt.input)
				require.IsType(t, float64(0), result)
				assert.InDelta(t, tt.expected, result.(float64), 1e-12)
			})
		}
	})

	t.Run("Should leave unparseable percent text unchanged", func(t *testing.T) {
		assert.Equal(t, "n/a%", Value("n/a%"))
	})

	t.Run("Should rewrite dates as UTC timestamps", func(t *testing.T) {
		tests := []struct {
			input    string
			expected string
		}{
			{"2024-01-15", "2024-01-15T00:00:00.000Z"},
			{"2024-01-15T10:30:00Z", "2024-01-15T10:30:00.000Z"},
			{"2024-01-15T10:30:00+05:30", "2024-01-15T05:00:00.000Z"},
			{"2024-01-15 08:05:09", "2024-01-15T08:05:09.000Z"},
			{"01/15/2024", "2024-01-15T00:00:00.000Z"},
			{"Jan 15, 2024", "2024-01-15T00:00:00.000Z"},
			{"15-Jan-2024", "2024-01-15T00:00:00.000Z"},
			{"01-15-24", "2024-01-15T00:00:00.000Z"},
			{"1/15/24", "2024-01-15T00:00:00.000Z"},
			{"1/15/24 0:00", "2024-01-15T00:00:00.000Z"},
			{"1/15/24 13:45", "2024-01-15T13:45:00.000Z"},
			{"15-Jan-24", "2024-01-15T00:00:00.000Z"},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				result := Value(tt.input)
				require.IsType(t, "", result)
				assert.Equal(t, tt.expected, result)

				parsed, err := time.Parse(TimestampLayout, result.(string))
				require.NoError(t, err)
				assert.Equal(t, time.UTC, parsed.Location())
			})
		}
	})

	t.Run("Should keep instant when round-tripping a zoned timestamp", func(t *testing.T) {
		input := "2023-11-30T23:15:42.250-08:00"
		original, err := time.Parse(time.RFC3339Nano, input)
		require.NoError(t, err)

		result := Value(input)
		parsed, err := time.Parse(time.RFC3339Nano, result.(string))
		require.NoError(t, err)
		assert.True(t, original.Equal(parsed))
	})

	t.Run("Should canonicalize numeric strings", func(t *testing.T) {
		tests := []struct {
			input    string
			expected string
		}{
			{"007.50", "7.5"},
			{"42", "42"},
			{"-0.0", "0"},
			{"1e3", "1000"},
			{" 12.000 ", "12"},
			{"0.0000001", "1e-7"},
			{"2.5e21", "2.5e+21"},
			{"20240115", "20240115"},
		}

		for _, tt := range tests {
			t.Run(tt.input, func(t *testing.T) {
				assert.Equal(t, tt.expected, Value(tt.input))
			})
		}
	})

	t.Run("Should map NULL to the missing marker", func(t *testing.T) {
		assert.Equal(t, MissingValue, Value("NULL"))
		assert.Equal(t, -1, Value(`"NULL"`))
	})

	t.Run("Should strip enclosing quotes and unescape inner quotes", func(t *testing.T) {
		assert.Equal(t, `Acme "Gold" Ltd`, Value(`"Acme \"Gold\" Ltd"`))
		assert.Equal(t, "7.5", Value(`"7.50"`))
	})

	t.Run("Should leave other text unchanged", func(t *testing.T) {
		assert.Equal(t, "Acme Brand", Value("Acme Brand"))
		assert.Equal(t, "null", Value("null"))
		assert.Equal(t, "", Value(""))
		assert.Equal(t, "0x1A", Value("0x1A"))
	})
}

func TestRecord(t *testing.T) {
	t.Run("Should keep every key and only change values", func(t *testing.T) {
		raw := RawRow{
			"brand_name":  "X",
			"order_id":    "0012",
			"order_code":  "A1",
			"margin":      "45.5%",
			"created_at":  "2024-01-15",
			"discount_id": "NULL",
		}

		row := Record(raw)

		assert.Len(t, row, len(raw))
		assert.Equal(t, "X", row["brand_name"])
		assert.Equal(t, "12", row["order_id"])
		assert.Equal(t, "A1", row["order_code"])
		assert.InDelta(t, 0.455, row["margin"], 1e-12)
		assert.Equal(t, "2024-01-15T00:00:00.000Z", row["created_at"])
		assert.Equal(t, -1, row["discount_id"])
	})

	t.Run("Should pass non-string values through", func(t *testing.T) {
		row := Values(map[string]interface{}{
			"order_id": MissingValue,
			"score":    3.5,
			"code":     "009",
		})

		assert.Equal(t, -1, row["order_id"])
		assert.Equal(t, 3.5, row["score"])
		assert.Equal(t, "9", row["code"])
	})
}
