package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	t.Run("ValidSizes", func(t *testing.T) {
		cases := []struct {
			input string
			want  ByteSize
		}{
			// Config defaults and common overrides.
			{"8Mi", 8 * MiB},
			{"1Mi", 1 * MiB},
			{"512Ki", 512 * KiB},
			{"64Mi", 64 * MiB},

			// Plain numbers count as bytes.
			{"0", 0},
			{"1024", 1 * KiB},
			{"8388608", 8 * MiB},
			{"1024B", 1 * KiB},

			// Binary vs decimal units.
			{"1KiB", 1 * KiB},
			{"1KB", 1 * KB},
			{"100MiB", 100 * MiB},
			{"100MB", 100 * MB},
			{"1Gi", 1 * GiB},
			{"1G", 1 * GB},
			{"1TiB", 1 * TiB},
			{"1TB", 1 * TB},

			// Suffixes are case-insensitive and whitespace-tolerant.
			{"1gi", 1 * GiB},
			{"1GI", 1 * GiB},
			{"  1Gi", 1 * GiB},
			{"1Gi  ", 1 * GiB},
			{"1 Gi", 1 * GiB},

			// Fractional sizes.
			{"1.5Mi", ByteSize(1.5 * float64(MiB))},
			{"0.5Gi", ByteSize(0.5 * float64(GiB))},
		}

		for _, tc := range cases {
			got, err := ParseByteSize(tc.input)
			require.NoError(t, err, "input %q", tc.input)
			assert.Equal(t, tc.want, got, "input %q", tc.input)
		}
	})

	t.Run("InvalidSizes", func(t *testing.T) {
		for _, input := range []string{"", "   ", "1Xi", "-1Gi", "Gi", "abc"} {
			_, err := ParseByteSize(input)
			assert.Error(t, err, "input %q", input)
		}
	})
}

func TestUnmarshalText(t *testing.T) {
	t.Run("DecodesConfigValue", func(t *testing.T) {
		var b ByteSize
		require.NoError(t, b.UnmarshalText([]byte("8Mi")))
		assert.Equal(t, 8*MiB, b)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		var b ByteSize
		assert.Error(t, b.UnmarshalText([]byte("lots")))
	})
}

func TestString(t *testing.T) {
	cases := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{8 * MiB, "8.00MiB"},
		{1 * GiB, "1.00GiB"},
		{2 * TiB, "2.00TiB"},
		{ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.size.String())
	}
}

func TestUint64(t *testing.T) {
	assert.Equal(t, uint64(8*1024*1024), (8 * MiB).Uint64())
}
