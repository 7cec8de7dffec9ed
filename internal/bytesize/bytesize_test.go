package bytesize

import (
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"512B", 512, false},
		{"1Ki", KiB, false},
		{"64MiB", 64 * MiB, false},
		{"1gi", GiB, false},
		{"2 Ti", 2 * TiB, false},
		{"100MB", 100 * MB, false},
		{"1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"  8K ", 8 * KB, false},
		{"", 0, true},
		{"lots", 0, true},
		{"10XB", 0, true},
		{"-1Mi", 0, true},
		{"99999999999999999999Ti", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "1Gi", GiB.String())
	assert.Equal(t, "64Mi", (64 * MiB).String())
	assert.Equal(t, "1000", KB.String())
	assert.Equal(t, "1536Ki", (MiB + 512*KiB).String())
}

func TestTextRoundTrip(t *testing.T) {
	text, err := (256 * MiB).MarshalText()
	require.NoError(t, err)

	var b ByteSize
	require.NoError(t, b.UnmarshalText(text))
	assert.Equal(t, 256*MiB, b)
}

func TestDecodeHook(t *testing.T) {
	type tunables struct {
		Memtable ByteSize `mapstructure:"memtable"`
		Cache    ByteSize `mapstructure:"cache"`
		Label    string   `mapstructure:"label"`
	}

	var out tunables
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: DecodeHook(),
		Result:     &out,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"memtable": "64Mi",
		"cache":    float64(2048),
		"label":    "1Gi",
	}))
	assert.Equal(t, 64*MiB, out.Memtable)
	assert.Equal(t, ByteSize(2048), out.Cache)
	assert.Equal(t, "1Gi", out.Label)
}
