package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeToExpire(t *testing.T) {
	cases := map[int64]string{
		0:     "< 1m",
		30:    "< 1m",
		-100:  "Expired",
		60:    "1m",
		3600:  "1h",
		7200:  "2h",
		86400: "1d",
		90000: "1d 1h",
		93600: "1d 2h",
		93660: "1d 2h 1m",
		86460: "1d 1m",
	}
	for in, want := range cases {
		assert.Equal(t, want, TimeToExpire(in), "seconds=%d", in)
	}
}

func TestVolume(t *testing.T) {
	ptr := func(v float64) *float64 { return &v }

	assert.Equal(t, "$0", Volume(nil))
	assert.Equal(t, "$0", Volume(ptr(math.NaN())))
	assert.Equal(t, "$0", Volume(ptr(0)))
	assert.Equal(t, "$500", Volume(ptr(500)))
	assert.Equal(t, "$1.5K", Volume(ptr(1_500)))
	assert.Equal(t, "$50.0K", Volume(ptr(50_000)))
	assert.Equal(t, "$1.2M", Volume(ptr(1_200_000)))
	assert.Equal(t, "$5.5M", Volume(ptr(5_500_000)))
}
