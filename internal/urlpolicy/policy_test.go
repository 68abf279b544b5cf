package urlpolicy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/urlpolicy"
)

func TestNewRejectsInvalidPattern(t *testing.T) {
	_, err := urlpolicy.New([]string{"("}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allow pattern")

	_, err = urlpolicy.New(nil, []string{"["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny pattern")
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name  string
		allow []string
		deny  []string
		url   string
		want  bool
	}{
		{
			name:  "allow match passes",
			allow: []string{`/inventory/`},
			url:   "https://dealer.example/inventory/used-cars",
			want:  true,
		},
		{
			name:  "no allow match is rejected",
			allow: []string{`/inventory/`},
			url:   "https://dealer.example/about-us",
			want:  false,
		},
		{
			name: "empty allow list rejects everything",
			url:  "https://dealer.example/inventory/used-cars",
			want: false,
		},
		{
			name:  "deny wins over allow",
			allow: []string{`/inventory/`},
			deny:  []string{`/inventory/sold/`},
			url:   "https://dealer.example/inventory/sold/123",
			want:  false,
		},
		{
			name:  "deny without allow match still rejects",
			allow: []string{`/inventory/`},
			deny:  []string{`\.pdf$`},
			url:   "https://dealer.example/brochure.pdf",
			want:  false,
		},
		{
			name:  "second allow pattern matches",
			allow: []string{`/inventory/`, `/vehicles/`},
			url:   "https://dealer.example/vehicles/vin/1HGCM82633A004352",
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := urlpolicy.New(tt.allow, tt.deny)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Allowed(tt.url))
		})
	}
}

func TestAllowedIsPure(t *testing.T) {
	p := urlpolicy.MustNew([]string{`/inventory/`}, []string{`/sold/`})

	const url = "https://dealer.example/inventory/honda-civic"
	first := p.Allowed(url)
	for range 100 {
		assert.Equal(t, first, p.Allowed(url), "same URL must always evaluate the same")
	}
}

func TestPatternCounts(t *testing.T) {
	p := urlpolicy.MustNew([]string{"a", "b"}, []string{"c"})
	assert.Equal(t, 2, p.AllowCount())
	assert.Equal(t, 1, p.DenyCount())
}
