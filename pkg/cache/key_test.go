package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "host and endpoint",
			key: CacheKey{
				Host:     "api.octopus.energy",
				Endpoint: "/v1/products/",
			},
			want: "agile:api.octopus.energy:v1/products",
		},
		{
			name: "query params sorted",
			key: CacheKey{
				Host:     "api.octopus.energy",
				Endpoint: "/v1/rates/",
				QueryParams: url.Values{
					"period_to":   []string{"b"},
					"period_from": []string{"a"},
				},
			},
			want: "agile:api.octopus.energy:v1/rates:period_from=a:period_to=b",
		},
		{
			name: "host lowercased",
			key: CacheKey{
				Host:     "API.Octopus.Energy",
				Endpoint: "/v1/",
			},
			want: "agile:api.octopus.energy:v1",
		},
		{
			name: "multi-value param",
			key: CacheKey{
				Endpoint:    "/rates",
				QueryParams: url.Values{"page": []string{"2", "1"}},
			},
			want: "agile:rates:page=1,2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyFromURL_Deterministic(t *testing.T) {
	a, err := url.Parse("https://api.octopus.energy/v1/rates/?period_from=x&period_to=y")
	if err != nil {
		t.Fatal(err)
	}
	b, err := url.Parse("https://api.octopus.energy/v1/rates/?period_to=y&period_from=x")
	if err != nil {
		t.Fatal(err)
	}

	if KeyFromURL(a).String() != KeyFromURL(b).String() {
		t.Errorf("keys differ for equivalent URLs: %q vs %q", KeyFromURL(a), KeyFromURL(b))
	}
}
