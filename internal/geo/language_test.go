package geo

import (
	"reflect"
	"testing"
)

func TestPreferredLanguages(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   []string
	}{
		{
			"weighted mix",
			"en-US,es;q=0.1,en;q=0.5",
			[]string{"en-us", "en", "es", "en"},
		},
		{
			"single tag",
			"fr",
			[]string{"fr", "en"},
		},
		{
			"empty header",
			"",
			[]string{"en"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PreferredLanguages(tc.header); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("PreferredLanguages(%q) = %v, want %v", tc.header, got, tc.want)
			}
		})
	}
}

func TestPreferredName(t *testing.T) {
	names := map[string]string{
		"de": "Kalifornien",
		"en": "California",
		"fr": "Californie",
		"ja": "カリフォルニア州",
	}

	langs := []string{"en-us", "en", "es", "en"}
	if got := preferredName(langs, names); got != "California" {
		t.Errorf("expected the dialect to widen to en, got %q", got)
	}

	if got := preferredName([]string{"fu"}, names); got != "" {
		t.Errorf("expected no match for an unknown language, got %q", got)
	}

	if got := preferredName([]string{"ja", "en"}, names); got != "カリフォルニア州" {
		t.Errorf("expected the first preference to win, got %q", got)
	}
}
