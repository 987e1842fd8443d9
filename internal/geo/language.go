package geo

import (
	"fmt"
	"sort"
	"strings"
)

// PreferredLanguages orders an Accept-Language header value by quality,
// most preferred first. Tags without an explicit q-weight rank above
// weighted ones, in arrival order; "en" is always appended as the final
// fallback. An empty header yields just the fallback.
func PreferredLanguages(header string) []string {
	if header == "" {
		return []string{"en"}
	}

	ranked := make(map[string]string)
	unweighted := 0
	for _, part := range strings.Split(header, ",") {
		if lang, weight, found := strings.Cut(part, ";"); found {
			ranked[strings.ToLower(weight)] = strings.ToLower(lang)
		} else {
			ranked[fmt.Sprintf("q=1.%02d", unweighted)] = strings.ToLower(part)
			unweighted++
		}
	}

	keys := make([]string, 0, len(ranked))
	for k := range ranked {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	langs := make([]string, 0, len(keys)+1)
	for i := len(keys) - 1; i >= 0; i-- {
		langs = append(langs, ranked[keys[i]])
	}
	return append(langs, "en")
}

// preferredName picks the name matching the earliest preferred language,
// widening a dialect tag ("de-at") to its base language ("de") when the
// dialect itself has no entry.
func preferredName(langs []string, names map[string]string) string {
	for _, lang := range langs {
		if name, ok := names[lang]; ok {
			return name
		}
		if base, _, found := strings.Cut(lang, "-"); found {
			if name, ok := names[base]; ok {
				return name
			}
		}
	}
	return ""
}
