package patcher

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Transform turns the raw answer into the value that gets written.
type Transform func(string) string

var transforms = map[string]Transform{
	"":         Identity,
	"identity": Identity,
	"trim":     strings.TrimSpace,
	"id_strip": IDStrip,
}

// LookupTransform returns the transform registered under name.
func LookupTransform(name string) (Transform, error) {
	t, ok := transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q, expected one of %s", name, strings.Join(TransformNames(), ", "))
	}
	return t, nil
}

// TransformNames lists the registered transform names.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func Identity(s string) string {
	return s
}

// docIDRegex matches the id segment of Google Forms and Sheets URLs, both
// the editor form (/d/<id>/) and the published form (/d/e/<id>/).
var docIDRegex = regexp.MustCompile(`/d/(?:e/)?([A-Za-z0-9_-]+)`)

// IDStrip extracts a document id from a Google Forms or Sheets URL. Input
// that is not such a URL is returned trimmed, so a bare id passes through.
func IDStrip(s string) string {
	s = strings.TrimSpace(s)
	if m := docIDRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if u, err := url.Parse(s); err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id
		}
	}
	return s
}
