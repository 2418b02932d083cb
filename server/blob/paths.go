package blob

import (
	"net/url"
	"strings"
)

// PathCandidates lists the object paths a stored reference may denote,
// most likely first. Older rows carry full URLs, leading slashes, a
// "public/" prefix or percent-encoding.
func PathCandidates(stored, bucket string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	raw := strings.TrimSpace(stored)
	bases := []string{raw}
	if extracted, ok := extractFromURL(raw, bucket); ok {
		bases = append(bases, extracted)
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		bases = append(bases, raw[:i])
	}

	for _, b := range bases {
		decoded, err := url.PathUnescape(b)
		if err == nil {
			add(decoded)
		}
		add(b)
		add(escapePath(b))
	}

	// Second pass on whatever we have so far.
	for _, p := range append([]string(nil), out...) {
		trimmed := strings.TrimLeft(p, "/")
		add(trimmed)
		add(strings.TrimPrefix(trimmed, "public/"))
		if bucket != "" {
			add(strings.TrimPrefix(trimmed, bucket+"/"))
		}
	}
	return out
}

func extractFromURL(raw, bucket string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", false
	}
	p := u.EscapedPath()
	for _, marker := range []string{"/object/public/", "/object/sign/", "/object/"} {
		if i := strings.Index(p, marker); i >= 0 {
			rest := p[i+len(marker):]
			if bucket != "" {
				rest = strings.TrimPrefix(rest, bucket+"/")
			}
			return rest, rest != ""
		}
	}
	return strings.TrimPrefix(p, "/"), p != ""
}
