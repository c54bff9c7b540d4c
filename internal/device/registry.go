// internal/device/registry.go
package device

import "strings"

// defaultApps maps common spoken app names to package identifiers. The
// configured apps map is merged over these, so deployments can add or
// override entries.
var defaultApps = map[string]string{
	"chatgpt":    "com.openai.chatgpt",
	"gmail":      "com.google.android.gm",
	"whatsapp":   "com.whatsapp",
	"youtube":    "com.google.android.youtube",
	"chrome":     "com.android.chrome",
	"settings":   "com.android.settings",
	"maps":       "com.google.android.apps.maps",
	"spotify":    "com.spotify.music",
	"instagram":  "com.instagram.android",
	"facebook":   "com.facebook.katana",
	"twitter":    "com.twitter.android",
	"x":          "com.twitter.android",
	"camera":     "com.android.camera",
	"photos":     "com.google.android.apps.photos",
	"phone":      "com.android.dialer",
	"messages":   "com.google.android.apps.messaging",
	"calculator": "com.android.calculator2",
	"clock":      "com.android.deskclock",
	"play store": "com.android.vending",
}

// minSimilarity is the score below which a fuzzy match is rejected; spoken
// app names arrive mangled, but a wrong launch is worse than a miss.
const minSimilarity = 0.72

// Registry resolves spoken app names to package identifiers, tolerating the
// fuzz speech recognition introduces.
type Registry struct {
	apps map[string]string
}

// NewRegistry merges extra name-to-package entries over the built-in set.
func NewRegistry(extra map[string]string) *Registry {
	apps := make(map[string]string, len(defaultApps)+len(extra))
	for k, v := range defaultApps {
		apps[normalizeName(k)] = v
	}
	for k, v := range extra {
		apps[normalizeName(k)] = v
	}
	return &Registry{apps: apps}
}

// Resolve returns the package identifier for a spoken name: exact match
// first, then substring, then best similarity above the threshold.
func (r *Registry) Resolve(name string) (string, bool) {
	canon, ok := r.Canonical(name)
	if !ok {
		return "", false
	}
	return r.apps[canon], true
}

// Canonical returns the registry's spelling of a fuzzy name.
func (r *Registry) Canonical(name string) (string, bool) {
	n := normalizeName(name)
	if n == "" {
		return "", false
	}
	if _, ok := r.apps[n]; ok {
		return n, true
	}

	// Substring matching needs at least three characters, or "x" would
	// swallow half the registry.
	for known := range r.apps {
		if (len(n) >= 3 && strings.Contains(known, n)) ||
			(len(known) >= 3 && strings.Contains(n, known)) {
			return known, true
		}
	}

	best, bestScore := "", 0.0
	for known := range r.apps {
		if s := similarity(n, known); s > bestScore {
			best, bestScore = known, s
		}
	}
	if bestScore >= minSimilarity {
		return best, true
	}
	return "", false
}

func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Trim(n, ".,!?")
	return strings.Join(strings.Fields(n), " ")
}

// similarity scores two names in [0,1] by edit distance over the longer
// length.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
