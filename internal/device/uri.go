package device

import (
	"fmt"
	"strings"
	"unicode"
)

// uriScheme is the fixed, non-configurable resource URI shape.
// Example: iot://home/living-room/main-light/state
const uriScheme = "iot://home/%s/%s/state"

// BuildResourceURI computes the canonical resource URI for a device from
// its location and friendly name. The URI is derived, never stored.
func BuildResourceURI(location, name string) string {
	return fmt.Sprintf(uriScheme, Slugify(location), Slugify(name))
}

// Slugify normalizes a human-facing label into a URI segment: case-folded,
// with every run of non-alphanumeric characters collapsed to a single
// hyphen and leading/trailing hyphens trimmed.
//
//	Slugify("  MAIN  LIGHT ") == "main-light"
//	Slugify("Living-Room")    == "living-room"
func Slugify(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	lastHyphen := true // Suppress a leading hyphen.
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
