// Package payload renders the JavaScript bootstrap template that gets
// injected into SteamWebHelper's SharedJSContext.
package payload

import (
	"strconv"
	"strings"
)

// Render substitutes the literal tokens $PORT, $SECRET, and $REPLACE in
// template with the string forms of port, secret, and replace. Tokens
// are matched as exact bytewise substrings; none of the three tokens is
// a substring of another, so left-to-right replacement order never
// produces ambiguous overlaps. The secret alphabet (see internal/secret)
// is constrained precisely so it never needs escaping once inlined here.
func Render(template string, port uint16, replace bool, secret string) string {
	r := strings.NewReplacer(
		"$PORT", portString(port),
		"$SECRET", secret,
		"$REPLACE", boolString(replace),
	)
	return r.Replace(template)
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
