package postgres

import (
	"regexp"
	"strings"
)

// identPattern matches dotted session-attribute names (e.g. appsec.user_id).
// Anything else is rejected before it can reach a connection.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func validIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// quoteLiteral escapes a value for interpolation into SET, which takes no
// bind parameters.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
