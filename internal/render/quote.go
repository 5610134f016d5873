package render

import "strings"

// Quoter shell-quotes a single command token when it contains characters
// the consuming tool's shell-ish parser would mangle. The strategy is
// selected once per target platform and injected, never branched on at
// call sites.
type Quoter func(string) string

// needsQuoting reports whether a token must be wrapped before it can
// appear on a directive line.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\n'\"`$&|;<>()*?[]#~!{}\\")
}

// posixQuote wraps the token in single quotes, closing and reopening
// around embedded single quotes.
func posixQuote(s string) string {
	if !needsQuoting(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// windowsQuote doubles backslashes before quoting: the consumer on that
// platform family unescapes backslashes outside single-quoted segments.
func windowsQuote(s string) string {
	return posixQuote(strings.ReplaceAll(s, `\`, `\\`))
}

// QuoterFor selects the quoting strategy for a target platform, keyed by
// GOOS-style names.
func QuoterFor(goos string) Quoter {
	if goos == "windows" {
		return windowsQuote
	}
	return posixQuote
}

// ShellJoin quotes every token with q and joins them into one command
// string.
func ShellJoin(q Quoter, tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = q(tok)
	}
	return strings.Join(quoted, " ")
}
