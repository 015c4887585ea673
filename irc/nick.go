package irc

import "strings"

// AltSeparator separates a base nick from a status decoration, as in "nick|away".
const AltSeparator = "|"

// Canonicalize maps a nick to the key used to decide whether two nicks belong
// to the same person. Everything from the first AltSeparator on is dropped,
// then trailing digits and underscores, then the result is lower-cased:
//
//	Shauna, shauna_2, SHAUNA1, shauna|lunch -> "shauna"
//
// A nick made only of digits and underscores canonicalizes to "".
func Canonicalize(nick string) string {
	base, _, _ := strings.Cut(nick, AltSeparator)
	base = strings.TrimRight(base, "_0123456789")
	return strings.ToLower(base)
}

// SameNick reports whether a and b canonicalize to the same key.
func SameNick(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}
