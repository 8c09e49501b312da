package ahocorasick

// Match reports whether any keyword occurs in text. It returns at the first
// byte that completes a keyword and never allocates.
func (a *Automaton) Match(text []byte) bool {
	var s int32
	for _, c := range text {
		s = a.trans[int(s)<<8|int(c)]
		if a.match[s] {
			return true
		}
	}
	return false
}

// MatchString is Match for strings, without converting to []byte.
func (a *Automaton) MatchString(text string) bool {
	var s int32
	for i := 0; i < len(text); i++ {
		s = a.trans[int(s)<<8|int(text[i])]
		if a.match[s] {
			return true
		}
	}
	return false
}
