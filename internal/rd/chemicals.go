// Package rd holds the vocabulary shared by every reaction-diffusion backend:
// chemical naming, parameter lists, neighborhood descriptions, the rule
// variants and the configuration errors reported when they do not fit.
package rd

// ChemicalName returns the conventional name of chemical i. Indices 0-25 map
// to "a".."z"; larger indices continue as "aa", "ab", ... like spreadsheet
// columns.
func ChemicalName(i int) string {
	if i < 0 {
		panic("rd: negative chemical index")
	}
	if i < 26 {
		return string(rune('a' + i))
	}
	return ChemicalName(i/26-1) + string(rune('a'+i%26))
}

// ChemicalIndex is the inverse of ChemicalName.
func ChemicalIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	idx := 0
	for _, r := range name {
		if r < 'a' || r > 'z' {
			return 0, false
		}
		idx = idx*26 + int(r-'a') + 1
	}
	return idx - 1, true
}

// ChemicalNames returns the names of the first n chemicals.
func ChemicalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = ChemicalName(i)
	}
	return names
}
