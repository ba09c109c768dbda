package workdir

// Glob reports whether name matches pattern. Unlike filepath.Match, `*`
// matches any run of characters including the path separator, which is the
// behavior ignore files and staging patterns rely on. `?` matches a single
// character and `[...]` matches a character class (`!` or `^` negates,
// ranges allowed).
func Glob(pattern, name string) bool {
	var px, nx int
	starPx, starNx := -1, 0

	for nx < len(name) {
		if px < len(pattern) {
			switch c := pattern[px]; c {
			case '?':
				px++
				nx++
				continue
			case '*':
				starPx, starNx = px, nx
				px++
				continue
			case '[':
				if ok, width := matchClass(pattern[px:], name[nx]); ok {
					px += width
					nx++
					continue
				}
			default:
				if c == name[nx] {
					px++
					nx++
					continue
				}
			}
		}
		// Mismatch: retry from the last star, consuming one more character.
		if starPx >= 0 {
			starNx++
			px = starPx + 1
			nx = starNx
			continue
		}
		return false
	}

	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

// matchClass matches c against the class starting at pat[0] == '[' and
// returns how many pattern bytes the class spans. An unterminated class is
// treated as a literal '['.
func matchClass(pat string, c byte) (bool, int) {
	i := 1
	negate := false
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		negate = true
		i++
	}

	matched := false
	first := true
	for i < len(pat) && (pat[i] != ']' || first) {
		first = false
		lo := pat[i]
		hi := lo
		if i+2 < len(pat) && pat[i+1] == '-' && pat[i+2] != ']' {
			hi = pat[i+2]
			i += 3
		} else {
			i++
		}
		if lo <= c && c <= hi {
			matched = true
		}
	}

	if i >= len(pat) {
		return c == '[', 1
	}
	return matched != negate, i + 1
}
