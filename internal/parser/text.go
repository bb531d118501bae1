package parser

// TruncationSuffix is appended to every truncated body
const TruncationSuffix = "\n... (truncated)"

// TruncateBody shortens body to at most maxChars characters, preferring to
// cut at a newline, then at a space, when the boundary falls past 70% of the
// available window. The suffix is appended in all truncation cases.
func TruncateBody(body string, maxChars int) string {
	runes := []rune(body)
	if len(runes) <= maxChars {
		return body
	}

	suffixLen := len([]rune(TruncationSuffix))
	window := maxChars - suffixLen
	if window < 1 {
		window = 1
	}

	cut := window
	threshold := window * 7 / 10
	if idx := lastIndexRune(runes[:window], '\n'); idx > threshold {
		cut = idx
	} else if idx := lastIndexRune(runes[:window], ' '); idx > threshold {
		cut = idx
	}

	return string(runes[:cut]) + TruncationSuffix
}

// SplitBody cuts body into an ordered sequence of chunks of at most maxChars
// characters each. Cuts prefer, in order, the last paragraph break, the last
// newline, then the last space past the midpoint of the chunk; the consumed
// boundary characters are dropped.
func SplitBody(body string, maxChars int) []string {
	runes := []rune(body)
	if len(runes) <= maxChars {
		return []string{body}
	}

	var chunks []string
	rem := runes
	for len(rem) > maxChars {
		window := rem[:maxChars]
		half := maxChars / 2

		cut, skip := maxChars, 0
		if idx := lastIndexPara(window); idx > half {
			cut, skip = idx, 2
		} else if idx := lastIndexRune(window, '\n'); idx > half {
			cut, skip = idx, 1
		} else if idx := lastIndexRune(window, ' '); idx > half {
			cut, skip = idx, 1
		}

		chunks = append(chunks, string(rem[:cut]))
		rem = rem[cut+skip:]
	}
	return append(chunks, string(rem))
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// lastIndexPara finds the start of the last "\n\n" paragraph break
func lastIndexPara(runes []rune) int {
	for i := len(runes) - 2; i >= 0; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i
		}
	}
	return -1
}
