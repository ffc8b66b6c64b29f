package course

import (
	"strings"
	"unicode"
)

// abbreviations that end with a period but do not terminate a sentence.
// Compared lowercase, without the trailing period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"inc": true, "ltd": true, "co": true, "corp": true,
	"i.e": true, "e.g": true, "cf": true, "al": true,
	"fig": true, "no": true, "vol": true, "pp": true,
	"approx": true, "dept": true, "est": true, "min": true, "max": true,
	"a.m": true, "p.m": true, "u.s": true, "u.k": true,
}

// splitSentences breaks text into sentences on `.`, `!` or `?` followed by
// whitespace, skipping boundaries where the preceding token is a known
// abbreviation. Whitespace runs (including newlines) are collapsed to single
// spaces so transcripts read as continuous prose.
func splitSentences(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	var sentences []string
	start := 0
	runes := []rune(normalized)

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// Consume a run of terminators ("?!", "...").
		end := i
		for end+1 < len(runes) && isTerminator(runes[end+1]) {
			end++
		}
		// A boundary needs trailing whitespace; end of text also counts.
		if end+1 < len(runes) && runes[end+1] != ' ' {
			i = end
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes[start:i]) {
			i = end
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : end+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end + 2 // skip the terminator run and the following space
		i = end + 1
	}

	if start < len(runes) {
		if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
			sentences = append(sentences, rest)
		}
	}

	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isAbbreviation reports whether the text before a period ends in a known
// abbreviation (e.g. "Dr" in "Dr. Smith", "e.g" in "e.g. this").
func isAbbreviation(before []rune) bool {
	i := len(before)
	for i > 0 && !unicode.IsSpace(before[i-1]) {
		i--
	}
	word := strings.ToLower(string(before[i:]))
	word = strings.TrimSuffix(word, ".")
	return abbreviations[word]
}
