package pdfproc

import (
	"strings"
	"unicode"
)

// spanishChars are the accented/ñ characters whose presence nudges
// confidence upward — their absence in Spanish legal text is itself a
// signal of a garbled extraction.
var spanishChars = "áéíóúñÁÉÍÓÚÑ¿¡"

// ExtractionConfidence scores how likely it is that text is a clean
// extraction of Spanish legal prose, in [0,1]. It combines four signals —
// average word length, special-symbol density, sentence-structure
// evidence, and short-word ratio — then applies a small multiplier when
// Spanish-specific characters are present, clamping the result.
func ExtractionConfidence(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	totalLen := 0
	shortWords := 0
	for _, w := range words {
		runes := []rune(w)
		totalLen += len(runes)
		if len(runes) <= 2 {
			shortWords++
		}
	}
	avgWordLen := float64(totalLen) / float64(len(words))
	shortWordRatio := float64(shortWords) / float64(len(words))

	var symbolCount, letterCount int
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsSpace(r) || unicode.IsDigit(r) {
			letterCount++
			continue
		}
		if strings.ContainsRune(".,;:()\"'-", r) {
			continue // normal punctuation, not a garbling signal
		}
		symbolCount++
	}
	symbolDensity := 0.0
	if total := symbolCount + letterCount; total > 0 {
		symbolDensity = float64(symbolCount) / float64(total)
	}

	score := 0.0

	// Average word length typical of Spanish legal prose.
	if avgWordLen >= 3 && avgWordLen <= 12 {
		score += 0.3
	}

	// Special-symbol density under 2% suggests a clean text layer.
	if symbolDensity < 0.02 {
		score += 0.25
	}

	// Sentence-structure evidence: fewer than 60 words per terminator.
	sentenceTerminators := strings.Count(text, ".") + strings.Count(text, "?") + strings.Count(text, "!")
	if sentenceTerminators > 0 && float64(len(words))/float64(sentenceTerminators) < 60 {
		score += 0.25
	}

	// Short-word ratio under 30% — a garbled extraction tends to produce
	// many 1-2 character fragments.
	if shortWordRatio < 0.30 {
		score += 0.20
	}

	if strings.ContainsAny(text, spanishChars) {
		score *= 1.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
