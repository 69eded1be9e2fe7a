package pdfproc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/scjn/scjn-pipeline/internal/domain"
)

// Config controls chunk sizing and boundary behavior.
type Config struct {
	MaxTokens         int
	OverlapTokens     int
	MinChunkTokens    int
	RespectBoundaries bool
}

// DefaultConfig matches the documented defaults (spec §4.7).
func DefaultConfig() Config {
	return Config{MaxTokens: 512, OverlapTokens: 50, MinChunkTokens: 100, RespectBoundaries: true}
}

// Legal-boundary regexes, grounded exactly on the original implementation's
// article/transitory/chapter/title/paragraph/sentence patterns.
var (
	articlePattern    = regexp.MustCompile(`(?i)art[ií]culo\s+\d+[.\-]?`)
	transitoryPattern = regexp.MustCompile(`(?i)transitorio[s]?\b`)
	chapterPattern    = regexp.MustCompile(`(?i)cap[ií]tulo\s+[ivxlcdm\d]+`)
	titlePattern      = regexp.MustCompile(`(?i)t[ií]tulo\s+(primero|segundo|tercero|[ivxlcdm]+)`)
	paragraphPattern  = regexp.MustCompile(`\n\s*\n`)
	sentencePattern   = regexp.MustCompile(`[.!?]\s+`)
)

// boundary is one candidate split point in the source text.
type boundary struct {
	pos      int
	priority int // 3=article-level marker, 2=paragraph, 1=sentence
	kind     domain.BoundaryType
}

// EstimateTokens approximates a BPE token count as word_count * 1.3,
// rounded up — the same fallback the original implementation uses when no
// real tokenizer is available, and the one the pack's Go examples use
// throughout (no Go tiktoken binding appears anywhere in the corpus).
func EstimateTokens(s string) int {
	words := len(strings.Fields(s))
	if words == 0 {
		return 0
	}
	return int(float64(words)*1.3 + 0.999)
}

// Chunk splits text into TextChunks for documentID using cfg. Token counts
// are computed over the final chunk content, so every TextChunk.TokenCount
// is exact relative to EstimateTokens, never merely a target.
func Chunk(documentID string, text string, cfg Config) []domain.TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxTokens <= 0 {
		cfg = DefaultConfig()
	}

	boundaries := detectAllBoundaries(text)

	var chunks []domain.TextChunk
	start := 0
	index := 0
	for start < len(text) {
		end := findChunkEnd(text, start, boundaries, cfg)
		kind := domain.BoundaryForced
		if b := boundaryAt(boundaries, end); b != nil {
			kind = b.kind
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, domain.TextChunk{
				ID:           fmt.Sprintf("%s-chunk-%04d", documentID, index),
				DocumentID:   documentID,
				Content:      content,
				TokenCount:   EstimateTokens(content),
				ChunkIndex:   index,
				BoundaryType: kind,
				Metadata: map[string]string{
					"start_char": fmt.Sprintf("%d", start),
					"end_char":   fmt.Sprintf("%d", end),
				},
			})
			index++
		}

		if end >= len(text) {
			break
		}
		next := end - overlapChars(text, end, cfg.OverlapTokens)
		if next <= start {
			next = end // guarantee forward progress even with pathological overlap config
		}
		start = next
	}
	return chunks
}

// findChunkEnd computes the end offset of the chunk starting at start. With
// RespectBoundaries it scans to a token-count-based target, then prefers
// the highest-priority boundary at or before that target provided the
// resulting chunk already meets MinChunkTokens or the boundary lies within
// 10 bytes of the target; otherwise (or with boundaries disabled) it
// forces a split at the target.
func findChunkEnd(text string, start int, boundaries []boundary, cfg Config) int {
	targetEnd := charOffsetForTokens(text, start, cfg.MaxTokens)
	if targetEnd >= len(text) {
		return len(text)
	}
	if !cfg.RespectBoundaries {
		return targetEnd
	}

	best := -1
	bestPriority := -1
	for _, b := range boundaries {
		if b.pos <= start || b.pos > targetEnd {
			continue
		}
		tokenCount := EstimateTokens(text[start:b.pos])
		satisfiesMin := tokenCount >= cfg.MinChunkTokens
		nearTarget := b.pos >= targetEnd-10
		if !satisfiesMin && !nearTarget {
			continue
		}
		if b.priority > bestPriority || (b.priority == bestPriority && b.pos > best) {
			best = b.pos
			bestPriority = b.priority
		}
	}
	if best > start {
		return best
	}
	return targetEnd
}

// boundaryAt returns the boundary ending exactly at pos, if any, so the
// caller can tag the emitted chunk's BoundaryType.
func boundaryAt(boundaries []boundary, pos int) *boundary {
	for i := range boundaries {
		if boundaries[i].pos == pos {
			return &boundaries[i]
		}
	}
	return nil
}

// charOffsetForTokens walks words from start accumulating the same
// word-count*1.3 estimate EstimateTokens uses, stopping once the target
// token budget is spent, and returns the resulting char offset.
func charOffsetForTokens(text string, start, tokenBudget int) int {
	if tokenBudget <= 0 {
		return start
	}
	remaining := text[start:]
	accumulated := 0.0
	pos := 0
	for _, field := range splitFieldsWithOffsets(remaining) {
		accumulated += 1.3
		if accumulated >= float64(tokenBudget) {
			pos = field.end
			break
		}
		pos = field.end
	}
	if pos == 0 {
		return len(text)
	}
	return start + pos
}

type fieldOffset struct{ start, end int }

// splitFieldsWithOffsets splits s on whitespace like strings.Fields but
// retains each field's byte offset, needed to translate a token budget
// into a char offset.
func splitFieldsWithOffsets(s string) []fieldOffset {
	var out []fieldOffset
	inField := false
	fieldStart := 0
	for i, r := range s {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inField {
			inField = true
			fieldStart = i
		} else if isSpace && inField {
			inField = false
			out = append(out, fieldOffset{fieldStart, i})
		}
	}
	if inField {
		out = append(out, fieldOffset{fieldStart, len(s)})
	}
	return out
}

// overlapChars translates OverlapTokens worth of trailing content ending at
// end back into a character count, for the tail-of-chunk-N/head-of-chunk-
// N+1 overlap. Zero overlap tokens means adjacent, non-overlapping chunks.
func overlapChars(text string, end, overlapTokens int) int {
	if overlapTokens <= 0 {
		return 0
	}
	// Walk backward word by word from end until the overlap budget is
	// spent or we reach the start of the text.
	accumulated := 0.0
	pos := end
	fields := splitFieldsWithOffsets(text[:end])
	for i := len(fields) - 1; i >= 0; i-- {
		accumulated += 1.3
		pos = fields[i].start
		if accumulated >= float64(overlapTokens) {
			break
		}
	}
	return end - pos
}

// detectAllBoundaries collects every candidate boundary in text, sorted by
// position, with article/transitory/chapter/title markers ranked above
// paragraph breaks, which in turn rank above sentence terminators.
func detectAllBoundaries(text string) []boundary {
	var out []boundary
	for _, loc := range articlePattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[1], priority: 3, kind: domain.BoundaryArticle})
	}
	for _, loc := range transitoryPattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[1], priority: 3, kind: domain.BoundaryArticle})
	}
	for _, loc := range chapterPattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[1], priority: 3, kind: domain.BoundaryArticle})
	}
	for _, loc := range titlePattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[1], priority: 3, kind: domain.BoundaryArticle})
	}
	for _, loc := range paragraphPattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[0], priority: 2, kind: domain.BoundaryParagraph})
	}
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		out = append(out, boundary{pos: loc[1], priority: 1, kind: domain.BoundarySentence})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pos < out[j].pos })
	return out
}
