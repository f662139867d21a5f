package pipeline

import (
	"fmt"
	"strings"
)

// ChunkDraft is a chunk of text before embedding, with its anchor within the
// source document.
type ChunkDraft struct {
	Content string
	Anchor  string
	Index   int
}

// ChunkFunc splits text into chunk drafts.
type ChunkFunc func(text string) ([]ChunkDraft, error)

// SentenceChunker creates a chunker that groups up to maxSentencesPerChunk
// sentences into a chunk. Anchors are sentence-range labels like "s0-s2".
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]ChunkDraft, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		sentences := SplitSentences(text)
		if len(sentences) == 0 {
			return []ChunkDraft{}, nil
		}

		var drafts []ChunkDraft
		for start := 0; start < len(sentences); start += maxSentencesPerChunk {
			end := start + maxSentencesPerChunk
			if end > len(sentences) {
				end = len(sentences)
			}

			anchor := fmt.Sprintf("s%d", start)
			if end-start > 1 {
				anchor = fmt.Sprintf("s%d-s%d", start, end-1)
			}

			drafts = append(drafts, ChunkDraft{
				Content: strings.Join(sentences[start:end], " "),
				Anchor:  anchor,
				Index:   len(drafts),
			})
		}

		return drafts, nil
	}
}

// SplitSentences splits text into trimmed sentences on terminal punctuation.
func SplitSentences(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "! ", "!|")
	text = strings.ReplaceAll(text, "? ", "?|")
	text = strings.ReplaceAll(text, ". ", ".|")
	text = strings.ReplaceAll(text, "\n", "|")

	parts := strings.Split(text, "|")
	var sentences []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}

	return sentences
}
