// Package chunker splits document text into overlapping, bounded-length passages.
package chunker

import "strings"

// DefaultTargetSize is the character length at which a chunk is emitted.
const DefaultTargetSize = 500

// DefaultOverlap is the approximate character overlap carried into the next chunk.
const DefaultOverlap = 50

// Chunk splits text into passages on word boundaries. Words are accumulated
// until the running character length (each word plus one separator) reaches
// targetSize, at which point the chunk is emitted and a suffix of its words
// approximately overlap characters long seeds the next chunk. The trailing
// partial chunk is always emitted. Empty input yields no chunks.
//
// The overlap is a soft target: the carried word count is derived from the
// average word length of the emitted chunk, so the actual character overlap
// varies with the text.
func Chunk(text string, targetSize, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}

	var chunks []string
	var current []string
	length := 0

	for _, word := range words {
		current = append(current, word)
		length += len(word) + 1

		if length >= targetSize {
			chunks = append(chunks, strings.Join(current, " "))
			carry := overlapWordCount(overlap, length, len(current))
			if carry > 0 {
				current = append([]string(nil), current[len(current)-carry:]...)
				length = 0
				for _, w := range current {
					length += len(w) + 1
				}
			} else {
				current = nil
				length = 0
			}
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapWordCount returns how many trailing words to carry into the next
// chunk so that their combined length approximates overlap characters.
func overlapWordCount(overlap, chunkLen, wordCount int) int {
	if overlap <= 0 || wordCount == 0 {
		return 0
	}
	n := int(float64(overlap) / (float64(chunkLen) / float64(wordCount)))
	if n > wordCount {
		n = wordCount
	}
	return n
}
