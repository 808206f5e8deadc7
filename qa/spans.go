package qa

import (
	"strings"

	"github.com/gomlx/go-qa/tokenizers/api"
)

// DocSpan is a contiguous window of sub-word document tokens, used to fit
// long documents into a fixed input length.
type DocSpan struct {
	Start  int // offset into the sub-word document tokens
	Length int
}

// SplitDocSpans partitions numTokens sub-word tokens into overlapping spans
// of at most maxTokensForDoc tokens, sliding by docStride. Spans fully cover
// [0, numTokens) with no gaps; the last span ends exactly at the final
// token.
func SplitDocSpans(numTokens, maxTokensForDoc, docStride int) []DocSpan {
	var spans []DocSpan
	startOffset := 0
	for startOffset < numTokens {
		length := numTokens - startOffset
		if length > maxTokensForDoc {
			length = maxTokensForDoc
		}
		spans = append(spans, DocSpan{Start: startOffset, Length: length})
		if startOffset+length == numTokens {
			break
		}
		startOffset += min(length, docStride)
	}
	return spans
}

// IsMaxContext reports whether spans[curSpanIndex] is the span with maximum
// context for the sub-word token at position.
//
// With a sliding window a token can appear in multiple spans, so its
// predictions would be counted more than once. Only the span maximizing
// min(left context, right context) is trusted; the small span-length
// weighting deterministically breaks ties in favor of longer spans.
func IsMaxContext(spans []DocSpan, curSpanIndex, position int) bool {
	bestScore := -1.0
	bestSpanIndex := -1
	for spanIndex, span := range spans {
		end := span.Start + span.Length - 1
		if position < span.Start || position > end {
			continue
		}
		numLeftContext := position - span.Start
		numRightContext := end - position
		score := float64(min(numLeftContext, numRightContext)) + 0.01*float64(span.Length)
		if bestSpanIndex < 0 || score > bestScore {
			bestScore = score
			bestSpanIndex = spanIndex
		}
	}
	return curSpanIndex == bestSpanIndex
}

// subwordDoc is the sub-word expansion of an example's whitespace tokens,
// with the index maps needed to project spans between the two tokenizations.
type subwordDoc struct {
	tokens    []string
	tokToOrig []int // sub-word position -> whitespace-token index
	origToTok []int // whitespace-token index -> position of its first sub-word
}

// subwordize tokenizes each whitespace token into sub-words, recording the
// alignment in both directions.
func subwordize(docTokens []string, tok api.Tokenizer) subwordDoc {
	var doc subwordDoc
	for i, token := range docTokens {
		doc.origToTok = append(doc.origToTok, len(doc.tokens))
		for _, subToken := range tok.Tokenize(token) {
			doc.tokToOrig = append(doc.tokToOrig, i)
			doc.tokens = append(doc.tokens, subToken)
		}
	}
	return doc
}

// answerSpan projects the whitespace-token answer span of a training example
// onto sub-word token positions.
func (d *subwordDoc) answerSpan(ex *Example, tok api.Tokenizer) (start, end int) {
	start = d.origToTok[ex.StartToken]
	if ex.EndToken < len(ex.DocTokens)-1 {
		// The sub-word span of token i ends right before the first sub-word
		// of token i+1.
		end = d.origToTok[ex.EndToken+1] - 1
	} else {
		end = len(d.tokens) - 1
	}
	return improveAnswerSpan(d.tokens, start, end, tok, ex.AnswerText)
}

// improveAnswerSpan returns a tokenized answer span that better matches the
// annotated answer text.
//
// Character annotations are first projected to whitespace tokens, which can
// drag in surrounding punctuation: answer "1895" inside "(1895-1943)."
// projects to the whole parenthesized token. After sub-word tokenization a
// narrower window often matches the tokenized answer exactly; searching
// start-ascending and end-descending keeps the widest window among matches
// with the same start. When no window matches, the original projection is
// returned.
func improveAnswerSpan(docTokens []string, inputStart, inputEnd int, tok api.Tokenizer, origAnswerText string) (int, int) {
	tokAnswerText := strings.Join(tok.Tokenize(origAnswerText), " ")
	for newStart := inputStart; newStart <= inputEnd; newStart++ {
		for newEnd := inputEnd; newEnd >= newStart; newEnd-- {
			textSpan := strings.Join(docTokens[newStart:newEnd+1], " ")
			if textSpan == tokAnswerText {
				return newStart, newEnd
			}
		}
	}
	return inputStart, inputEnd
}
