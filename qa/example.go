package qa

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NewExample normalizes a raw input into an Example.
//
// The document is split into whitespace tokens while tracking, for every
// rune, the token it belongs to; the character answer offset is then mapped
// onto a token span.
//
// In training mode, an answerable example whose answer text cannot be
// exactly recovered from the whitespace tokens is dropped: NewExample
// returns (nil, nil). This is accepted lossy behavior (answer offsets may
// land on malformed Unicode boundaries), not an error.
//
// Supplying more than one answer offset for an answerable training question
// is an error.
func NewExample(in Input, isTraining bool) (*Example, error) {
	var docTokens []string
	var charToWord []int
	prevIsWhitespace := true
	for _, r := range in.DocText {
		if isWhitespace(r) {
			prevIsWhitespace = true
		} else {
			if prevIsWhitespace {
				docTokens = append(docTokens, string(r))
			} else {
				docTokens[len(docTokens)-1] += string(r)
			}
			prevIsWhitespace = false
		}
		charToWord = append(charToWord, len(docTokens)-1)
	}

	if len(in.AnswerStarts) != 1 && isTraining && !in.IsImpossible {
		return nil, errors.Errorf(
			"example %s: for training, each question should have exactly 1 answer, got %d",
			in.ID, len(in.AnswerStarts))
	}

	answerText := ""
	if len(in.AnswerTexts) > 0 {
		answerText = in.AnswerTexts[0]
	}

	startToken, endToken := -1, -1
	if isTraining && !in.IsImpossible {
		answerStart := in.AnswerStarts[0]
		answerLen := len([]rune(answerText))
		answerEnd := answerStart + answerLen - 1
		if answerStart < 0 || answerEnd >= len(charToWord) || answerLen == 0 {
			klog.Warningf("example %s: answer offsets [%d, %d] out of document range, dropping",
				in.ID, answerStart, answerEnd)
			return nil, nil
		}
		startToken = charToWord[answerStart]
		endToken = charToWord[answerEnd]
		// Offsets inside a leading whitespace run map to no token.
		if startToken < 0 {
			klog.Warningf("example %s: answer offset %d precedes the first token, dropping",
				in.ID, answerStart)
			return nil, nil
		}

		// Only keep examples where the answer text can be exactly recovered
		// from the whitespace tokens. Failures are usually due to weird
		// Unicode in the source data.
		actualText := strings.Join(docTokens[startToken:endToken+1], " ")
		cleanedAnswerText := strings.Join(whitespaceTokenize(answerText), " ")
		if !strings.Contains(actualText, cleanedAnswerText) {
			klog.Warningf("example %s: could not find answer: %q vs. %q, dropping",
				in.ID, actualText, cleanedAnswerText)
			return nil, nil
		}
	}

	return &Example{
		ID:           in.ID,
		DocTokens:    docTokens,
		QuestionText: in.QuestionText,
		AnswerText:   answerText,
		StartToken:   startToken,
		EndToken:     endToken,
		IsImpossible: in.IsImpossible,
	}, nil
}
