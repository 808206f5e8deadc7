package qa

import (
	"strings"

	"github.com/gomlx/go-qa/tokenizers/basic"
	"k8s.io/klog/v2"
)

// FinalText projects a tokenized, whitespace-normalized prediction back onto
// the raw document substring it was derived from.
//
// The predicted text has been through sub-word tokenization and
// detokenization, so it is normalized (whitespace collapsed, possibly
// lower-cased, accents stripped); origText is the raw substring covering the
// same whitespace tokens and may carry extra characters. For
//
//	predText = "steve smith"
//	origText = "Steve Smith's"
//
// the wanted answer is "Steve Smith": neither input verbatim. origText is
// re-tokenized with the basic tokenizer under the same case folding and the
// prediction is located inside that normalized form; a character-level
// no-space alignment then translates the match back to raw offsets.
//
// Every failure mode of the alignment degrades to returning origText
// unchanged; this function never fails.
func FinalText(predText, origText string, lowerCase bool) string {
	tokText := strings.Join(basic.New(lowerCase).Tokenize(origText), " ")

	startPosition := strings.Index(tokText, predText)
	if startPosition < 0 {
		klog.V(2).Infof("unable to find text %q in %q", predText, origText)
		return origText
	}
	// Offsets below are byte offsets; both sides of the alignment use the
	// same encoding so they cancel out.
	endPosition := startPosition + len(predText) - 1

	origNsText, origNsToS := stripSpaces(origText)
	tokNsText, tokNsToS := stripSpaces(tokText)
	if len(origNsText) != len(tokNsText) {
		klog.V(2).Infof("length not equal after stripping spaces: %q vs %q", origNsText, tokNsText)
		return origText
	}

	// Invert tok's no-space map to go spaced -> no-space.
	tokSToNs := make(map[int]int, len(tokNsToS))
	for nsIndex, sIndex := range tokNsToS {
		tokSToNs[sIndex] = nsIndex
	}

	origStartPosition, ok := mapPosition(startPosition, tokSToNs, origNsToS)
	if !ok {
		klog.V(2).Info("couldn't map start position")
		return origText
	}
	origEndPosition, ok := mapPosition(endPosition, tokSToNs, origNsToS)
	if !ok {
		klog.V(2).Info("couldn't map end position")
		return origText
	}

	return origText[origStartPosition : origEndPosition+1]
}

// stripSpaces removes every space from text, returning the stripped string
// and a map from no-space index to original index.
func stripSpaces(text string) (string, map[int]int) {
	var b strings.Builder
	nsToS := make(map[int]int)
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			continue
		}
		nsToS[b.Len()] = i
		b.WriteByte(text[i])
	}
	return b.String(), nsToS
}

// mapPosition translates a position in the tokenized text to a position in
// the original text through the no-space alignment.
func mapPosition(position int, tokSToNs, origNsToS map[int]int) (int, bool) {
	nsPosition, ok := tokSToNs[position]
	if !ok {
		return 0, false
	}
	origPosition, ok := origNsToS[nsPosition]
	if !ok {
		return 0, false
	}
	return origPosition, true
}
