package refine

import (
	"context"
	"strings"
	"unicode"

	"github.com/localscribe/localscribe/internal/segment"
)

// rulesRefiner is the default backend: a deterministic text cleanup that
// needs no model. It drops filler disfluencies, normalizes whitespace,
// capitalizes sentence starts and the pronoun "I", and ensures terminal
// punctuation. Same input always yields the same output.
type rulesRefiner struct{}

// fillers are dropped wherever they appear as standalone words. Only
// unambiguous disfluencies belong here; words like "like" or "well"
// carry meaning too often to strip blindly.
var fillers = map[string]bool{
	"um":   true,
	"uh":   true,
	"uhm":  true,
	"erm":  true,
	"ah":   true,
	"hmm":  true,
	"mhm":  true,
	"mmhm": true,
}

func (r *rulesRefiner) Name() string { return "rules" }

func (r *rulesRefiner) RefineSegments(ctx context.Context, segs []segment.Segment, instructions string) ([]segment.Segment, error) {
	out := make([]segment.Segment, len(segs))
	for i, s := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s
		out[i].RefinedText = cleanText(s.RawText)
	}
	return out, nil
}

func cleanText(raw string) string {
	words := strings.Fields(raw)
	kept := words[:0]
	for _, w := range words {
		if fillers[strings.ToLower(strings.Trim(w, ".,!?;:"))] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return ""
	}

	for i, w := range kept {
		if strings.Trim(w, ".,!?;:") == "i" {
			kept[i] = strings.Replace(w, "i", "I", 1)
		}
	}

	text := strings.Join(kept, " ")
	text = capitalizeSentences(text)

	last := rune(text[len(text)-1])
	if !strings.ContainsRune(".!?", last) {
		// Drop a dangling comma or semicolon before closing the sentence.
		text = strings.TrimRight(text, ",;:")
		text += "."
	}
	return text
}

// capitalizeSentences upcases the first letter of the text and of every
// word following a sentence-ending mark.
func capitalizeSentences(text string) string {
	runes := []rune(text)
	capNext := true
	for i, r := range runes {
		if capNext && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capNext = false
		}
		if r == '.' || r == '!' || r == '?' {
			capNext = true
		}
	}
	return string(runes)
}
