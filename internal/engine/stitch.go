package engine

import (
	"sort"
	"strings"

	"github.com/go-dedup/simhash"

	"github.com/localscribe/localscribe/internal/segment"
)

// Adapters that window long inputs internally can emit overlapping
// segments. Stitch restores the non-overlap contract deterministically:
// near-duplicate texts in the overlap (the same words recognized twice)
// collapse into one segment, genuinely distinct collisions trim at the
// midpoint of the overlap region.

// simhashThreshold is the max hamming distance at which two overlap texts
// count as the same utterance.
const simhashThreshold = 16

// Stitch sorts segs, resolves every overlap, and renumbers IDs
// sequentially. The result satisfies segment.ValidateSequence.
func Stitch(segs []segment.Segment) []segment.Segment {
	if len(segs) == 0 {
		return segs
	}

	sorted := append([]segment.Segment{}, segs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []segment.Segment{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start >= last.End {
			out = append(out, s)
			continue
		}

		if textsSimilar(last.RawText, s.RawText) {
			// same utterance seen through two windows; keep the longer text
			if len(s.RawText) > len(last.RawText) {
				last.RawText = s.RawText
			}
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}

		mid := (s.Start + last.End) / 2
		if s.End <= mid {
			// distinct text fully buried in the previous segment: append
			// its words rather than invent a zero-length range
			last.RawText = strings.TrimSpace(last.RawText + " " + s.RawText)
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		last.End = mid
		s.Start = mid
		out = append(out, s)
	}

	for i := range out {
		out[i].ID = i
	}
	return out
}

// textFeatureSet feeds word-level bigram features to simhash; single words
// are added for very short texts to keep fingerprints distinctive.
type textFeatureSet struct {
	text string
}

func (t textFeatureSet) GetFeatures() []simhash.Feature {
	words := tokenize(t.text)
	if len(words) == 0 {
		return []simhash.Feature{}
	}

	features := make([]simhash.Feature, 0, len(words)*2)
	for i := 0; i < len(words)-1; i++ {
		features = append(features, simhash.NewFeature([]byte(words[i]+" "+words[i+1])))
	}
	if len(words) < 4 {
		for _, w := range words {
			features = append(features, simhash.NewFeature([]byte(w)))
		}
	}
	return features
}

func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '-':
			return ' '
		}
		return r
	}, strings.ToLower(text))
	return strings.Fields(cleaned)
}

func fingerprint(text string) uint64 {
	sh := simhash.NewSimhash()
	return sh.GetSimhash(textFeatureSet{text: text})
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func textsSimilar(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return hammingDistance(fingerprint(a), fingerprint(b)) <= simhashThreshold
}
