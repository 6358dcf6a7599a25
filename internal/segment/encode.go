package segment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeJSON renders the final segment list as an indented JSON array, the
// machine-readable output contract with the CLI layer.
func EncodeJSON(segs []Segment) ([]byte, error) {
	if segs == nil {
		segs = []Segment{}
	}
	return json.MarshalIndent(segs, "", "  ")
}

// EncodeText renders one line per segment: "[start - end] text". Refined
// text is preferred when present.
func EncodeText(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		text := s.RawText
		if s.RefinedText != "" {
			text = s.RefinedText
		}
		fmt.Fprintf(&b, "[%s - %s] %s\n", formatTS(s.Start), formatTS(s.End), text)
	}
	return b.String()
}

func formatTS(sec float64) string {
	h := int(sec) / 3600
	m := (int(sec) % 3600) / 60
	s := sec - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
