package types

import (
	"encoding/json"
	"fmt"
)

// Label is the classification outcome for one clip.
type Label int

const (
	// LabelUnknown is the zero value and never produced by the policy.
	LabelUnknown Label = iota
	LabelSpeech
	LabelMusic
	LabelNoise
)

var labelNames = map[Label]string{
	LabelSpeech: "Speech",
	LabelMusic:  "Music",
	LabelNoise:  "Noise",
}

// Labels lists every valid label in declaration order.
func Labels() []Label {
	return []Label{LabelSpeech, LabelMusic, LabelNoise}
}

// String returns "Speech", "Music", "Noise" or "Unknown".
func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether l is one of Speech, Music, Noise.
func (l Label) Valid() bool {
	_, ok := labelNames[l]
	return ok
}

// ParseLabel parses the canonical label name.
func ParseLabel(s string) (Label, error) {
	for l, name := range labelNames {
		if name == s {
			return l, nil
		}
	}
	return LabelUnknown, fmt.Errorf("unknown label %q", s)
}

// MarshalJSON encodes the label as a JSON string literal.
func (l Label) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid label %d", int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a JSON string literal such as "Music".
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("label must be a JSON string: %w", err)
	}
	parsed, err := ParseLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
