package transcript

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"captioner/internal/services"
)

// Segment is one recognized word with its timing in seconds.
type Segment struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns End-Start.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Document is the complete ordered transcript for one media item.
type Document struct {
	MediaID   string    `json:"media_id"`
	FullText  string    `json:"full_text"`
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Segments = slices.Clone(d.Segments)
	return &out
}

// Normalize validates segments and returns a copy stably sorted by start time.
// Overlapping segments are accepted.
func Normalize(segments []Segment) ([]Segment, error) {
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return nil, services.Wrap(services.ErrInput, "transcript", "validate segment", fmt.Sprintf("segment %d: %v", i, err), nil)
		}
		seg.Word = strings.TrimSpace(seg.Word)
		out[i] = seg
	}
	slices.SortStableFunc(out, func(a, b Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return out, nil
}

func validateSegment(seg Segment) error {
	for _, v := range []float64{seg.Start, seg.End, seg.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value")
		}
	}
	if seg.Start < 0 {
		return fmt.Errorf("start %.3f is negative", seg.Start)
	}
	if seg.Start > seg.End {
		return fmt.Errorf("start %.3f is after end %.3f", seg.Start, seg.End)
	}
	if seg.Confidence < 0 || seg.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", seg.Confidence)
	}
	return nil
}

// JoinWords builds aggregate text from a segment list.
func JoinWords(segments []Segment) string {
	words := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Word != "" {
			words = append(words, seg.Word)
		}
	}
	return strings.Join(words, " ")
}
