package audio

import (
	"strconv"
	"strings"

	"captioner/internal/language"
	"captioner/internal/media/ffprobe"
)

// Selection describes the audio stream chosen for transcription.
type Selection struct {
	Stream ffprobe.Stream
	Index  int
}

// Found reports whether any audio stream was selected.
func (s Selection) Found() bool {
	return s.Index >= 0
}

// Label returns a human-readable summary of the selected stream.
func (s Selection) Label() string {
	if !s.Found() {
		return ""
	}
	return formatStreamSummary(s.Stream)
}

// Select returns the best speech candidate. languageHint may be empty.
func Select(streams []ffprobe.Stream, languageHint string) Selection {
	hint := language.ToISO2(languageHint)
	best := Selection{Index: -1}
	bestScore := 0.0
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		score := scoreStream(stream, hint, order)
		order++
		if !best.Found() || score > bestScore {
			best = Selection{Stream: stream, Index: stream.Index}
			bestScore = score
		}
	}
	return best
}

func scoreStream(stream ffprobe.Stream, hint string, order int) float64 {
	score := 0.0
	if hint != "" && language.ToISO2(language.ExtractFromTags(stream.Tags)) == hint {
		score += 1000
	}
	if stream.IsDefault() {
		score += 100
	}
	switch {
	case stream.Channels == 1 || stream.Channels == 2:
		score += 50
	case stream.Channels > 2:
		score += 20
	}
	score -= float64(order) * 0.1
	return score
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	parts = append(parts, "#"+strconv.Itoa(stream.Index))
	if lang := language.ExtractFromTags(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	if stream.CodecName != "" {
		parts = append(parts, stream.CodecName)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	return strings.Join(parts, " | ")
}
