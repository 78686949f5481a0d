package compositor

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"captioner/internal/policy"
)

// styleName is the single ASS style every event uses.
const styleName = "Caption"

// Braces open override blocks in ASS; substitute lookalikes so a word can
// never inject tags.
var assTextReplacer = strings.NewReplacer(
	"{", "｛",
	"}", "｝",
	"\\", "⧵",
	"\n", " ",
	"\r", " ",
)

// WriteASS renders plan as an Advanced SubStation Alpha script.
func WriteASS(w io.Writer, plan Plan) error {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", plan.Geometry.Width)
	fmt.Fprintf(&b, "PlayResY: %d\n", plan.Geometry.Height)
	b.WriteString("WrapStyle: 2\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	b.WriteString(styleLine(plan.Profile))
	b.WriteString("\n")

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, ov := range plan.Overlays {
		fmt.Fprintf(&b, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s%s\n",
			ov.Layer,
			frameTimestamp(ov.FirstFrame, plan.FPS),
			frameTimestamp(ov.EndFrame, plan.FPS),
			styleName,
			overrideTags(ov),
			assTextReplacer.Replace(ov.Text),
		)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func styleLine(p policy.StyleProfile) string {
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,&H00000000,%d,%d,0,0,100,100,0,0,1,%s,0,8,0,0,0,1\n",
		styleName,
		strings.ReplaceAll(p.FontFamily, ",", " "),
		p.FontSize,
		p.TextColor.ASS(),
		p.TextColor.ASS(),
		p.StrokeColor.ASS(),
		assBool(p.Bold),
		assBool(p.Italic),
		trimFloat(p.StrokeWidth),
	)
}

func overrideTags(ov Overlay) string {
	align := 8
	if ov.Align == policy.AlignMiddle {
		align = 5
	}
	return fmt.Sprintf("{\\an%d\\pos(%d,%d)\\fscx%d\\fscy%d\\alpha&H%02X&}", align, ov.X, ov.Y, ov.ScalePct, ov.ScalePct, ov.Alpha)
}

// frameTimestamp formats the start time of frame k as H:MM:SS.cc. Times are
// floored to the centisecond, which keeps frame membership exact for any
// frame rate below 100 fps.
func frameTimestamp(frame, fps int) string {
	cs := int64(math.Floor(float64(frame)*100/float64(fps) + frameEpsilon))
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

func assBool(v bool) int {
	if v {
		return -1
	}
	return 0
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
