package compositor

import (
	"math"
	"strings"
	"testing"

	"captioner/internal/policy"
	"captioner/internal/transcript"
)

func TestVisibleDurationFloor(t *testing.T) {
	if got := VisibleDuration(transcript.Segment{Start: 0, End: 0.05}, 0.1); got != 0.1 {
		t.Fatalf("expected floor 0.1, got %v", got)
	}
	if got := VisibleDuration(transcript.Segment{Start: 1, End: 1}, 0.1); got != 0.1 {
		t.Fatalf("zero-length segment should be extended, got %v", got)
	}
	if got := VisibleDuration(transcript.Segment{Start: 1, End: 1.5}, 0.1); got != 0.5 {
		t.Fatalf("expected natural duration, got %v", got)
	}
}

func TestFrameSpanMatchesTimestamps(t *testing.T) {
	cases := []struct {
		start, visible float64
		first, last    int
	}{
		{0, 0.1, 0, 3},
		{0.5, 0.5, 12, 24},
		{5.0 / 24.0, 1.0 / 24.0, 5, 6},
		{0.01, 0.1, 1, 3},
	}
	for _, tc := range cases {
		first, last := FrameSpan(tc.start, tc.visible, 24)
		if first != tc.first || last != tc.last {
			t.Fatalf("FrameSpan(%v, %v) = [%d,%d), want [%d,%d)", tc.start, tc.visible, first, last, tc.first, tc.last)
		}
		for k := first; k < last; k++ {
			ts := float64(k) / 24
			if ts < tc.start-1e-9 || ts >= tc.start+tc.visible {
				t.Fatalf("frame %d at %v outside window", k, ts)
			}
		}
	}
}

func testPlan(segments []transcript.Segment, anim policy.Animation) Plan {
	geometry := Geometry{Width: 640, Height: 480}
	anchor := policy.ResolveAnchor(policy.PositionBottom, nil, geometry.Width, geometry.Height)
	profile := policy.ResolveStyle(policy.StyleClean, geometry.Width)
	return BuildPlan(segments, anchor, anim, geometry, profile, 24, 0.1)
}

func TestBuildPlanStaticAnimationCoalesces(t *testing.T) {
	plan := testPlan([]transcript.Segment{{Word: "hi", Start: 1, End: 2}}, policy.AnimationNone)
	if len(plan.Overlays) != 1 {
		t.Fatalf("expected one coalesced overlay, got %d", len(plan.Overlays))
	}
	ov := plan.Overlays[0]
	if ov.FirstFrame != 24 || ov.EndFrame != 48 {
		t.Fatalf("unexpected frame range [%d,%d)", ov.FirstFrame, ov.EndFrame)
	}
	if ov.X != 320 || ov.Y != 384 || ov.ScalePct != 100 || ov.Alpha != 0 {
		t.Fatalf("unexpected overlay %+v", ov)
	}
}

func TestBuildPlanShortWordIsExtendedNotDropped(t *testing.T) {
	plan := testPlan([]transcript.Segment{{Word: "a", Start: 0, End: 0.05}}, policy.AnimationNone)
	if len(plan.Overlays) != 1 {
		t.Fatalf("expected overlay for short word, got %d", len(plan.Overlays))
	}
	if got := plan.Overlays[0].EndFrame - plan.Overlays[0].FirstFrame; got != 3 {
		t.Fatalf("expected 3 frames for 0.1s at 24fps, got %d", got)
	}
}

func TestBuildPlanOverlappingSegmentsCoexist(t *testing.T) {
	plan := testPlan([]transcript.Segment{
		{Word: "first", Start: 0, End: 1},
		{Word: "second", Start: 0.5, End: 1.5},
	}, policy.AnimationNone)
	if len(plan.Overlays) != 2 {
		t.Fatalf("expected two overlays, got %d", len(plan.Overlays))
	}
	a, b := plan.Overlays[0], plan.Overlays[1]
	if !(b.FirstFrame < a.EndFrame) {
		t.Fatalf("expected overlapping frame ranges, got %+v and %+v", a, b)
	}
	if b.Layer <= a.Layer {
		t.Fatalf("later segment must draw above earlier one")
	}
}

func TestBuildPlanAnimationsUseLocalTime(t *testing.T) {
	early := testPlan([]transcript.Segment{{Word: "x", Start: 0, End: 1}}, policy.AnimationSlide)
	late := testPlan([]transcript.Segment{{Word: "x", Start: 10, End: 11}}, policy.AnimationSlide)
	if len(early.Overlays) != len(late.Overlays) {
		t.Fatalf("slide should produce the same shape regardless of start: %d vs %d", len(early.Overlays), len(late.Overlays))
	}
	for i := range early.Overlays {
		if early.Overlays[i].Y != late.Overlays[i].Y {
			t.Fatalf("overlay %d differs: %d vs %d", i, early.Overlays[i].Y, late.Overlays[i].Y)
		}
	}
	if first := early.Overlays[0]; first.Y != 384+50 {
		t.Fatalf("slide should start displaced, got y=%d", first.Y)
	}
	if last := early.Overlays[len(early.Overlays)-1]; last.Y != 384 {
		t.Fatalf("slide should settle at anchor, got y=%d", last.Y)
	}
}

func TestBuildPlanBounceWithinAmplitude(t *testing.T) {
	plan := testPlan([]transcript.Segment{{Word: "b", Start: 0.3, End: 3}}, policy.AnimationBounce)
	if len(plan.Overlays) < 10 {
		t.Fatalf("bounce should never settle, got %d overlays", len(plan.Overlays))
	}
	for _, ov := range plan.Overlays {
		lift := 384 - ov.Y
		if lift < 0 || lift > int(math.Ceil(policy.BounceAmplitude)) {
			t.Fatalf("bounce lift %d outside [0,%v]", lift, policy.BounceAmplitude)
		}
	}
}

func TestBuildPlanPopFadesIn(t *testing.T) {
	plan := testPlan([]transcript.Segment{{Word: "p", Start: 0, End: 1}}, policy.AnimationPop)
	if plan.Overlays[0].Alpha != 255 {
		t.Fatalf("pop should start transparent, got alpha %d", plan.Overlays[0].Alpha)
	}
	if plan.Overlays[len(plan.Overlays)-1].Alpha != 0 {
		t.Fatal("pop should end opaque")
	}
}

func TestWriteASS(t *testing.T) {
	plan := testPlan([]transcript.Segment{
		{Word: "{\\b1}evil", Start: 0, End: 0.05},
		{Word: "ok", Start: 3661.5, End: 3662},
	}, policy.AnimationNone)
	var b strings.Builder
	if err := WriteASS(&b, plan); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"PlayResX: 640",
		"PlayResY: 480",
		"Style: Caption,Arial,60,&H00FFFFFF,&H00FFFFFF,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,2,0,8,0,0,0,1",
		"Dialogue: 0,0:00:00.00,0:00:00.12,Caption,,0,0,0,,{\\an8\\pos(320,384)\\fscx100\\fscy100\\alpha&H00&}｛⧵b1｝evil",
		"Dialogue: 1,1:01:01.50,1:01:02.00,Caption",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("ASS output missing %q:\n%s", want, out)
		}
	}
}

func TestFrameTimestampFloorsToCentiseconds(t *testing.T) {
	cases := map[int]string{0: "0:00:00.00", 1: "0:00:00.04", 3: "0:00:00.12", 24: "0:00:01.00", 25: "0:00:01.04"}
	for frame, want := range cases {
		if got := frameTimestamp(frame, 24); got != want {
			t.Fatalf("frameTimestamp(%d) = %s, want %s", frame, got, want)
		}
	}
}

func TestOutputGeometry(t *testing.T) {
	cases := []struct {
		w, h, max int
		want      Geometry
	}{
		{1920, 1080, 480, Geometry{852, 480}},
		{640, 360, 480, Geometry{640, 360}},
		{1080, 1920, 480, Geometry{270, 480}},
		{641, 361, 480, Geometry{640, 360}},
	}
	for _, tc := range cases {
		got, err := OutputGeometry(tc.w, tc.h, tc.max)
		if err != nil || got != tc.want {
			t.Fatalf("OutputGeometry(%d,%d,%d) = %v, %v; want %v", tc.w, tc.h, tc.max, got, err, tc.want)
		}
	}
	if _, err := OutputGeometry(0, 10, 480); err == nil {
		t.Fatal("expected error for zero width")
	}
}
