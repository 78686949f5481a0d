package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Duration    string            `json:"duration"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	FrameRate   string            `json:"r_frame_rate"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
	SideData    []SideData        `json:"side_data_list"`
}

// SideData is one entry of a stream's side_data_list. Only the display
// matrix rotation is decoded.
type SideData struct {
	Type     string  `json:"side_data_type"`
	Rotation float64 `json:"rotation"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) && !stream.attachedPicture() {
			count++
		}
	}
	return count
}

// PrimaryVideo returns the first real video stream, skipping cover art.
func (r Result) PrimaryVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") && !stream.attachedPicture() {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStreams returns every audio stream in container order.
func (r Result) AudioStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			out = append(out, stream)
		}
	}
	return out
}

// FrameSize returns the primary video dimensions as displayed: coded width
// and height are swapped when the stream is rotated by 90 or 270 degrees,
// matching ffmpeg's autorotation on decode.
func (r Result) FrameSize() (int, int, error) {
	video, ok := r.PrimaryVideo()
	if !ok {
		return 0, 0, errors.New("no video stream")
	}
	if video.Width <= 0 || video.Height <= 0 {
		return 0, 0, fmt.Errorf("video stream %d has invalid size %dx%d", video.Index, video.Width, video.Height)
	}
	if video.QuarterTurned() {
		return video.Height, video.Width, nil
	}
	return video.Width, video.Height, nil
}

// Rotation returns the display rotation in degrees normalized to [0, 360).
// The display matrix side data wins over the legacy rotate tag.
func (s Stream) Rotation() int {
	deg := math.NaN()
	for _, sd := range s.SideData {
		if sd.Rotation != 0 {
			deg = sd.Rotation
			break
		}
	}
	if math.IsNaN(deg) {
		deg = parseFloat(s.Tags["rotate"])
	}
	if math.IsNaN(deg) {
		return 0
	}
	norm := int(math.Round(deg)) % 360
	if norm < 0 {
		norm += 360
	}
	return norm
}

// QuarterTurned reports a 90 or 270 degree display rotation.
func (s Stream) QuarterTurned() bool {
	r := s.Rotation()
	return r == 90 || r == 270
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// FramesPerSecond parses r_frame_rate ("30000/1001"), returning 0 when unknown.
func (s Stream) FramesPerSecond() float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s.FrameRate), "/")
	n := parseFloat(num)
	if !found {
		if math.IsNaN(n) {
			return 0
		}
		return n
	}
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 {
		return 0
	}
	return n / d
}

// IsDefault reports the default disposition flag.
func (s Stream) IsDefault() bool {
	return s.Disposition["default"] == 1
}

func (s Stream) attachedPicture() bool {
	return s.Disposition["attached_pic"] == 1
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
