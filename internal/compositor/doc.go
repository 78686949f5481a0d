// Package compositor burns timed, styled, animated captions into a video.
//
// A render runs in three phases:
//
//  1. Geometry: the source is probed and the output size fixed, downscaling
//     anything taller than render.max_height before any overlay is planned.
//  2. Planning: every transcript segment becomes a run of overlay events, one
//     per distinct animation state, on the output frame grid. A segment is
//     visible for max(end-start, min_visible_seconds) starting at its own
//     start time; animation offsets are evaluated on time local to the
//     segment. Overlapping segments yield overlapping events and are shown
//     together.
//  3. Encoding: the plan is written as an ASS script, the extracted audio is
//     packed into a temporary AAC file, and ffmpeg burns the script into the
//     scaled video with the temporary audio replacing the source track. The
//     encoder runs single-threaded with the configured low-memory preset.
//     Temporary files are removed on every exit path.
package compositor
