package model

import "time"

// DefaultSceneGap is the silence between two lines that starts a new scene.
const DefaultSceneGap = 5 * time.Second

// AssignScenes returns a copy of lines with scene ids derived from timing. The
// first line opens scene 1; a line opens the next scene when the time since the
// previous line ended is at least maxGap. A non-positive maxGap uses
// DefaultSceneGap.
func AssignScenes(lines []SubtitleLine, maxGap time.Duration) []SubtitleLine {
	if maxGap <= 0 {
		maxGap = DefaultSceneGap
	}
	out := make([]SubtitleLine, len(lines))
	scene := 0
	for i, line := range lines {
		if i == 0 || line.From-lines[i-1].To >= maxGap {
			scene++
		}
		line.Scene = scene
		out[i] = line
	}
	return out
}

// SceneCount returns the highest scene id in lines, or zero when no line has
// a scene.
func SceneCount(lines []SubtitleLine) int {
	count := 0
	for _, line := range lines {
		if line.Scene > count {
			count = line.Scene
		}
	}
	return count
}
