package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// Song is one library entry. A song is either a local file (FilePath) or a
// YouTube video (YouTubeID).
type Song struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	FilePath  string    `json:"file_path"`
	YouTubeID string    `json:"youtube_id"`
	Lyrics    string    `json:"lyrics"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Song) String() string {
	if s.Artist == "" {
		return s.Title
	}
	return s.Title + " - " + s.Artist
}

// Line is a lyrics line, optionally timed in seconds from the song start.
type Line struct {
	Text string   `json:"text"`
	Time *float64 `json:"time,omitempty"`
}

// ParseLyrics reads the stored lyrics payload: a JSON array of lines, or
// plain text with one line per non-empty row.
func ParseLyrics(raw string) []Line {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var lines []Line
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &lines) == nil {
		return lines
	}

	lines = lines[:0]
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, Line{Text: l})
	}
	return lines
}

// CurrentLine returns the index of the last timed line that has started at
// position seconds, or -1.
func CurrentLine(lines []Line, seconds float64) int {
	current := -1
	for i, l := range lines {
		if l.Time == nil {
			continue
		}
		if *l.Time > seconds {
			break
		}
		current = i
	}
	return current
}
