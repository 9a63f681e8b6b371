// Package segment buckets transcript utterances into fixed-length windows.
package segment

import (
	"fmt"
	"math"
	"strings"

	"jamesfarrell.me/video-mcq/internal/storage/models"
)

const placeholderPrefix = "[No speech detected in segment"

// Placeholder is the text given to a window without speech. index is 1-based.
func Placeholder(index int) string {
	return fmt.Sprintf("%s %d]", placeholderPrefix, index)
}

// IsPlaceholder reports whether text marks a window without speech.
func IsPlaceholder(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), placeholderPrefix)
}

// Build splits [0, totalSec) into ceil(totalSec/windowSec) windows and assigns
// each utterance to the window containing its start time. Utterances are never
// split; one that straddles a boundary stays with the window it starts in.
// Segment ids are left empty so the result depends only on the input.
func Build(utterances []models.Utterance, totalSec, windowSec float64) []models.Segment {
	if totalSec <= 0 || windowSec <= 0 {
		return nil
	}

	count := int(math.Ceil(totalSec / windowSec))
	segments := make([]models.Segment, 0, count)

	for i := 0; i < count; i++ {
		start := float64(i) * windowSec
		end := math.Min(float64(i+1)*windowSec, totalSec)

		var parts []string
		for _, u := range utterances {
			if u.StartSec >= start && u.StartSec < end {
				parts = append(parts, u.Text)
			}
		}

		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			text = Placeholder(i + 1)
		}

		segments = append(segments, models.Segment{
			Index:     i,
			StartTime: start,
			EndTime:   end,
			Text:      text,
		})
	}

	return segments
}
