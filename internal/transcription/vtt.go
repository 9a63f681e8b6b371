package transcription

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// ParseVTT parses WebVTT content into utterances. Cue identifiers, NOTE and
// STYLE blocks are skipped; a leading <v Speaker> voice tag sets the speaker.
func ParseVTT(content string) ([]models.Utterance, error) {
	// Some providers return the VTT body as a JSON string
	content = strings.Trim(content, "\"")
	if strings.Contains(content, "\\n") {
		content = strings.ReplaceAll(content, "\\n", "\n")
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "WEBVTT") {
		return nil, fmt.Errorf("invalid VTT format: missing WEBVTT header")
	}

	utterances := []models.Utterance{}
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") {
			continue
		}

		timestamps := strings.SplitN(line, "-->", 2)
		start, err := parseVTTTimestamp(strings.TrimSpace(timestamps[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start timestamp on line %d: %w", i+1, err)
		}
		// cue settings may follow the end timestamp
		endField := strings.Fields(timestamps[1])
		if len(endField) == 0 {
			return nil, fmt.Errorf("missing end timestamp on line %d", i+1)
		}
		end, err := parseVTTTimestamp(endField[0])
		if err != nil {
			return nil, fmt.Errorf("invalid end timestamp on line %d: %w", i+1, err)
		}

		var text []string
		for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			i++
			text = append(text, strings.TrimSpace(lines[i]))
		}

		speaker, body := splitVoice(strings.Join(text, " "))
		utterances = append(utterances, models.Utterance{
			Text:     body,
			StartSec: start.Seconds(),
			EndSec:   end.Seconds(),
			Speaker:  speaker,
		})
	}

	return utterances, nil
}

func splitVoice(text string) (speaker, body string) {
	if strings.HasPrefix(text, "<v ") {
		if end := strings.Index(text, ">"); end > 0 {
			speaker = strings.TrimSpace(text[3:end])
			text = text[end+1:]
		}
	}
	text = strings.ReplaceAll(text, "</v>", "")
	return speaker, strings.TrimSpace(text)
}

// parseVTTTimestamp accepts HH:MM:SS.mmm and the short MM:SS.mmm form.
func parseVTTTimestamp(timestamp string) (time.Duration, error) {
	if !strings.Contains(timestamp, ".") {
		return 0, fmt.Errorf("invalid timestamp format: missing milliseconds")
	}

	parts := strings.Split(timestamp, ":")
	var hours int
	switch {
	case len(parts) == 3 && len(parts[0]) == 2:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("invalid hours: %w", err)
		}
		hours = h
		parts = parts[1:]
	case len(parts) == 2 && len(parts[0]) == 2:
	default:
		return 0, fmt.Errorf("invalid timestamp format: expected HH:MM:SS.mmm")
	}

	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}

	secondParts := strings.Split(parts[1], ".")
	if len(secondParts) != 2 {
		return 0, fmt.Errorf("invalid seconds format: missing milliseconds")
	}

	seconds, err := strconv.Atoi(secondParts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}

	milliseconds, err := strconv.Atoi(secondParts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid milliseconds: %w", err)
	}

	duration := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(milliseconds)*time.Millisecond

	return duration, nil
}
