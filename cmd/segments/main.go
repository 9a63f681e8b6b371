// Segments reads a WebVTT transcript and prints the windows the transcription
// step would store for it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"jamesfarrell.me/video-mcq/internal/segment"
	"jamesfarrell.me/video-mcq/internal/transcription"
)

func main() {
	window := flag.Float64("window", 300, "segment length in seconds")
	duration := flag.Float64("duration", 0, "media duration in seconds (default: end of the last cue)")
	asJSON := flag.Bool("json", false, "print segments as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] transcript.vtt\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	content, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read transcript: %v", err)
	}
	tr, err := transcription.TranscriptFromVTT(string(content))
	if err != nil {
		log.Fatalf("Failed to parse VTT: %v", err)
	}
	if *duration > 0 {
		tr.Duration = *duration
	}

	segments := segment.Build(tr.Utterances, tr.Duration, *window)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(segments); err != nil {
			log.Fatalf("Failed to encode segments: %v", err)
		}
		return
	}

	fmt.Printf("%d utterances, %.1fs, %d segments\n", len(tr.Utterances), tr.Duration, len(segments))
	for _, seg := range segments {
		fmt.Printf("\nSegment %d [%.1f - %.1f]\n", seg.Index+1, seg.StartTime, seg.EndTime)
		fmt.Printf("%s\n", seg.Text)
	}
}
