package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ProbeInfo describes an audio file as reported by ffprobe.
type ProbeInfo struct {
	CodecName  string
	FormatName string
	SampleRate int
	Channels   int
	Duration   float64
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects path with ffprobe and returns the first audio stream's
// parameters plus the container duration.
func Probe(ctx context.Context, runner *Runner, path string) (ProbeInfo, error) {
	result, err := runner.Run(ctx, "ffprobe", []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}, 30*time.Second)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, result.Stderr)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return ProbeInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := ProbeInfo{FormatName: parsed.Format.FormatName}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	for _, stream := range parsed.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.CodecName = stream.CodecName
		info.Channels = stream.Channels
		if stream.SampleRate != "" {
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
		}
		return info, nil
	}

	return ProbeInfo{}, fmt.Errorf("no audio stream in %s", path)
}
