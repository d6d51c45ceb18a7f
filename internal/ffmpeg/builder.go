package ffmpeg

import (
	"fmt"
	"strconv"
)

// BuildDecodeArgs returns the ffmpeg arguments (without the binary) that
// decode p.InputURL to raw RGBA frames on stdout.
func BuildDecodeArgs(p DecodeParams) ([]string, error) {
	if p.InputURL == "" {
		return nil, fmt.Errorf("ffmpeg: input url is required")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid output size %dx%d", p.Width, p.Height)
	}

	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = "warning"
	}
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "level+" + logLevel}

	args = append(args, optionArgs(p.Options)...)
	if p.Transport != "" {
		args = append(args, "-rtsp_transport", p.Transport)
	}
	if p.SocketTimeout > 0 {
		// microseconds
		args = append(args, "-timeout", strconv.FormatInt(p.SocketTimeout.Microseconds(), 10))
	}
	args = append(args, "-i", p.InputURL)

	args = append(args,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	)
	return args, nil
}
