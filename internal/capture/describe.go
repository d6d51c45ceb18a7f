package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/rtsp"
)

// DescribeFunc is a cheap pre-check run before the decoder is spawned.
type DescribeFunc func(ctx context.Context, url string) error

var errNoVideo = errors.New("stream has no video media")

// DescribeCheck connects to url, sends OPTIONS and DESCRIBE, and fails unless
// the session description offers a video track. It catches bad credentials,
// wrong channel paths and audio-only streams without starting ffmpeg.
func DescribeCheck(ctx context.Context, url string) error {
	result := make(chan error, 1)
	go func() {
		result <- describe(url)
	}()

	// The go2rtc client has its own dial and read timeouts, so an abandoned
	// check still finishes on its own.
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func describe(url string) error {
	conn := rtsp.NewClient(url)
	if err := conn.Dial(); err != nil {
		return fmt.Errorf("rtsp dial: %w", err)
	}
	defer func() { _ = conn.Stop() }()

	if err := conn.Describe(); err != nil {
		return fmt.Errorf("rtsp describe: %w", err)
	}
	for _, media := range conn.GetMedias() {
		if media.Kind == core.KindVideo {
			return nil
		}
	}
	return errNoVideo
}
