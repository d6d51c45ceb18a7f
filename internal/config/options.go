package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/logging"
)

// Options is the flat option set shared by the server and the subcommands.
// humacli turns each field into a flag; LoadConfig layers TOML and env on top.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Camera
	CameraHost        string `help:"Camera host or IP" default:"192.168.1.111" toml:"camera.host" env:"CAMERA_HOST"`
	CameraUser        string `help:"Camera RTSP user" default:"admin" toml:"camera.user" env:"CAMERA_USER"`
	CameraPassword    string `help:"Camera RTSP password" default:"" toml:"camera.password" env:"CAMERA_PASSWORD"`
	CameraPort        int    `help:"Camera RTSP port" default:"554" toml:"camera.port" env:"CAMERA_PORT"`
	CameraChannelMain string `help:"Main stream path" default:"Streaming/Channels/101" toml:"camera.channel_main" env:"CAMERA_CHANNEL_MAIN"`
	CameraChannelSub  string `help:"Sub stream path" default:"Streaming/Channels/102" toml:"camera.channel_sub" env:"CAMERA_CHANNEL_SUB"`
	CameraCandidates  string `help:"Explicit comma separated RTSP URLs, tried in order" default:"" toml:"camera.urls" env:"CAMERA_URLS"`

	// HTTP server
	ServerHost string `help:"Address to bind" default:"0.0.0.0" toml:"server.host" env:"SERVER_HOST"`
	ServerPort int    `help:"Port to listen on" short:"p" default:"8000" toml:"server.port" env:"SERVER_PORT"`

	// Probe
	ProbeTimeoutSec    string `help:"Seconds a candidate has to deliver the required frames" default:"6" toml:"probe.timeout_sec" env:"PROBE_TIMEOUT_SEC"`
	ProbeFrames        int    `help:"Consecutive frames required to accept a candidate" default:"8" toml:"probe.frames" env:"PROBE_FRAMES"`
	ProbeRetryDelaySec string `help:"Seconds to wait after every candidate failed" default:"1.0" toml:"probe.retry_delay_sec" env:"PROBE_RETRY_DELAY_SEC"`
	ProbeDescribeCheck bool   `help:"Check RTSP DESCRIBE for a video track before decoding" default:"true" toml:"probe.describe_check" env:"PROBE_DESCRIBE_CHECK"`

	// Capture
	CaptureMaxConsecutiveFails int    `help:"Read failures in a row before reconnecting" default:"30" toml:"capture.max_consecutive_fails" env:"CAPTURE_MAX_CONSECUTIVE_FAILS"`
	CaptureReadFailSleepSec    string `help:"Seconds to sleep after a failed read" default:"0.2" toml:"capture.read_fail_sleep_sec" env:"CAPTURE_READ_FAIL_SLEEP_SEC"`
	CaptureFreezeMaxFrames     int    `help:"Identical frames in a row before reconnecting" default:"30" toml:"capture.freeze_max_frames" env:"CAPTURE_FREEZE_MAX_FRAMES"`
	CaptureReadTimeoutSec      string `help:"Seconds a single frame read may block" default:"5" toml:"capture.read_timeout_sec" env:"CAPTURE_READ_TIMEOUT_SEC"`
	CaptureWidth               int    `help:"Decoded frame width" default:"1280" toml:"capture.width" env:"CAPTURE_WIDTH"`
	CaptureHeight              int    `help:"Decoded frame height" default:"720" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	CaptureJPEGQuality         int    `help:"JPEG quality of published frames (1-100)" default:"80" toml:"capture.jpeg_quality" env:"CAPTURE_JPEG_QUALITY"`
	CaptureDecoder             string `help:"Path to the ffmpeg binary" default:"ffmpeg" toml:"capture.ffmpeg_path" env:"CAPTURE_FFMPEG_PATH"`

	// MJPEG stream
	StreamPollMs   int `help:"Poll interval while no frame is available" default:"50" toml:"stream.poll_ms" env:"STREAM_POLL_MS"`
	StreamPacingMs int `help:"Delay between multipart parts" default:"30" toml:"stream.pacing_ms" env:"STREAM_PACING_MS"`

	// Logging
	LoggingLevel       string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat      string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingFile        string `help:"Rotated log file, empty to disable" default:"data/logs/camrelay.log" toml:"logging.file" env:"LOGGING_FILE"`
	LoggingCapture     string `help:"Capture logging level" default:"" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingProbe       string `help:"Probe logging level" default:"" toml:"logging.probe" env:"LOGGING_PROBE"`
	LoggingFFmpeg      string `help:"Decoder stderr logging level" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI         string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP        string `help:"HTTP access logging level" default:"" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingRecognition string `help:"Recognition logging level" default:"" toml:"logging.recognition" env:"LOGGING_RECOGNITION"`
	LoggingRecords     string `help:"Records logging level" default:"" toml:"logging.records" env:"LOGGING_RECORDS"`

	// Records
	RecordsCSVPath      string `help:"Recognition record log" default:"data/logs/records.csv" toml:"records.csv_path" env:"RECORDS_CSV_PATH"`
	RecordsLabelMapPath string `help:"Identity label map" default:"data/feature_db/label_map.json" toml:"records.label_map_path" env:"RECORDS_LABEL_MAP_PATH"`

	// Recognition
	RecognitionEnabled   bool   `help:"Feed frames to the recognizer" default:"false" toml:"recognition.enabled" env:"RECOGNITION_ENABLED"`
	RecognitionURL       string `help:"Recognizer sidecar base URL" default:"" toml:"recognition.url" env:"RECOGNITION_URL"`
	RecognitionThreshold string `help:"Minimum confidence for a match" default:"0.48" toml:"recognition.threshold" env:"RECOGNITION_THRESHOLD"`
	RecognitionMaxPerSec int    `help:"Frames per second sent to the recognizer" default:"2" toml:"recognition.max_per_sec" env:"RECOGNITION_MAX_PER_SEC"`

	MetricsEnabled bool `help:"Expose Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
}

// Validate rejects values that would leave the capture loop unable to make
// progress.
func (o *Options) Validate() error {
	var errs []error
	positive := map[string]int{
		"probe.frames":                  o.ProbeFrames,
		"capture.max_consecutive_fails": o.CaptureMaxConsecutiveFails,
		"capture.freeze_max_frames":     o.CaptureFreezeMaxFrames,
		"capture.width":                 o.CaptureWidth,
		"capture.height":                o.CaptureHeight,
		"server.port":                   o.ServerPort,
	}
	for key, n := range positive {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, n))
		}
	}
	if o.CaptureJPEGQuality < 1 || o.CaptureJPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("capture.jpeg_quality must be 1-100, got %d", o.CaptureJPEGQuality))
	}
	if o.CameraHost == "" && o.CameraCandidates == "" {
		errs = append(errs, errors.New("camera.host or camera.urls is required"))
	}
	for key, raw := range map[string]string{
		"probe.timeout_sec":           o.ProbeTimeoutSec,
		"probe.retry_delay_sec":       o.ProbeRetryDelaySec,
		"capture.read_fail_sleep_sec": o.CaptureReadFailSleepSec,
		"capture.read_timeout_sec":    o.CaptureReadTimeoutSec,
	} {
		if _, err := Seconds(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if _, err := o.Threshold(); err != nil {
		errs = append(errs, fmt.Errorf("recognition.threshold: %w", err))
	}
	if o.RecognitionEnabled && o.RecognitionURL == "" {
		errs = append(errs, errors.New("recognition.url is required when recognition is enabled"))
	}
	return errors.Join(errs...)
}

// Seconds parses a non-negative number of seconds such as "6" or "0.2".
func Seconds(raw string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds %q", raw)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative seconds %q", raw)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func mustSeconds(raw string, fallback time.Duration) time.Duration {
	d, err := Seconds(raw)
	if err != nil {
		return fallback
	}
	return d
}

// Threshold returns the recognition confidence threshold.
func (o *Options) Threshold() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(o.RecognitionThreshold), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q", o.RecognitionThreshold)
	}
	return f, nil
}

// ListenAddr is the HTTP bind address.
func (o *Options) ListenAddr() string {
	return net.JoinHostPort(o.ServerHost, strconv.Itoa(o.ServerPort))
}

// CameraConfig returns the inputs for building the candidate list.
func (o *Options) CameraConfig() capture.CameraConfig {
	return capture.CameraConfig{
		Host:        o.CameraHost,
		User:        o.CameraUser,
		Password:    o.CameraPassword,
		Port:        o.CameraPort,
		ChannelMain: o.CameraChannelMain,
		ChannelSub:  o.CameraChannelSub,
		URLs:        SplitList(o.CameraCandidates),
	}
}

// ProbeConfig returns probe settings. The RTSP DESCRIBE preflight is enabled
// when ProbeDescribeCheck is set.
func (o *Options) ProbeConfig() capture.ProbeConfig {
	cfg := capture.DefaultProbeConfig()
	cfg.Timeout = mustSeconds(o.ProbeTimeoutSec, cfg.Timeout)
	cfg.RequiredFrames = o.ProbeFrames
	if o.ProbeDescribeCheck {
		cfg.Describe = capture.DescribeCheck
	}
	return cfg
}

// SessionConfig returns the capture loop thresholds.
func (o *Options) SessionConfig() capture.SessionConfig {
	cfg := capture.DefaultSessionConfig()
	cfg.MaxConsecutiveFails = o.CaptureMaxConsecutiveFails
	cfg.ReadFailSleep = mustSeconds(o.CaptureReadFailSleepSec, cfg.ReadFailSleep)
	cfg.FreezeMaxFrames = o.CaptureFreezeMaxFrames
	cfg.RetryDelay = mustSeconds(o.ProbeRetryDelaySec, cfg.RetryDelay)
	cfg.JPEGQuality = o.CaptureJPEGQuality
	return cfg
}

// DecoderConfig returns the ffmpeg decoder settings.
func (o *Options) DecoderConfig() codec.FFmpegConfig {
	cfg := codec.DefaultFFmpegConfig()
	cfg.Binary = o.CaptureDecoder
	cfg.Width = o.CaptureWidth
	cfg.Height = o.CaptureHeight
	cfg.ReadTimeout = mustSeconds(o.CaptureReadTimeoutSec, cfg.ReadTimeout)
	return cfg
}

// StreamPoll and StreamPacing return the MJPEG loop intervals.
func (o *Options) StreamPoll() time.Duration {
	return time.Duration(o.StreamPollMs) * time.Millisecond
}

func (o *Options) StreamPacing() time.Duration {
	return time.Duration(o.StreamPacingMs) * time.Millisecond
}

// LoggingConfig returns the logging setup. Empty per-module levels inherit
// the global level.
func (o *Options) LoggingConfig() logging.Config {
	modules := make(map[string]string)
	for module, level := range map[string]string{
		"capture":     o.LoggingCapture,
		"probe":       o.LoggingProbe,
		"ffmpeg":      o.LoggingFFmpeg,
		"api":         o.LoggingAPI,
		"http":        o.LoggingHTTP,
		"recognition": o.LoggingRecognition,
		"records":     o.LoggingRecords,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		File:    o.LoggingFile,
		Modules: modules,
	}
}
