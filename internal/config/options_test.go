package config

import (
	"strings"
	"testing"
	"time"
)

func defaultOptions() *Options {
	return &Options{
		CameraHost:                 "192.168.1.111",
		CameraUser:                 "admin",
		CameraPort:                 554,
		CameraChannelMain:          "Streaming/Channels/101",
		CameraChannelSub:           "Streaming/Channels/102",
		ServerHost:                 "0.0.0.0",
		ServerPort:                 8000,
		ProbeTimeoutSec:            "6",
		ProbeFrames:                8,
		ProbeRetryDelaySec:         "1.0",
		CaptureMaxConsecutiveFails: 30,
		CaptureReadFailSleepSec:    "0.2",
		CaptureFreezeMaxFrames:     30,
		CaptureReadTimeoutSec:      "5",
		CaptureWidth:               1280,
		CaptureHeight:              720,
		CaptureJPEGQuality:         80,
		CaptureDecoder:             "ffmpeg",
		StreamPollMs:               50,
		StreamPacingMs:             30,
		RecognitionThreshold:       "0.48",
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr string
	}{
		{"defaults", func(*Options) {}, ""},
		{"zero probe frames", func(o *Options) { o.ProbeFrames = 0 }, "probe.frames"},
		{"bad sleep", func(o *Options) { o.CaptureReadFailSleepSec = "soon" }, "capture.read_fail_sleep_sec"},
		{"quality", func(o *Options) { o.CaptureJPEGQuality = 101 }, "jpeg_quality"},
		{"no camera", func(o *Options) { o.CameraHost = "" }, "camera.host"},
		{"recognizer url", func(o *Options) { o.RecognitionEnabled = true }, "recognition.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.mutate(o)
			err := o.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsDerivedConfigs(t *testing.T) {
	o := defaultOptions()

	sc := o.SessionConfig()
	if sc.ReadFailSleep != 200*time.Millisecond {
		t.Errorf("ReadFailSleep = %v, want 200ms", sc.ReadFailSleep)
	}
	if sc.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", sc.RetryDelay)
	}
	if sc.MaxConsecutiveFails != 30 || sc.FreezeMaxFrames != 30 {
		t.Errorf("thresholds = %d/%d, want 30/30", sc.MaxConsecutiveFails, sc.FreezeMaxFrames)
	}

	pc := o.ProbeConfig()
	if pc.Timeout != 6*time.Second || pc.RequiredFrames != 8 {
		t.Errorf("probe = %v/%d, want 6s/8", pc.Timeout, pc.RequiredFrames)
	}
	if pc.Describe != nil {
		t.Error("Describe set although describe check is off")
	}

	if got := o.ListenAddr(); got != "0.0.0.0:8000" {
		t.Errorf("ListenAddr() = %q", got)
	}

	o.CameraCandidates = "rtsp://a, rtsp://b"
	if urls := o.CameraConfig().URLs; len(urls) != 2 || urls[1] != "rtsp://b" {
		t.Errorf("URLs = %v", urls)
	}
}

func TestLoggingConfigSkipsEmptyModules(t *testing.T) {
	o := defaultOptions()
	o.LoggingLevel = "info"
	o.LoggingCapture = "debug"

	cfg := o.LoggingConfig()
	if len(cfg.Modules) != 1 || cfg.Modules["capture"] != "debug" {
		t.Errorf("Modules = %v, want only capture=debug", cfg.Modules)
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"6", 6 * time.Second, true},
		{"0.2", 200 * time.Millisecond, true},
		{" 1.5 ", 1500 * time.Millisecond, true},
		{"-1", 0, false},
		{"6s", 0, false},
	}
	for _, tt := range tests {
		got, err := Seconds(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("Seconds(%q) = %v, %v", tt.in, got, err)
		}
	}
}
