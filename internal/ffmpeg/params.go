package ffmpeg

import "time"

// DecodeParams describes one RTSP to raw RGBA decode.
type DecodeParams struct {
	InputURL string

	// Transport is the rtsp_transport value, usually "tcp".
	Transport string
	// SocketTimeout bounds connect and read on the RTSP socket. Zero disables.
	SocketTimeout time.Duration

	// Output frames are scaled to Width x Height so every frame on stdout
	// has exactly Width*Height*4 bytes.
	Width  int
	Height int

	Options  []OptionType
	LogLevel string
}

// FrameSize is the number of stdout bytes per decoded frame.
func (p DecodeParams) FrameSize() int {
	return p.Width * p.Height * 4
}
