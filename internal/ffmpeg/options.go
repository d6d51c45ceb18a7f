package ffmpeg

// OptionType names an input tuning flag.
type OptionType string

const (
	OptionNoBuffer       OptionType = "nobuffer"
	OptionLowDelay       OptionType = "low_delay"
	OptionDiscardCorrupt OptionType = "discardcorrupt"
	OptionGeneratePTS    OptionType = "genpts"
)

// Option documents one OptionType and the arguments it expands to.
type Option struct {
	Key         OptionType `json:"key"`
	Description string     `json:"description"`
	Default     bool       `json:"default"`
	args        []string
}

// AllOptions lists the supported input flags in application order.
var AllOptions = []Option{
	{
		Key:         OptionNoBuffer,
		Description: "Do not buffer input packets before decoding",
		Default:     true,
		args:        []string{"-fflags", "nobuffer"},
	},
	{
		Key:         OptionLowDelay,
		Description: "Ask the decoder to output frames as early as possible",
		Default:     true,
		args:        []string{"-flags", "low_delay"},
	},
	{
		Key:         OptionDiscardCorrupt,
		Description: "Drop corrupted packets instead of decoding garbage",
		Default:     true,
		args:        []string{"-fflags", "+discardcorrupt"},
	},
	{
		Key:         OptionGeneratePTS,
		Description: "Generate missing presentation timestamps",
		args:        []string{"-fflags", "+genpts"},
	},
}

// DefaultOptions returns the flags enabled unless configured otherwise.
func DefaultOptions() []OptionType {
	var out []OptionType
	for _, o := range AllOptions {
		if o.Default {
			out = append(out, o.Key)
		}
	}
	return out
}

// optionArgs expands the requested flags in AllOptions order, ignoring
// unknown keys and duplicates.
func optionArgs(selected []OptionType) []string {
	want := make(map[OptionType]bool, len(selected))
	for _, k := range selected {
		want[k] = true
	}
	var args []string
	for _, o := range AllOptions {
		if want[o.Key] {
			args = append(args, o.args...)
		}
	}
	return args
}
