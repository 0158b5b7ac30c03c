// Package config parses the receiver and sender CLI surface (§6), with an
// optional YAML overlay for deployment profiles. Grounded on the teacher
// pack's two configuration idioms: samoyed's cmd/direwolf/main.go
// (github.com/spf13/pflag for the flag surface) and the SIP-Telegram
// bridge's bridge/config.go (gopkg.in/yaml.v3 into a nested yamlConfig
// struct, validated field by field into a flat Config).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FECScheme selects the block erasure code (§6 "--fec {none|rs|ldpc}").
type FECScheme string

const (
	FECNone FECScheme = "none"
	FECRS   FECScheme = "rs"
	FECLDPC FECScheme = "ldpc"
)

// ResamplerProfile picks a named taps/interpolation preset (§6
// "--resampler-profile {low|medium|high}").
type ResamplerProfile string

const (
	ProfileLow    ResamplerProfile = "low"
	ProfileMedium ResamplerProfile = "medium"
	ProfileHigh   ResamplerProfile = "high"
)

// ReceiverConfig is the validated configuration for cmd/roc-recv (§6).
type ReceiverConfig struct {
	Source string // UDP bind for source packets, required
	Repair string // UDP bind for repair packets, required iff FEC != none

	FEC    FECScheme
	NBSrc  int
	NBRpr  int

	Latency    time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration

	NPTimeout time.Duration
	BPTimeout time.Duration
	BPWindow  int // frames

	Rate uint32 // 0 means use the codec's native rate

	ResamplerProfile ResamplerProfile
	ResamplerInterp  int
	ResamplerWindow  int

	Output string
	Type   string

	Debug bool
}

// resamplerPresets mirrors §4.7's window_size/window_interp parameters at
// three named fidelity points.
var resamplerPresets = map[ResamplerProfile]struct {
	Window int
	Interp int
}{
	ProfileLow:    {Window: 8, Interp: 32},
	ProfileMedium: {Window: 16, Interp: 128},
	ProfileHigh:   {Window: 32, Interp: 512},
}

// ParseReceiverFlags parses args (normally os.Args[1:]) into a
// ReceiverConfig and validates it. A non-nil error means the caller should
// exit 1 per §6 "Exit 0 on graceful completion, 1 on configuration or bind
// failure".
func ParseReceiverFlags(args []string) (ReceiverConfig, error) {
	fs := pflag.NewFlagSet("roc-recv", pflag.ContinueOnError)

	source := fs.String("source", "", "UDP bind address for source packets (required)")
	repair := fs.String("repair", "", "UDP bind address for repair packets (required iff FEC enabled)")
	fec := fs.String("fec", string(FECNone), "FEC codec: none, rs, or ldpc")
	nbsrc := fs.Int("nbsrc", 20, "source block length (symbols)")
	nbrpr := fs.Int("nbrpr", 10, "repair block length (symbols)")
	latency := fs.Duration("latency", 200*time.Millisecond, "target buffered latency")
	minLatency := fs.Duration("min-latency", 100*time.Millisecond, "minimum buffered latency before failure")
	maxLatency := fs.Duration("max-latency", 500*time.Millisecond, "maximum buffered latency before failure")
	npTimeout := fs.Duration("np-timeout", 2*time.Second, "no-playback watchdog timeout")
	bpTimeout := fs.Duration("bp-timeout", 2*time.Second, "broken-playback watchdog window duration")
	bpWindow := fs.Int("bp-window", 50, "broken-playback watchdog window size in frames")
	rate := fs.Uint32("rate", 0, "force output sample rate (0 = use codec's native rate)")
	profile := fs.String("resampler-profile", string(ProfileMedium), "resampler profile: low, medium, or high")
	interp := fs.Int("resampler-interp", 0, "override resampler sub-sample interpolation precision (0 = use profile default)")
	window := fs.Int("resampler-window", 0, "override resampler window size in taps (0 = use profile default)")
	output := fs.String("output", "", "audio sink path")
	typ := fs.String("type", "", "audio sink driver")
	debug := fs.Bool("debug", false, "wire in debug poisoning readers around the resampler")

	if err := fs.Parse(args); err != nil {
		return ReceiverConfig{}, err
	}

	cfg := ReceiverConfig{
		Source:           *source,
		Repair:           *repair,
		FEC:              FECScheme(*fec),
		NBSrc:            *nbsrc,
		NBRpr:            *nbrpr,
		Latency:          *latency,
		MinLatency:       *minLatency,
		MaxLatency:       *maxLatency,
		NPTimeout:        *npTimeout,
		BPTimeout:        *bpTimeout,
		BPWindow:         *bpWindow,
		Rate:             *rate,
		ResamplerProfile: ResamplerProfile(*profile),
		ResamplerInterp:  *interp,
		ResamplerWindow:  *window,
		Output:           *output,
		Type:             *typ,
		Debug:            *debug,
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields and internal consistency (§6, §7
// "constructor validates and returns error; no partially-valid config
// object escapes").
func (c *ReceiverConfig) Validate() error {
	if c.Source == "" {
		return errors.New("config: --source is required")
	}
	switch c.FEC {
	case FECNone:
	case FECRS, FECLDPC:
		if c.Repair == "" {
			return fmt.Errorf("config: --repair is required when --fec=%s", c.FEC)
		}
	default:
		return fmt.Errorf("config: --fec must be one of none, rs, ldpc, got %q", c.FEC)
	}
	if c.NBSrc <= 0 {
		return errors.New("config: --nbsrc must be positive")
	}
	if c.FEC != FECNone && c.NBRpr <= 0 {
		return errors.New("config: --nbrpr must be positive when FEC is enabled")
	}
	if c.MinLatency <= 0 || c.MaxLatency <= c.MinLatency {
		return errors.New("config: require 0 < min-latency < max-latency")
	}
	if c.Latency < c.MinLatency || c.Latency > c.MaxLatency {
		return errors.New("config: latency must lie within [min-latency, max-latency]")
	}
	preset, ok := resamplerPresets[c.ResamplerProfile]
	if !ok {
		return fmt.Errorf("config: --resampler-profile must be one of low, medium, high, got %q", c.ResamplerProfile)
	}
	if c.ResamplerWindow == 0 {
		c.ResamplerWindow = preset.Window
	}
	if c.ResamplerInterp == 0 {
		c.ResamplerInterp = preset.Interp
	}
	return nil
}

// SenderConfig mirrors the receiver's FEC knobs for the symmetric sender
// side (§6 "Sender CLI mirrors: --source, --repair destinations, same FEC
// knobs").
type SenderConfig struct {
	Source string // destination host:port for source packets
	Repair string // destination host:port for repair packets

	FEC   FECScheme
	NBSrc int
	NBRpr int

	Rate     uint32
	Channels int
}

func ParseSenderFlags(args []string) (SenderConfig, error) {
	fs := pflag.NewFlagSet("roc-send", pflag.ContinueOnError)

	source := fs.String("source", "", "destination address for source packets (required)")
	repair := fs.String("repair", "", "destination address for repair packets (required iff FEC enabled)")
	fec := fs.String("fec", string(FECNone), "FEC codec: none, rs, or ldpc")
	nbsrc := fs.Int("nbsrc", 20, "source block length (symbols)")
	nbrpr := fs.Int("nbrpr", 10, "repair block length (symbols)")
	rate := fs.Uint32("rate", 44100, "source sample rate")
	channels := fs.Int("channels", 2, "source channel count")

	if err := fs.Parse(args); err != nil {
		return SenderConfig{}, err
	}

	cfg := SenderConfig{
		Source:   *source,
		Repair:   *repair,
		FEC:      FECScheme(*fec),
		NBSrc:    *nbsrc,
		NBRpr:    *nbrpr,
		Rate:     *rate,
		Channels: *channels,
	}
	return cfg, cfg.Validate()
}

func (c *SenderConfig) Validate() error {
	if c.Source == "" {
		return errors.New("config: --source is required")
	}
	switch c.FEC {
	case FECNone:
	case FECRS, FECLDPC:
		if c.Repair == "" {
			return fmt.Errorf("config: --repair is required when --fec=%s", c.FEC)
		}
	default:
		return fmt.Errorf("config: --fec must be one of none, rs, ldpc, got %q", c.FEC)
	}
	if c.NBSrc <= 0 {
		return errors.New("config: --nbsrc must be positive")
	}
	if c.FEC != FECNone && c.NBRpr <= 0 {
		return errors.New("config: --nbrpr must be positive when FEC is enabled")
	}
	if c.Channels <= 0 {
		return errors.New("config: --channels must be positive")
	}
	if c.Rate == 0 {
		return errors.New("config: --rate must be positive")
	}
	return nil
}

// yamlOverlay is an optional deployment-profile layer applied on top of an
// already-parsed ReceiverConfig, matching the bridge's "nested yaml struct,
// validated field by field into a flat Config" idiom. Only receiver
// parameters that commonly vary per deployment are exposed here. Every
// value the file sets replaces the one in the config, whether that came
// from a flag default or from a flag given on the command line.
type yamlOverlay struct {
	Latency struct {
		Target string `yaml:"target"`
		Min    string `yaml:"min"`
		Max    string `yaml:"max"`
	} `yaml:"latency"`
	Watchdog struct {
		NPTimeout string `yaml:"np_timeout"`
		BPTimeout string `yaml:"bp_timeout"`
		BPWindow  int    `yaml:"bp_window"`
	} `yaml:"watchdog"`
	Resampler struct {
		Profile string `yaml:"profile"`
	} `yaml:"resampler"`
}

// ApplyYAMLFile overlays values from a YAML deployment profile onto cfg,
// for every field the file sets. It re-validates before returning.
func ApplyYAMLFile(cfg *ReceiverConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading yaml overlay: %w", err)
	}
	var y yamlOverlay
	if err := yaml.Unmarshal(data, &y); err != nil {
		return fmt.Errorf("config: parsing yaml overlay: %w", err)
	}

	if y.Latency.Target != "" {
		d, err := time.ParseDuration(y.Latency.Target)
		if err != nil {
			return fmt.Errorf("config: latency.target: %w", err)
		}
		cfg.Latency = d
	}
	if y.Latency.Min != "" {
		d, err := time.ParseDuration(y.Latency.Min)
		if err != nil {
			return fmt.Errorf("config: latency.min: %w", err)
		}
		cfg.MinLatency = d
	}
	if y.Latency.Max != "" {
		d, err := time.ParseDuration(y.Latency.Max)
		if err != nil {
			return fmt.Errorf("config: latency.max: %w", err)
		}
		cfg.MaxLatency = d
	}
	if y.Watchdog.NPTimeout != "" {
		d, err := time.ParseDuration(y.Watchdog.NPTimeout)
		if err != nil {
			return fmt.Errorf("config: watchdog.np_timeout: %w", err)
		}
		cfg.NPTimeout = d
	}
	if y.Watchdog.BPTimeout != "" {
		d, err := time.ParseDuration(y.Watchdog.BPTimeout)
		if err != nil {
			return fmt.Errorf("config: watchdog.bp_timeout: %w", err)
		}
		cfg.BPTimeout = d
	}
	if y.Watchdog.BPWindow > 0 {
		cfg.BPWindow = y.Watchdog.BPWindow
	}
	if y.Resampler.Profile != "" {
		cfg.ResamplerProfile = ResamplerProfile(y.Resampler.Profile)
		// Recompute window/interp from the new profile's preset, but only
		// where the current value equals the medium preset's; any other
		// value is kept.
		if preset, ok := resamplerPresets[ResamplerProfile(y.Resampler.Profile)]; ok {
			if cfg.ResamplerWindow == resamplerPresets[ProfileMedium].Window {
				cfg.ResamplerWindow = preset.Window
			}
			if cfg.ResamplerInterp == resamplerPresets[ProfileMedium].Interp {
				cfg.ResamplerInterp = preset.Interp
			}
		}
	}

	return cfg.Validate()
}
