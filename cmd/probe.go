package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/codec"
	"github.com/smazurov/camrelay/internal/config"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/spf13/cobra"
)

// probeResults collects candidate outcomes published during a sweep.
type probeResults struct {
	results []events.CandidateProbedEvent
}

func (p *probeResults) Publish(ev events.Event) {
	if probed, ok := ev.(events.CandidateProbedEvent); ok {
		p.results = append(p.results, probed)
	}
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the configured camera streams once",
		Long: `Runs a single sweep over the candidate RTSP URLs, main stream first, and reports ` +
			`each result. Exits 0 when a candidate delivered the required frames, 1 otherwise.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(cmd *cobra.Command, _ []string, opts *config.Options) {
			os.Exit(runProbe(cmd, opts))
		}),
	}
}

func runProbe(cmd *cobra.Command, opts *config.Options) int {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	candidates := capture.BuildCandidates(opts.CameraConfig())
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "No candidate streams configured")
		return 1
	}

	results := &probeResults{}
	decoder := codec.NewFFmpeg(opts.DecoderConfig(), logging.GetLogger("ffmpeg"))
	prober := capture.NewProber(decoder, opts.ProbeConfig(), results, logging.GetLogger("probe"))

	h, cand, err := prober.Sweep(ctx, candidates)
	printProbeResults(cmd, results.results)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe failed: %v\n", err)
		return 1
	}

	if closeErr := h.Close(); closeErr != nil {
		logging.GetLogger("probe").Warn("Failed to close probe handle", "error", closeErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", cand.Redacted())
	return 0
}

func printProbeResults(cmd *cobra.Command, results []events.CandidateProbedEvent) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tCANDIDATE\tRESULT\tDURATION")
	for _, r := range results {
		result := "ok"
		if !r.OK {
			result = r.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%dms\n", r.Rank, r.Candidate, result, r.DurationMs)
	}
	w.Flush()
}
