package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dittyapp/ditty/internal/render"
	"github.com/dittyapp/ditty/pkg/audioio"
	"github.com/dittyapp/ditty/pkg/spectrum"
)

var (
	analyzeEvery time.Duration
	analyzeBars  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.wav>",
	Short: "Print the spectrum of a WAV file over time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pcm, err := audioio.LoadWAV(args[0])
		if err != nil {
			return err
		}
		return analyze(cmd, pcm)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.DurationVar(&analyzeEvery, "every", 250*time.Millisecond, "print a row at this interval")
	f.IntVar(&analyzeBars, "width", 32, "bars per row")
}

// analyze feeds pcm through the analyzer in capture-sized buffers, the same
// way a live source would, and prints a row every analyzeEvery.
func analyze(cmd *cobra.Command, pcm *audioio.PCM) error {
	analyzer, err := spectrum.NewAnalyzer(cfg.Engine.Spectrum)
	if err != nil {
		return err
	}
	smoother, err := spectrum.NewSmoother(analyzer.Bands(), cfg.Engine.Smoothing)
	if err != nil {
		return err
	}

	rate := pcm.Format.SampleRate
	channels := pcm.Format.Channels
	hop := int(rate * cfg.Engine.Source.BufferDuration.Seconds())
	if hop < 1 {
		hop = 1
	}
	mono := audioio.NewMonoExtractor(hop)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %.0f Hz, %d ch, %.2fs\n", cmd.Flags().Arg(0), rate, channels, pcm.Duration())

	var bars spectrum.Frame
	next := time.Duration(0)
	frames := pcm.Frames()
	for start := 0; start < frames; start += hop {
		end := min(start+hop, frames)
		samples := mono.Extract(pcm.Samples[start*channels:end*channels], channels)

		smoothed := smoother.Apply(analyzer.Process(samples, rate))

		at := time.Duration(float64(end) / rate * float64(time.Second))
		if at < next {
			continue
		}
		next = at + analyzeEvery

		dominant := analyzer.BandMagnitudes().ArgMax()
		lo, hi := analyzer.BandRange(dominant, rate)
		bars = spectrum.Downsample(bars, smoothed, analyzeBars)
		fmt.Fprintf(out, "%7.2fs  %5.0f-%5.0f Hz  %s\n", at.Seconds(), lo, hi, render.Line(bars))
	}
	return nil
}
