// Package play implements the synthizer CLI's "play" subcommand, a
// minimal demo program in the style of the teacher's hand-rolled
// cmd/audiocore-test main (direct construction, no viper, signal-driven
// shutdown) rather than its viper-bound subcommands.
package play

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synthizer-project/synthizer/audiobackend"
	"github.com/synthizer-project/synthizer/ctx"
	"github.com/synthizer-project/synthizer/examples/wavdemo"
	"github.com/synthizer-project/synthizer/generator"
	"github.com/synthizer-project/synthizer/handle"
)

// Command returns the "play" subcommand.
func Command() *cobra.Command {
	var (
		duration    float64
		file        string
		channels    int
		ringCapSecs float64
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a WAV file, or pink noise if no file is given, through the default audio device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(duration, file, channels, ringCapSecs)
		},
	}

	cmd.Flags().Float64Var(&duration, "duration", 5, "seconds to play before exiting, with or without --file (Ctrl-C stops early)")
	cmd.Flags().StringVar(&file, "file", "", "WAV file to stream; if empty, plays pink noise instead")
	cmd.Flags().IntVar(&channels, "channels", 2, "output channel count")
	cmd.Flags().Float64Var(&ringCapSecs, "ring-seconds", 2, "streaming ring buffer capacity, in seconds, when --file is set")

	return cmd
}

func run(duration float64, file string, channels int, ringCapSecs float64) error {
	backend := audiobackend.NewMalgoBackend(audiobackend.MalgoConfig{})

	c, err := ctx.NewContext(backend, channels, ctx.Config{})
	if err != nil {
		return fmt.Errorf("creating context: %w", err)
	}
	defer func() { _ = c.Shutdown() }()

	if err := c.Start(); err != nil {
		return fmt.Errorf("starting backend: %w", err)
	}

	srcHandle := c.CreateDirectSource()

	genHandle := genHandleForInput(c, file, ringCapSecs)
	if genHandle == 0 {
		return fmt.Errorf("play: could not create a generator")
	}
	if err := c.AttachGenerator(srcHandle, genHandle); err != nil {
		return fmt.Errorf("attaching generator: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	timer := time.NewTimer(time.Duration(duration * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-stop:
	case <-timer.C:
	}

	return nil
}

func genHandleForInput(c *ctx.Context, file string, ringCapSecs float64) handle.Handle {
	if file == "" {
		return c.CreateNoiseGenerator(generator.Pink, time.Now().UnixNano())
	}

	dec := wavdemo.NewDecoder()
	stream, err := dec.Open(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "play: opening %s: %v\n", file, err)
		return 0
	}

	ringCapacityFrames := int(ringCapSecs * float64(stream.SampleRate()))
	if ringCapacityFrames <= 0 {
		ringCapacityFrames = 44100 * 2
	}
	return c.CreateStreamingGenerator(stream, ringCapacityFrames)
}
