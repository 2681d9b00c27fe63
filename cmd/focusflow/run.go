package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/pomodoro"
	"focusflow/backend/internal/ticker"
)

var (
	runWork         int
	runShortBreak   int
	runLongBreak    int
	runCycles       int
	runRounds       int
	runTick         time.Duration
	runFastForward  bool
	runSaveSettings bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a Pomodoro in the terminal",
	Long: `Runs work and break phases locally and prints the countdown.

Each finished phase starts the next one until --rounds phases have finished.
By default one full cycle runs, ending with the long break.

Example:
  focusflow run --work 50 --short 10 --cycles 2`,
	RunE: runPomodoro,
}

func init() {
	runCmd.Flags().IntVar(&runWork, "work", 0, "Work phase in minutes (15-60)")
	runCmd.Flags().IntVar(&runShortBreak, "short", 0, "Short break in minutes (3-15)")
	runCmd.Flags().IntVar(&runLongBreak, "long", 0, "Long break in minutes (10-30)")
	runCmd.Flags().IntVar(&runCycles, "cycles", 0, "Work phases before a long break (2-8)")
	runCmd.Flags().IntVar(&runRounds, "rounds", 0, "Phases to run; 0 runs one full cycle")
	runCmd.Flags().DurationVar(&runTick, "tick", 0, "Wall-clock length of one timer second (default TICK_INTERVAL)")
	runCmd.Flags().BoolVar(&runFastForward, "fast-forward", false, "Advance the clock as fast as possible")
	runCmd.Flags().BoolVar(&runSaveSettings, "save", false, "Write the resulting durations to POMODORO_SETTINGS_FILE")
}

func runPomodoro(cmd *cobra.Command, args []string) error {
	settings := cfg.Session
	flags := cmd.Flags()
	if flags.Changed("work") {
		settings.WorkMinutes = runWork
	}
	if flags.Changed("short") {
		settings.ShortBreakMinutes = runShortBreak
	}
	if flags.Changed("long") {
		settings.LongBreakMinutes = runLongBreak
	}
	if flags.Changed("cycles") {
		settings.CyclesBeforeLongBreak = runCycles
	}
	settings = pomodoro.Clamp(settings)

	if runSaveSettings {
		if cfg.SettingsFile == "" {
			return fmt.Errorf("--save needs POMODORO_SETTINGS_FILE")
		}
		if err := config.SaveSessionDefaults(cfg.SettingsFile, settings); err != nil {
			return err
		}
		logger.Info("settings saved", zap.String("path", cfg.SettingsFile))
	}

	rounds := runRounds
	if rounds <= 0 {
		rounds = settings.CyclesBeforeLongBreak * 2
	}
	interval := cfg.TickInterval
	if runTick > 0 {
		interval = runTick
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []pomodoro.Option{
		pomodoro.WithTickInterval(interval),
		pomodoro.WithLogger(logger.Named("clock")),
	}
	var manual *ticker.ManualFactory
	if runFastForward {
		manual = &ticker.ManualFactory{}
		opts = append(opts, pomodoro.WithTickerFactory(manual.New))
	}

	clock := pomodoro.NewClock(pomodoro.NewSettingsStore(settings), opts...)
	defer clock.Close()

	events, unsubscribe := clock.Subscribe(256)
	defer unsubscribe()

	if manual != nil {
		driveCtx, cancelDrive := context.WithCancel(ctx)
		defer cancelDrive()
		go fastForward(driveCtx, manual, events)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "work %dm, short break %dm, long break %dm, long break every %d\n",
		settings.WorkMinutes, settings.ShortBreakMinutes, settings.LongBreakMinutes, settings.CyclesBeforeLongBreak)

	clock.Start()
	return printEvents(ctx, out, clock, events, rounds)
}

func printEvents(ctx context.Context, out io.Writer, clock *pomodoro.Clock, events <-chan pomodoro.Event, rounds int) error {
	finished := 0
	for {
		select {
		case <-ctx.Done():
			state := clock.Snapshot()
			fmt.Fprintf(out, "\nstopped in %s with %s left\n", state.Phase, formatSeconds(state.RemainingSeconds))
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch event.Type {
			case pomodoro.EventTick:
				fmt.Fprintf(out, "\r%-12s %s", event.State.Phase, formatSeconds(event.State.RemainingSeconds))
			case pomodoro.EventPhaseComplete:
				tr := event.Transition
				fmt.Fprintf(out, "\r%s %s after %s, next %s\n",
					tr.From, tr.Outcome, formatSeconds(tr.ElapsedSeconds), tr.Phase)
				if tr.Phase == model.PhaseLongBreak {
					fmt.Fprintf(out, "cycle %d done\n", event.State.CompletedCycles)
				}

				finished++
				if finished >= rounds {
					return nil
				}
				clock.Start()
			}
		}
	}
}

// fastForward fires ticks into the most recent manual ticker until ctx ends.
// It holds back while events is more than half full so none are dropped.
func fastForward(ctx context.Context, factory *ticker.ManualFactory, events <-chan pomodoro.Event) {
	for ctx.Err() == nil {
		if len(events) > cap(events)/2 {
			pauseBriefly(ctx)
			continue
		}
		last := factory.Last()
		if last == nil || !last.Fire(10*time.Millisecond) {
			pauseBriefly(ctx)
		}
	}
}

func pauseBriefly(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Millisecond):
	}
}

func formatSeconds(total int) string {
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
