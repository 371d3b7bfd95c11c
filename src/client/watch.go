package client

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
	"github.com/apimgr/weather-probe/src/scheduler"
)

const probeTaskName = "probe"

// watcher runs the probe on a schedule and follows config file edits
type watcher struct {
	app   *app
	sched *scheduler.Scheduler
	// set when --schedule was given, config reloads keep it
	schedulePinned bool

	mu     sync.RWMutex
	target Target
}

// handleWatchCommand handles the watch command
func handleWatchCommand(ctx context.Context, a *app, args []string) error {
	flagSet := flag.NewFlagSet("watch", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	schedule := flagSet.String("schedule", a.config.Watch.Schedule, "Cron expression or descriptor (\"@every 10m\", \"*/15 * * * *\")")
	noImmediate := flagSet.Bool("no-immediate", false, "Wait for the first scheduled run instead of probing at startup")
	pidFile := flagSet.String("pid-file", "", "Write the process ID to this file while watching")

	if err := flagSet.Parse(args); err != nil {
		return NewUsageError(err.Error())
	}
	if _, err := scheduler.ParseSchedule(*schedule); err != nil {
		return NewUsageError(fmt.Sprintf("invalid schedule %q: %v", *schedule, err))
	}

	w := &watcher{
		app:    a,
		sched:  scheduler.New(ctx, a.logger),
		target: TargetFromConfig(a.config),
	}
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "schedule" {
			w.schedulePinned = true
		}
	})
	if err := w.sched.AddTask(probeTaskName, *schedule, w.probe); err != nil {
		return NewUsageError(err.Error())
	}

	release, err := acquirePIDFile(*pidFile)
	if err != nil {
		return err
	}
	defer release()

	stopWatching := w.watchConfig(a.configPath)
	defer stopWatching()

	stopSignals := w.reloadOnSignal(ctx, a.configPath)
	defer stopSignals()

	w.sched.Start()
	defer w.sched.Stop()

	a.logger.Info("watching with schedule %s", *schedule)
	if !*noImmediate {
		if err := w.sched.RunNow(probeTaskName); err != nil && ctx.Err() == nil && a.config.Strict {
			return wrapExit(err)
		}
	}

	<-ctx.Done()
	for _, st := range w.sched.Status() {
		a.logger.Info("task '%s' stopping after %d runs (%d skipped while busy)", st.Name, st.Runs, st.Skipped)
	}
	return nil
}

// probe is the scheduled task. The metrics textfile is rewritten after every
// run so a node_exporter textfile collector sees fresh values.
func (w *watcher) probe(ctx context.Context) error {
	w.mu.RLock()
	target := w.target
	w.mu.RUnlock()

	err := w.app.runProbe(ctx, target)
	fmt.Fprintln(w.app.stdout)

	if path := w.app.config.Metrics.Textfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			w.app.logger.Error("%v", werr)
		}
	}
	return err
}

// reload applies a changed config file to the running watcher
func (w *watcher) reload(config *CLIConfig) error {
	w.mu.Lock()
	w.target = TargetFromConfig(config)
	w.mu.Unlock()

	if config.Watch.Schedule != "" && !w.schedulePinned {
		if err := w.sched.Reschedule(probeTaskName, config.Watch.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// reloadFrom loads configPath and applies it, logging failures
func (w *watcher) reloadFrom(configPath string, logger *logging.Logger) {
	config, err := LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load changed config: %v", err)
		return
	}
	if err := w.reload(config); err != nil {
		logger.Error("failed to apply changed config: %v", err)
		return
	}
	logger.Info("configuration reloaded")
}

// reloadOnSignal reloads the config file on SIGHUP (Unix only)
func (w *watcher) reloadOnSignal(ctx context.Context, configPath string) func() {
	sigs := reloadSignals()
	if len(sigs) == 0 {
		return func() {}
	}

	logger := w.app.logger.With("config")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sigs...)

	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case sig := <-sigCh:
				logger.Info("received %s, reloading configuration", sig)
				w.reloadFrom(configPath, logger)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(stop)
		<-done
	}
}

// watchConfig reloads the probe target and schedule when the config file
// changes. It returns a function that stops watching.
func (w *watcher) watchConfig(configPath string) func() {
	logger := w.app.logger.With("config")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watcher unavailable: %v", err)
		return func() {}
	}

	// Watch the directory, editors often replace the file instead of writing it
	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		logger.Debug("not watching %s: %v", configPath, err)
		fsw.Close()
		return func() {}
	}
	logger.Info("watching for config file changes: %s", configPath)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(fsw, configPath, 500*time.Millisecond, logger, stop, func() {
			w.reloadFrom(configPath, logger)
		})
	}()

	return func() {
		close(stop)
		fsw.Close()
		<-done
	}
}

// watchLoop calls onChange once per burst of writes to path, after the
// burst has been quiet for debounce
func watchLoop(fsw *fsnotify.Watcher, path string, debounce time.Duration, logger *logging.Logger, stop <-chan struct{}, onChange func()) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error: %v", err)

		case <-stop:
			return
		}
	}
}
