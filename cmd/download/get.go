package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/resumable-download/async"
	"github.com/alanbriolat/resumable-download/generic"
	"github.com/alanbriolat/resumable-download/internal/boltdb"
	"github.com/alanbriolat/resumable-download/internal/pubsub"
	"github.com/alanbriolat/resumable-download/internal/session"
	"github.com/alanbriolat/resumable-download/util"
)

func getCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "download URL, resuming from whatever OUTPUT already holds",
		ArgsUsage: "URL [OUTPUT]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "chunk-size",
				Value:   session.DefaultConfig.ChunkSize,
				Usage:   "read the response in chunks of `BYTES`",
				EnvVars: []string{"DOWNLOAD_CHUNK_SIZE"},
			},
			&cli.DurationFlag{
				Name:    "connect-timeout",
				Value:   session.DefaultConfig.ConnectTimeout,
				Usage:   "give up connecting after `DURATION`",
				EnvVars: []string{"DOWNLOAD_CONNECT_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:    "no-http2",
				Usage:   "don't attempt HTTP/2",
				EnvVars: []string{"DOWNLOAD_NO_HTTP2"},
			},
			&cli.BoolFlag{
				Name:    "insecure",
				Usage:   "skip TLS certificate verification",
				EnvVars: []string{"DOWNLOAD_INSECURE"},
			},
			&cli.BoolFlag{
				Name:    "no-follow",
				Usage:   "don't follow redirects",
				EnvVars: []string{"DOWNLOAD_NO_FOLLOW"},
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Value:   session.DefaultConfig.UserAgent,
				Usage:   "send `AGENT` as the User-Agent header",
				EnvVars: []string{"DOWNLOAD_USER_AGENT"},
			},
			&cli.DurationFlag{
				Name:    "pause-after",
				Usage:   "pause the download after `DURATION`",
				EnvVars: []string{"DOWNLOAD_PAUSE_AFTER"},
			},
			&cli.DurationFlag{
				Name:    "resume-after",
				Usage:   "resume a paused download after another `DURATION`",
				EnvVars: []string{"DOWNLOAD_RESUME_AFTER"},
			},
			&cli.DurationFlag{
				Name:    "cancel-after",
				Usage:   "cancel the download after `DURATION`",
				EnvVars: []string{"DOWNLOAD_CANCEL_AFTER"},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("expected URL [OUTPUT]", 2)
			}
			source := c.Args().Get(0)
			output := c.Args().Get(1)
			if output == "" {
				var err error
				if output, err = util.FilenameFromURLString(source); err != nil {
					return fmt.Errorf("no OUTPUT given and %w", err)
				}
			}
			f, err := fileConfigFromContext(c)
			if err != nil {
				return err
			}
			db, err := boltdb.New(databasePath(c, f))
			if err != nil {
				return err
			}
			defer db.Close()
			config := sessionConfig(c, f)
			config.Database = db
			s := script{
				pauseAfter:  c.Duration("pause-after"),
				resumeAfter: c.Duration("resume-after"),
				cancelAfter: c.Duration("cancel-after"),
			}
			return get(ctx, config, source, output, s)
		},
	}
}

func get(ctx context.Context, config session.Config, source, output string, s script) error {
	logger := zap.S()
	logger.Infof("Downloading from %s into %s", source, output)

	// Not ctx: an interrupt should cancel the transfer, not fail it
	ses, err := session.New(context.Background(), config)
	if err != nil {
		return err
	}
	defer ses.Close()

	events := session.NewEventObserver()
	progress, err := subscribe(events, true)
	if err != nil {
		return err
	}
	lifecycle, err := subscribe(events, false)
	if err != nil {
		return err
	}
	ses.AddObserver(events)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		showProgress(progress)
	}()
	failure := async.Run(func() error { return logEvents(ses, lifecycle) })

	if err := ses.Start(source, output); err != nil {
		events.Close()
		wg.Wait()
		return err
	}
	scriptCtx, stopScript := context.WithCancel(ctx)
	defer stopScript()
	go s.run(scriptCtx, ses)

	waited := async.RunResult(func() (session.State, error) { return ses.Wait(context.Background()) })
	var result generic.Result[session.State]
	select {
	case result = <-waited:
	case <-ctx.Done():
		logger.Info("Exiting gracefully...")
		ses.Cancel()
		result = <-waited
	}
	stopScript()
	_ = ses.Close()
	events.Close()
	wg.Wait()
	state, err := result.Parts()
	if err != nil {
		return err
	}

	switch state {
	case session.StateCompleted:
		logger.Info("Download complete")
	case session.StateCancelled:
		logger.Info("Download cancelled, run again to resume")
	default:
		return fmt.Errorf("download failed: %w", <-failure)
	}
	return nil
}

// subscribe returns either only the progress events, or everything else.
func subscribe(events *session.EventObserver, progress bool) (pubsub.Receiver[session.Event], error) {
	ch := pubsub.NewChannel[session.Event](pubsub.DefaultSubscriberBufSize)
	filtered := pubsub.NewFilteredSender[session.Event](ch, func(e session.Event) bool {
		_, isProgress := e.(session.ProgressEvent)
		return isProgress == progress
	})
	if err := events.AddSubscriber(filtered, true); err != nil {
		return nil, err
	}
	return ch, nil
}

func showProgress(events pubsub.Receiver[session.Event]) {
	bar := progressbar.DefaultBytes(-1, "downloading")
	for event := range events.Receive() {
		p, ok := event.(session.ProgressEvent)
		if !ok {
			continue
		}
		if p.Total > 0 && bar.GetMax64() != p.Total {
			bar.ChangeMax64(p.Total)
		}
		_ = bar.Set64(p.Downloaded)
	}
	_ = bar.Finish()
	fmt.Println()
}

// logEvents logs lifecycle events and what changed in the session since the last one, returning the error if the
// transfer failed.
func logEvents(ses *session.Session, events pubsub.Receiver[session.Event]) (failure error) {
	logger := zap.S()
	last := ses.Stats()
	for event := range events.Receive() {
		logger.Debugf("event: %T: %v", event, event)
		switch e := event.(type) {
		case session.PausedEvent:
			logger.Info("Download paused")
		case session.ResumedEvent:
			logger.Info("Download resumed")
		case session.ErrorEvent:
			failure = e.Err
		}
		stats := ses.Stats()
		changes, err := diff.Diff(last, stats)
		if err != nil {
			logger.Errorf("failed to diff old and new session stats: %v", err)
		} else {
			for _, change := range changes {
				logger.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
			}
		}
		last = stats
	}
	return failure
}

// script replays pause, resume and cancel at fixed times after the start, like a user at the keyboard.
type script struct {
	pauseAfter  time.Duration
	resumeAfter time.Duration
	cancelAfter time.Duration
}

type scriptStep struct {
	at     time.Duration
	name   string
	action func()
}

func (s script) steps(ses *session.Session) []scriptStep {
	var steps []scriptStep
	if s.pauseAfter > 0 {
		steps = append(steps, scriptStep{s.pauseAfter, "pause", ses.Pause})
		if s.resumeAfter > 0 {
			steps = append(steps, scriptStep{s.pauseAfter + s.resumeAfter, "resume", ses.Resume})
		}
	}
	if s.cancelAfter > 0 {
		steps = append(steps, scriptStep{s.cancelAfter, "cancel", ses.Cancel})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].at < steps[j].at })
	return steps
}

func (s script) run(ctx context.Context, ses *session.Session) {
	start := time.Now()
	for _, step := range s.steps(ses) {
		timer := time.NewTimer(time.Until(start.Add(step.at)))
		select {
		case <-timer.C:
			zap.S().Infof("Scripted %s after %v", step.name, step.at)
			step.action()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
