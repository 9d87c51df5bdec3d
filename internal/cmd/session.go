package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Iron-Ham/stagehand/internal/lifecycle"
	"github.com/Iron-Ham/stagehand/internal/manifest"
)

// session drives one manifest through a host: a single run, or a live tree
// that is restarted on manifest changes until ctx is done.
type session struct {
	host     *host
	path     string
	manifest *manifest.Manifest

	serve    bool
	reload   bool
	debounce time.Duration

	out   io.Writer
	color bool
}

func (s *session) run(ctx context.Context) error {
	res, err := s.host.start(ctx, s.manifest)
	renderResult(s.out, res, s.color)
	if err != nil {
		return err
	}
	if res.Aborted {
		return errRunFailed
	}

	if !s.serve {
		report := s.host.stop(context.WithoutCancel(ctx))
		renderTeardown(s.out, report, s.color)
		return outcome(res, report)
	}

	reloads, stopWatching, err := s.watch()
	if err != nil {
		s.host.stop(context.WithoutCancel(ctx))
		return err
	}
	defer stopWatching()

	for {
		select {
		case <-ctx.Done():
			report := s.host.stop(context.WithoutCancel(ctx))
			renderTeardown(s.out, report, s.color)
			return nil

		case <-reloads:
			m, err := manifest.Load(s.path)
			if err != nil {
				s.host.logger.Warn("reload skipped", "error", err.Error())
				fmt.Fprintf(s.out, "Reload skipped: %v\n", err)
				continue
			}
			report := s.host.stop(context.WithoutCancel(ctx))
			renderTeardown(s.out, report, s.color)

			s.manifest = m
			res, err := s.host.start(ctx, m)
			renderResult(s.out, res, s.color)
			if err != nil && ctx.Err() == nil {
				s.host.logger.Error("reloaded tree failed", "error", err.Error())
			}
		}
	}
}

// watch returns a channel that receives once per debounced manifest change.
// Without reload it returns a nil channel, which never fires.
func (s *session) watch() (<-chan struct{}, func(), error) {
	if !s.reload {
		return nil, func() {}, nil
	}
	w, err := manifest.NewWatcher(s.path, s.debounce, s.host.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch manifest: %w", err)
	}
	ch := make(chan struct{}, 1)
	w.OnChange(func(string) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	w.Start()
	return ch, w.Stop, nil
}

// outcome maps a completed run to the command's error.
func outcome(res *lifecycle.Result, report *lifecycle.TeardownReport) error {
	if !res.OK() || len(report.Failed) > 0 {
		return errRunFailed
	}
	return nil
}
