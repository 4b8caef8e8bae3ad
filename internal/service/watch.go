package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pipecheck/internal/config"
)

const reloadDebounce = 500 * time.Millisecond

// Watch schedules the mapping and table checks on the configured cron
// expression and, when the config came from a file, re-runs the mapping
// check after each change to it. History older than the retention window
// is pruned at start and on every scheduled run. It returns once
// everything is started; Stop tears it down.
func (s *CheckService) Watch(ctx context.Context) error {
	s.stopWatchers()
	cfg := s.Config()

	c := cron.New()
	_, err := c.AddFunc(cfg.Watch.Schedule, func() {
		s.logger.Info("watch: scheduled run", zap.String("schedule", cfg.Watch.Schedule))
		s.runLogged(ctx, s.RunMapping)
		s.runLogged(ctx, s.RunTables)
		s.pruneLogged(cfg.History.Retention)
	})
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", cfg.Watch.Schedule, err)
	}
	s.pruneLogged(cfg.History.Retention)
	c.Start()
	s.cronSched = c
	s.logger.Info("watch: schedule started", zap.String("schedule", cfg.Watch.Schedule))

	if cfg.Path == "" {
		return nil
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return fmt.Errorf("bad config path %q: %w", cfg.Path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel

	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if p, _ := filepath.Abs(event.Name); p != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() {
					if watchCtx.Err() != nil {
						return
					}
					if err := s.reload(watchCtx, absPath); err != nil {
						s.logger.Error("watch: reload config", zap.String("path", absPath), zap.Error(err))
						return
					}
					s.runLogged(watchCtx, s.RunMapping)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watch: watcher error", zap.Error(err))
			}
		}
	}()

	s.logger.Info("watch: watching config file", zap.String("path", absPath))
	return nil
}

// reload re-reads the mapping and table expectations from path. Store,
// schedule and history settings keep their startup values.
func (s *CheckService) reload(ctx context.Context, path string) error {
	next, err := config.Load(path, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	cfg := *s.cfg
	cfg.Mapping = next.Mapping
	cfg.Tables = next.Tables
	s.cfg = &cfg
	s.mu.Unlock()

	s.logger.Info("watch: config reloaded", zap.Int("direct", len(next.Mapping.Direct)), zap.Int("overflow", len(next.Mapping.Overflow)))
	s.emitter.Emit(ctx, EventConfigReloaded, path)
	return nil
}

func (s *CheckService) runLogged(ctx context.Context, fn func(context.Context) (*RunResult, error)) {
	if _, err := fn(ctx); err != nil {
		s.logger.Warn("watch: run skipped", zap.Error(err))
	}
}

func (s *CheckService) pruneLogged(retention time.Duration) {
	if s.history == nil {
		return
	}
	if _, err := s.PruneHistory(retention); err != nil {
		s.logger.Warn("watch: prune history", zap.Error(err))
	}
}

// Stop tears down the schedule and the config watcher.
func (s *CheckService) Stop() {
	s.stopWatchers()
}

func (s *CheckService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		<-s.cronSched.Stop().Done()
		s.cronSched = nil
	}
}
