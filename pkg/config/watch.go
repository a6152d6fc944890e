package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/filebridge-dev/filebridge/internal/logger"
	"github.com/filebridge-dev/filebridge/pkg/sandbox"
)

// debounceWindow coalesces the burst of filesystem events an editor save
// produces into one reload.
const debounceWindow = 250 * time.Millisecond

// WatchSandbox reloads the sandbox allow-list when the config file
// changes and swaps the new policy into store.
//
// Only the sandbox section is applied on reload; transport and logging
// changes require a restart because the serve loop reads them once at
// startup. A reload that fails to parse or validate keeps the previous
// policy and logs the failure.
//
// WatchSandbox blocks until ctx is cancelled.
func WatchSandbox(ctx context.Context, configPath string, store *sandbox.Store) error {
	if configPath == "" {
		configPath = GetDefaultConfigPath()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and package managers
	// replace the file via rename, which drops a watch on the file itself.
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %q: %w", dir, err)
	}

	logger.Info("Watching config for allow-list changes", "path", configPath)

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
			} else {
				debounce.Reset(debounceWindow)
			}
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			reloadSandbox(configPath, store)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}

// reloadSandbox re-reads the config file and swaps the allow-list.
func reloadSandbox(configPath string, store *sandbox.Store) {
	cfg, err := Load(configPath)
	if err != nil {
		logger.Error("Config reload failed, keeping previous allow-list", "error", err)
		return
	}

	policy, err := sandbox.NewPolicy(cfg.Sandbox.AllowedRoots)
	if err != nil {
		logger.Error("Rejected reloaded allow-list", "error", err)
		return
	}

	store.Replace(policy)
	logger.Info("Allow-list reloaded", "roots", policy.Roots())
}
