package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is rewritten on disk.  It is intended for
// hot-reloading non-critical settings such as log level and scan limits;
// callers are responsible for applying only the safe subset of changes at
// runtime.
//
// Watch is non-blocking; the returned stop function releases the underlying
// watcher.  A changed file that fails to parse or validate is skipped so the
// process never observes a broken configuration.
func Watch(configPath string, onChange func(*Config)) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: editors and configmap mounts
	// replace the file via rename, which drops a direct file watch.
	dir := filepath.Dir(configPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	target := filepath.Clean(configPath)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(configPath)
				if err != nil {
					continue
				}
				onChange(cfg)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { _ = w.Close() }, nil
}
