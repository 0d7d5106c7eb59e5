/*
NAME
  watch.go

DESCRIPTION
  watch.go hot-reloads the allow-list configuration surface (ORG and
  EEE codes the triplet validator enforces) from disk, since FCC event
  code tables are occasionally revised administratively and a station
  should not need a restart to pick up a revision. Uses fsnotify, as
  elsewhere in this repository's client-side configuration tooling.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package config

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
)

// AllowLists is the hot-reloadable subset of Config the validator
// reads on every update.
type AllowLists struct {
	AllowedOriginators []string
	AllowedEventCodes  []string
}

// Watcher watches the backing files for AllowedOriginators and
// AllowedEventCodes and pushes a fresh AllowLists to its Updates
// channel whenever either changes on disk.
type Watcher struct {
	orgPath   string
	eventPath string
	log       logging.Logger

	updates chan AllowLists
	watcher *fsnotify.Watcher
}

// NewWatcher constructs a Watcher over the given allow-list files.
// Either path may be empty to skip watching that list.
func NewWatcher(orgPath, eventPath string, log logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		orgPath:   orgPath,
		eventPath: eventPath,
		log:       log,
		updates:   make(chan AllowLists, 1),
		watcher:   fw,
	}
	if orgPath != "" {
		if err := fw.Add(orgPath); err != nil {
			fw.Close()
			return nil, err
		}
	}
	if eventPath != "" {
		if err := fw.Add(eventPath); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Updates returns the channel fresh AllowLists are published on.
func (w *Watcher) Updates() <-chan AllowLists { return w.updates }

// Run watches for filesystem events until ctx is cancelled, pushing a
// reloaded AllowLists on every write or create event. Run is intended
// to be the body of its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			lists, err := w.reload()
			if err != nil {
				if w.log != nil {
					w.log.Warning("config: allow-list reload failed", "file", ev.Name, "error", err.Error())
				}
				continue
			}
			select {
			case w.updates <- lists:
			default:
				// Drop the stale pending update in favor of the fresh one.
				select {
				case <-w.updates:
				default:
				}
				w.updates <- lists
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warning("config: watch error", "error", err.Error())
			}
		}
	}
}

func (w *Watcher) reload() (AllowLists, error) {
	var lists AllowLists
	var err error
	if w.orgPath != "" {
		lists.AllowedOriginators, err = readLines(w.orgPath)
		if err != nil {
			return AllowLists{}, err
		}
	}
	if w.eventPath != "" {
		lists.AllowedEventCodes, err = readLines(w.eventPath)
		if err != nil {
			return AllowLists{}, err
		}
	}
	return lists, nil
}

// readLines reads one whitespace-trimmed, non-empty, non-comment
// ("#"-prefixed) entry per line.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
