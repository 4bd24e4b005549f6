// Package settings persists the user-adjustable presentation and input
// tuning across sessions as a single JSON blob, merged over computed
// defaults on load so older or partial files never break an upgrade.
package settings

import (
	"os"
	"path/filepath"

	"github.com/cloudview/cloudview/pkg/config"
	"github.com/cloudview/cloudview/pkg/logger"
	xos "github.com/cloudview/cloudview/pkg/os"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
)

const fileName = "settings.json"

// Settings is the persisted blob. Every field is optional on disk:
// whatever the file does not carry keeps its default.
type Settings struct {
	Renderer         string `json:"renderer,omitempty"`
	QueueDepth       int    `json:"queueDepth,omitempty"`
	ImmersiveKeybind bool   `json:"immersiveKeybind"`
	MouseMode        string `json:"mouseMode,omitempty"`
	TouchMode        string `json:"touchMode,omitempty"`
	ScrollMode       string `json:"scrollMode,omitempty"`
	SwapAB           bool   `json:"swapAB"`
	SwapXY           bool   `json:"swapXY"`
}

// Defaults derives the baseline from the app configuration.
func Defaults(conf config.ViewerConfig) Settings {
	return Settings{
		Renderer:         conf.Presentation.Renderer,
		QueueDepth:       conf.Presentation.QueueDepth,
		ImmersiveKeybind: conf.Presentation.ImmersiveKeybind,
		MouseMode:        conf.Input.MouseMode,
		TouchMode:        conf.Input.TouchMode,
		ScrollMode:       conf.Input.ScrollMode,
		SwapAB:           conf.Input.SwapAB,
		SwapXY:           conf.Input.SwapXY,
	}
}

// Store reads and writes the blob under a directory, guarding writes
// with a file lock so concurrent viewer instances don't interleave.
type Store struct {
	dir      string
	defaults Settings
	log      *logger.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewStore(dir string, defaults Settings, log *logger.Logger) (*Store, error) {
	if dir == "" {
		home, err := xos.GetUserHome()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cloudview")
	}
	if err := xos.CheckCreateDir(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir, defaults: defaults, log: log}, nil
}

func (s *Store) path() string { return filepath.Join(s.dir, fileName) }

// Load merges the persisted blob over the defaults. A missing file or
// an unreadable one yields plain defaults, never an error: settings
// are a convenience, not a dependency.
func (s *Store) Load() Settings {
	out := s.defaults
	data, err := os.ReadFile(s.path())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("settings read failed, using defaults")
		}
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn().Err(err).Msg("settings are corrupt, using defaults")
		return s.defaults
	}
	return out
}

// Save persists the blob atomically: temp file first, then rename,
// under a file lock.
func (s *Store) Save(v Settings) error {
	lock, err := xos.NewFileLock(filepath.Join(s.dir, ".lock"))
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.log.Error().Err(err).Msg("settings unlock failed")
		}
	}()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path() + ".tmp"
	if err := xos.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// Watch emits a freshly loaded snapshot whenever the blob changes on
// disk, so an edit from another instance or by hand shows up live.
func (s *Store) Watch(onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != fileName {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange(s.Load())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Error().Err(err).Msg("settings watch error")
			case <-s.done:
				return
			}
		}
	}()
	return watcher.Add(s.dir)
}

func (s *Store) Close() {
	if s.watcher != nil {
		close(s.done)
		_ = s.watcher.Close()
		s.watcher = nil
	}
}
