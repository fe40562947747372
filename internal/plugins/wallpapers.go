package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("wallpapers", func(rt *Runtime) Plugin {
		return &WallpapersPlugin{rt: rt, logger: rt.Logger}
	})
}

// WallpapersConfig drives wallpaper rotation.
type WallpapersConfig struct {
	Path       string   `mapstructure:"path"`
	Interval   int      `mapstructure:"interval"` // seconds; 0 disables rotation
	Command    string   `mapstructure:"command"`  // "[file]" is replaced with the image path
	Extensions []string `mapstructure:"extensions"`
}

// WallpapersPlugin rotates wallpapers from a directory on a timer and on
// demand.
type WallpapersPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config WallpapersConfig

	files   []string
	current int
	stopCh  chan struct{}
	proc    *exec.Cmd
}

func (p *WallpapersPlugin) Name() string { return "wallpapers" }

func (p *WallpapersPlugin) Init(config map[string]interface{}) error {
	p.config = WallpapersConfig{
		Command:    "swaybg -i [file] -m fill",
		Extensions: []string{".jpg", ".jpeg", ".png", ".webp"},
	}
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("wallpapers config: %w", err)
	}

	if p.config.Path != "" {
		if p.rt.Variables != nil {
			p.config.Path = expandVariables(p.config.Path, p.rt.Variables())
		}
		if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p.config.Path, "~/") {
			p.config.Path = filepath.Join(home, p.config.Path[2:])
		}
		if err := p.scanFiles(); err != nil {
			return err
		}
	}

	p.current = -1
	if p.config.Interval > 0 && len(p.files) > 0 {
		p.stopCh = make(chan struct{})
		go p.rotate()
	}

	p.logger.WithField("wallpapers", len(p.files)).Info("Wallpapers plugin initialized")
	return nil
}

func (p *WallpapersPlugin) scanFiles() error {
	entries, err := os.ReadDir(p.config.Path)
	if err != nil {
		return fmt.Errorf("wallpaper directory %s: %w", p.config.Path, err)
	}
	p.files = p.files[:0]
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range p.config.Extensions {
			if ext == allowed {
				p.files = append(p.files, filepath.Join(p.config.Path, entry.Name()))
				break
			}
		}
	}
	sort.Strings(p.files)
	return nil
}

func (p *WallpapersPlugin) rotate() {
	ticker := time.NewTicker(time.Duration(p.config.Interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := p.next(); err != nil {
				p.logger.WithError(err).Warn("Wallpaper rotation failed")
			}
		case <-p.stopCh:
			return
		}
	}
}

func (p *WallpapersPlugin) next() (string, error) {
	if len(p.files) == 0 {
		return "", fmt.Errorf("no wallpapers found")
	}
	p.current = (p.current + 1) % len(p.files)
	return p.apply(p.files[p.current])
}

func (p *WallpapersPlugin) apply(file string) (string, error) {
	if p.proc != nil && p.proc.Process != nil {
		_ = p.proc.Process.Kill()
		p.proc = nil
	}

	command := strings.ReplaceAll(p.config.Command, "[file]", file)
	cmd := exec.Command("sh", "-c", command)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("set wallpaper: %w", err)
	}
	p.proc = cmd
	go cmd.Wait()

	return fmt.Sprintf("wallpaper set to %s", filepath.Base(file)), nil
}

func (p *WallpapersPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *WallpapersPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "", "next":
		return p.next()
	case "set":
		if len(args) == 0 {
			return "", fmt.Errorf("set requires an index or file name")
		}
		if index, err := strconv.Atoi(args[0]); err == nil {
			if index < 0 || index >= len(p.files) {
				return "", fmt.Errorf("wallpaper index %d out of range", index)
			}
			p.current = index
			return p.apply(p.files[index])
		}
		for i, file := range p.files {
			if strings.Contains(filepath.Base(file), args[0]) {
				p.current = i
				return p.apply(file)
			}
		}
		return "", fmt.Errorf("no wallpaper matches %q", args[0])
	case "clear":
		if p.proc != nil && p.proc.Process != nil {
			_ = p.proc.Process.Kill()
			p.proc = nil
		}
		return "wallpaper cleared", nil
	case "status":
		current := "none"
		if p.current >= 0 && p.current < len(p.files) {
			current = filepath.Base(p.files[p.current])
		}
		return fmt.Sprintf("%d wallpapers, current: %s", len(p.files), current), nil
	default:
		return "", fmt.Errorf("unknown wallpapers command: %s", verb)
	}
}

// SnapshotState keeps the rotation position across reloads.
func (p *WallpapersPlugin) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(struct {
		Current int `json:"current"`
	}{p.current})
}

func (p *WallpapersPlugin) RestoreState(state json.RawMessage) error {
	var snap struct {
		Current int `json:"current"`
	}
	if err := json.Unmarshal(state, &snap); err != nil {
		return err
	}
	if snap.Current >= -1 && snap.Current < len(p.files) {
		p.current = snap.Current
	}
	return nil
}

// Cleanup stops rotation and the wallpaper process.
func (p *WallpapersPlugin) Cleanup() error {
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	if p.proc != nil && p.proc.Process != nil {
		_ = p.proc.Process.Kill()
		p.proc = nil
	}
	return nil
}
