package plugins

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hyprshell/hyprshell/internal/compositor"
)

func init() {
	Register("system_notifier", func(rt *Runtime) Plugin {
		return &SystemNotifierPlugin{rt: rt, logger: rt.Logger}
	})
}

// NotifierSource tails one command's output and feeds it through a parser.
type NotifierSource struct {
	Name    string `mapstructure:"name"`
	Command string `mapstructure:"command"`
	Parser  string `mapstructure:"parser"`
}

// NotifierParser matches lines and shapes the resulting notification.
type NotifierParser struct {
	Pattern string `mapstructure:"pattern"`
	Filter  string `mapstructure:"filter"`
	Urgency string `mapstructure:"urgency"`
}

// SystemNotifierConfig wires sources to parsers.
type SystemNotifierConfig struct {
	Sources []NotifierSource          `mapstructure:"sources"`
	Parsers map[string]NotifierParser `mapstructure:"parsers"`

	// MaxPerMinute caps notification volume; log storms should not
	// become notification storms.
	MaxPerMinute int `mapstructure:"max_per_minute"`
}

type compiledParser struct {
	pattern *regexp.Regexp
	filter  *regexp.Regexp
	urgency string
}

// SystemNotifierPlugin turns matching log lines from configured command
// pipes into desktop notifications.
type SystemNotifierPlugin struct {
	rt     *Runtime
	logger *logrus.Logger
	config SystemNotifierConfig

	parsers map[string]compiledParser
	limiter *rate.Limiter
	cancel  context.CancelFunc
	sent    int
}

func (p *SystemNotifierPlugin) Name() string { return "system_notifier" }

func (p *SystemNotifierPlugin) Init(config map[string]interface{}) error {
	p.config = SystemNotifierConfig{MaxPerMinute: 30}
	if err := mapstructure.Decode(config, &p.config); err != nil {
		return fmt.Errorf("system_notifier config: %w", err)
	}

	p.parsers = make(map[string]compiledParser, len(p.config.Parsers))
	for name, parser := range p.config.Parsers {
		pattern, err := regexp.Compile(parser.Pattern)
		if err != nil {
			return fmt.Errorf("parser %q pattern: %w", name, err)
		}
		compiled := compiledParser{pattern: pattern, urgency: parser.Urgency}
		if parser.Filter != "" {
			filter, err := regexp.Compile(parser.Filter)
			if err != nil {
				return fmt.Errorf("parser %q filter: %w", name, err)
			}
			compiled.filter = filter
		}
		p.parsers[name] = compiled
	}

	p.limiter = rate.NewLimiter(rate.Limit(float64(p.config.MaxPerMinute)/60.0), 5)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for _, source := range p.config.Sources {
		go p.tailSource(ctx, source)
	}

	p.logger.WithFields(logrus.Fields{
		"sources": len(p.config.Sources),
		"parsers": len(p.parsers),
	}).Info("System notifier plugin initialized")
	return nil
}

func (p *SystemNotifierPlugin) tailSource(ctx context.Context, source NotifierSource) {
	parser, ok := p.parsers[source.Parser]
	if !ok {
		p.logger.WithField("source", source.Name).Warn("Source references unknown parser")
		return
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", source.Command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.logger.WithError(err).WithField("source", source.Name).Error("Failed to open source pipe")
		return
	}
	if err := cmd.Start(); err != nil {
		p.logger.WithError(err).WithField("source", source.Name).Error("Failed to start source command")
		return
	}
	defer cmd.Wait()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if parser.filter != nil && !parser.filter.MatchString(line) {
			continue
		}
		match := parser.pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		message := line
		if len(match) > 1 {
			message = match[1]
		}
		if !p.limiter.Allow() {
			continue
		}
		p.notify(message, parser.urgency, 5000)
	}
}

func (p *SystemNotifierPlugin) notify(message, urgency string, timeoutMS int) {
	if urgency == "" {
		urgency = "normal"
	}
	id := uuid.NewString()
	cmd := exec.Command("notify-send",
		"--urgency", urgency,
		"--expire-time", strconv.Itoa(timeoutMS),
		"--hint", "string:x-hyprshell-id:"+id,
		"hyprshell", message)
	if err := cmd.Run(); err != nil {
		p.logger.WithError(err).Debug("notify-send failed")
		return
	}
	p.sent++
}

func (p *SystemNotifierPlugin) HandleEvent(compositor.Event) error { return nil }

func (p *SystemNotifierPlugin) HandleCommand(verb string, args []string) (string, error) {
	switch verb {
	case "notify":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: notify <message> [urgency] [timeout_ms]")
		}
		urgency := "normal"
		if len(args) > 1 {
			urgency = args[1]
		}
		timeout := 5000
		if len(args) > 2 {
			if t, err := strconv.Atoi(args[2]); err == nil {
				timeout = t
			}
		}
		p.notify(args[0], urgency, timeout)
		return "notification sent", nil
	case "status":
		return fmt.Sprintf("%d sources, %d parsers, %d notifications sent",
			len(p.config.Sources), len(p.parsers), p.sent), nil
	default:
		return "", fmt.Errorf("unknown system_notifier command: %s", verb)
	}
}

// Cleanup stops every source tail.
func (p *SystemNotifierPlugin) Cleanup() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
