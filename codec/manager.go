package codec

import (
	"sort"
	"strings"

	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/metrics"
)

// NameNone disables compression.
const NameNone = "none"

// factories builds a codec with default parameters, keyed by name.
var factories = map[string]func(VideoBackend) Compressor{
	NameLZ4:    func(VideoBackend) Compressor { return NewLZ4() },
	NameSquirt: func(VideoBackend) Compressor { return NewSquirt(SquirtMaxLevel) },
	NameZlib:   func(VideoBackend) Compressor { return NewZlib(6) },
	NameZstd:   func(VideoBackend) Compressor { return NewZstd(2) },
	NameNvPipe: func(b VideoBackend) Compressor { return NewNvPipe(b) },
}

// Info describes a registered codec.
type Info struct {
	Name      string `json:"name" yaml:"name"`
	Available bool   `json:"available" yaml:"available"`
	Default   string `json:"default" yaml:"default"`
}

// Manager selects a codec from a configuration string. A bad string never
// leaves the manager without the codec it had before.
type Manager struct {
	logger    *log.Logger
	collector *metrics.Collector
	video     VideoBackend

	current Compressor
	config  string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for configuration warnings.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithCollector records fallbacks and rejected configurations.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithVideoBackend makes the nvpipe codec available.
func WithVideoBackend(b VideoBackend) Option {
	return func(m *Manager) { m.video = b }
}

// NewManager creates a manager with compression disabled.
func NewManager(opts ...Option) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrNop(m.logger).Named("codec")
	return m
}

// Compressor returns the active codec, or nil when compression is disabled.
func (m *Manager) Compressor() Compressor { return m.current }

// Configuration returns the effective configuration string ("" when
// compression is disabled).
func (m *Manager) Configuration() string { return m.config }

// Configure applies config and returns the effective configuration.
//
// Unknown names and malformed parameters are warned about and leave the
// previous codec active. A known codec without a runtime backend is replaced
// by lz4 with the same loss-less flag.
func (m *Manager) Configure(config string) string {
	config = strings.TrimSpace(config)
	if config == "" || config == NameNone {
		m.current = nil
		m.config = ""
		return m.config
	}

	name, rest := nextToken(config)
	ctor, ok := factories[name]
	if !ok {
		m.logger.Warn("unknown codec, keeping previous", map[string]any{
			"requested": name,
			"active":    m.config,
		})
		m.collector.IncCodecRejected()
		return m.config
	}

	if !m.available(name) {
		flag, _ := nextToken(rest)
		if flag != "0" {
			flag = "1"
		}
		substitute := NameLZ4 + " " + flag
		m.logger.Warn("codec unavailable, substituting lz4", map[string]any{
			"requested":  config,
			"configured": substitute,
		})
		m.collector.IncCodecFallback()
		name, config = NameLZ4, substitute
		ctor = factories[NameLZ4]
	}

	c := m.current
	if c == nil || c.Name() != name {
		c = ctor(m.video)
	}
	if _, ok := c.RestoreConfiguration(config); !ok {
		m.logger.Warn("malformed codec configuration, keeping previous", map[string]any{
			"requested": config,
			"active":    m.config,
		})
		m.collector.IncCodecRejected()
		return m.config
	}

	m.current = c
	m.config = c.SaveConfiguration()
	return m.config
}

// SetLossLess changes the active codec's loss-less flag and keeps the
// configuration string in step.
func (m *Manager) SetLossLess(lossLess bool) {
	if m.current == nil {
		return
	}
	m.current.SetLossLess(lossLess)
	m.config = m.current.SaveConfiguration()
}

func (m *Manager) available(name string) bool {
	return name != NameNvPipe || m.video != nil
}

// Names lists every registered codec with its availability and default
// configuration, sorted by name.
func (m *Manager) Names() []Info {
	infos := make([]Info, 0, len(factories))
	for name, ctor := range factories {
		infos = append(infos, Info{
			Name:      name,
			Available: m.available(name),
			Default:   ctor(m.video).SaveConfiguration(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
