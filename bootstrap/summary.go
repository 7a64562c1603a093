package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
)

// StreamInfo describes a long-lived stream the process exposes.
type StreamInfo struct {
	Name string
	// Kind is "broadcast", "state" or "cold".
	Kind string
	// Path is the HTTP path serving it, if any.
	Path string
}

// Summary collects what the process runs and prints it once startup is done.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer

	mu      sync.Mutex
	streams []StreamInfo
}

// NewSummary returns a Summary printing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetOutput redirects the summary.
func (s *Summary) SetOutput(w io.Writer) {
	s.out = w
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackStream records a stream for the summary.
func (s *Summary) TrackStream(name, kind, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, StreamInfo{Name: name, Kind: kind, Path: path})
}

// Streams returns the tracked streams sorted by name.
func (s *Summary) Streams() []StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]StreamInfo(nil), s.streams...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Display prints the summary. Infrastructure and routes are collected from
// the components that implement Describable and RouteProvider.
func (s *Summary) Display(registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	var infra []component.Description
	var routes []component.Route
	if registry != nil {
		for _, c := range registry.All() {
			if d, ok := c.(component.Describable); ok {
				desc := d.Describe()
				if desc.Name == "" {
					desc.Name = c.Name()
				}
				infra = append(infra, desc)
			}
			if rp, ok := c.(component.RouteProvider); ok {
				routes = append(routes, rp.Routes()...)
			}
		}
	}

	if len(infra) > 0 {
		fmt.Fprintf(w, "\n📊 Infrastructure\n")
		for i, d := range infra {
			details := d.Details
			if d.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", branch(i, len(infra)), d.Name, d.Type, details)
		}
	}

	if streams := s.Streams(); len(streams) > 0 {
		fmt.Fprintf(w, "\n🌊 Streams (%d)\n", len(streams))
		for i, st := range streams {
			line := fmt.Sprintf("%s (%s)", st.Name, st.Kind)
			if st.Path != "" {
				line += " → " + st.Path
			}
			fmt.Fprintf(w, "   %s %s\n", branch(i, len(streams)), line)
		}
	}

	if names := logger.Names(); len(names) > 0 {
		fmt.Fprintf(w, "\n📝 Loggers (%d)\n", len(names))
		fmt.Fprintf(w, "   └── %s\n", strings.Join(names, ", "))
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "\n🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", branch(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	if registry != nil {
		if health := registry.HealthAll(context.Background()); len(health) > 0 {
			fmt.Fprintf(w, "\n🏥 Health Check\n")
			for i, h := range health {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(w, "   %s %s %s: %s%s\n", branch(i, len(health)), healthStatusIcon(h.Status), h.Name,
					strings.ToLower(string(h.Status)), msg)
			}
		}
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
