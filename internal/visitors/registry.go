// file: internal/visitors/registry.go
// version: 1.0.0
// guid: 7d2e9a41-c5b8-4f63-8e10-b4a6f3c91d25

// Package visitors keeps an in-memory record of which devices have talked to
// the server recently.
package visitors

import (
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"

	"github.com/jdfalk/mediashare/internal/metrics"
)

// Device kinds reported for a visitor.
const (
	DevicePhone  = "Phone"
	DeviceTablet = "Tablet"
	DevicePC     = "PC"
	DeviceBot    = "Bot"
	DeviceOther  = "Other"
)

// ClientRecord describes the last request seen from one address.
type ClientRecord struct {
	IP         string    `json:"ip"`
	DeviceKind string    `json:"device_type"`
	OS         string    `json:"os"`
	Browser    string    `json:"browser"`
	LastSeenAt time.Time `json:"last_seen_at"`
	LastSeen   string    `json:"last_seen"`
	Requests   int64     `json:"requests"`
}

// Registry is a mutex-guarded map of visitors keyed by IP.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*ClientRecord
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*ClientRecord),
		now:     time.Now,
	}
}

// Record upserts the visitor for ip. Loopback and unparsable addresses are
// ignored.
func (r *Registry) Record(ip, userAgent string) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() {
		return
	}
	key := parsed.String()
	kind, osInfo, browser := Describe(userAgent)
	now := r.now()

	r.mu.Lock()
	rec, ok := r.clients[key]
	if !ok {
		rec = &ClientRecord{IP: key}
		r.clients[key] = rec
	}
	rec.DeviceKind = kind
	rec.OS = osInfo
	rec.Browser = browser
	rec.LastSeenAt = now
	rec.LastSeen = now.Format("15:04:05")
	rec.Requests++
	count := len(r.clients)
	r.mu.Unlock()

	if !ok {
		metrics.SetVisitors(count)
	}
}

// Snapshot returns a copy of every record, most recently seen first.
func (r *Registry) Snapshot() []ClientRecord {
	r.mu.RLock()
	out := make([]ClientRecord, 0, len(r.clients))
	for _, rec := range r.clients {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].LastSeenAt.After(out[j].LastSeenAt)
		}
		return out[i].IP < out[j].IP
	})
	return out
}

// Len returns the number of tracked visitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// EvictIdle drops visitors not seen within ttl and returns how many went.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	removed := 0
	for ip, rec := range r.clients {
		if rec.LastSeenAt.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	count := len(r.clients)
	r.mu.Unlock()

	metrics.SetVisitors(count)
	return removed
}

// Describe classifies a User-Agent header into device kind, OS and browser.
func Describe(userAgent string) (kind, osInfo, browser string) {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceOther, "", ""
	}
	ua := useragent.New(userAgent)

	name, version := ua.Browser()
	browser = strings.TrimSpace(name + " " + version)
	info := ua.OSInfo()
	osInfo = strings.TrimSpace(info.Name + " " + info.Version)
	if osInfo == "" {
		osInfo = ua.OS()
	}

	switch {
	case ua.Bot():
		kind = DeviceBot
	case isTablet(ua, userAgent):
		kind = DeviceTablet
	case ua.Mobile():
		kind = DevicePhone
	case isDesktop(ua.Platform()):
		kind = DevicePC
	default:
		kind = DeviceOther
	}
	return kind, osInfo, browser
}

func isTablet(ua *useragent.UserAgent, raw string) bool {
	if ua.Platform() == "iPad" || strings.Contains(raw, "Tablet") {
		return true
	}
	// Android tablets omit the "Mobile" token
	return strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile")
}

func isDesktop(platform string) bool {
	switch {
	case strings.HasPrefix(platform, "Windows"),
		strings.HasPrefix(platform, "Macintosh"),
		strings.HasPrefix(platform, "X11"),
		strings.HasPrefix(platform, "Linux"):
		return true
	}
	return false
}
