package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
)

// NewRandomKey generates secret material suitable for a new generation.
func NewRandomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret material: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Rotator appends a fresh generation to both secret families on a cron
// schedule. One Rotator serves all HydraService instances; schedules are
// registered and removed as services come and go.
type Rotator struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	log     logr.Logger
}

// NewRotator returns a stopped Rotator; call Start to begin firing.
func NewRotator(log logr.Logger) *Rotator {
	return &Rotator{
		cron:    cron.New(),
		entries: map[string]cron.EntryID{},
		log:     log.WithName("secret-rotator"),
	}
}

// Start begins evaluating registered schedules. It returns immediately and
// keeps firing until ctx is done.
func (r *Rotator) Start(ctx context.Context) error {
	r.cron.Start()
	go func() {
		<-ctx.Done()
		r.cron.Stop()
	}()
	return nil
}

// Schedule registers (or replaces) the rotation schedule for the named
// service. Each firing appends one fresh generation per family through m.
func (r *Rotator) Schedule(name, schedule string, m *Manager) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
		delete(r.entries, name)
	}

	id, err := r.cron.AddFunc(schedule, func() {
		r.rotate(name, m)
	})
	if err != nil {
		return fmt.Errorf("invalid rotation schedule %q: %w", schedule, err)
	}
	r.entries[name] = id
	return nil
}

// Unschedule removes the rotation schedule for the named service, if any.
func (r *Rotator) Unschedule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[name]; ok {
		r.cron.Remove(id)
		delete(r.entries, name)
	}
}

func (r *Rotator) rotate(name string, m *Manager) {
	ctx := context.Background()
	for _, family := range Families {
		key, err := NewRandomKey()
		if err != nil {
			r.log.Error(err, "secret rotation failed", "service", name, "family", family)
			return
		}
		if err := m.AddKey(ctx, family, key); err != nil {
			r.log.Error(err, "secret rotation failed", "service", name, "family", family)
			return
		}
	}
	r.log.Info("rotated secret families", "service", name)
}
