package pipeline

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/internal/metrics"
)

type createLabelFunc func(ctx context.Context, name string) (*dto.Label, error)

// LabelCache maps label names to provider ids for the duration of one run.
// User labels are matched case-insensitively, like the provider does. System
// labels only match their exact name, so an answer like "Spam" never lands a
// message in SPAM. Concurrent misses for one name share a single create call.
type LabelCache struct {
	mu     sync.Mutex
	byName map[string]string
	system map[string]string
	group  singleflight.Group
	create createLabelFunc
}

func NewLabelCache(existing []dto.Label, create createLabelFunc) *LabelCache {
	c := &LabelCache{
		byName: make(map[string]string, len(existing)),
		system: make(map[string]string),
		create: create,
	}
	for _, l := range existing {
		if l.IsSystem() {
			c.system[l.Name] = l.ID
			continue
		}
		c.byName[labelKey(l.Name)] = l.ID
	}
	return c
}

func labelKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *LabelCache) Get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.system[strings.TrimSpace(name)]; ok {
		return id, true
	}
	id, ok := c.byName[labelKey(name)]
	return id, ok
}

// put caches a created or looked up label under the requested name and its
// provider name.
func (c *LabelCache) put(name string, label dto.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if label.IsSystem() {
		c.system[label.Name] = label.ID
		return
	}
	c.byName[labelKey(name)] = label.ID
	if label.Name != "" {
		c.byName[labelKey(label.Name)] = label.ID
	}
}

// Resolve returns the id for name, creating the label on the first miss.
func (c *LabelCache) Resolve(ctx context.Context, name string) (string, error) {
	if id, ok := c.Get(name); ok {
		return id, nil
	}

	key := labelKey(name)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if id, ok := c.Get(name); ok {
			return id, nil
		}
		label, err := c.create(ctx, strings.TrimSpace(name))
		if err != nil {
			return "", err
		}
		metrics.RecordLabelCreated()
		c.put(name, *label)
		return label.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
