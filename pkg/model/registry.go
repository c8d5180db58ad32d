// Tag registries that resolve tagged documents to configuration types
// One registry per signal kind, pre-populated with the built-in configurations
package model

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownTag is returned when a document names a type that was never registered.
var ErrUnknownTag = errors.New("unknown config type")

// Registry maps configuration tags to factories producing empty configurations.
type Registry[C Config] struct {
	kind string

	mu        sync.RWMutex
	factories map[string]func() C
}

// NewRegistry creates an empty registry. kind names the signal in error messages.
func NewRegistry[C Config](kind string) *Registry[C] {
	return &Registry[C]{kind: kind, factories: make(map[string]func() C)}
}

// Built-in registries, one per signal kind.
var (
	BwConfigs             = NewRegistry[BwConfig]("bandwidth")
	DelayConfigs          = NewRegistry[DelayConfig]("delay")
	LossConfigs           = NewRegistry[LossConfig]("loss")
	DuplicateConfigs      = NewRegistry[DuplicateConfig]("duplicate")
	DelayPerPacketConfigs = NewRegistry[DelayPerPacketConfig]("delay-per-packet")
)

func init() {
	BwConfigs.mustRegister(func() BwConfig { return NewStaticBwConfig() })
	BwConfigs.mustRegister(func() BwConfig { return NewNormalizedBwConfig() })
	BwConfigs.mustRegister(func() BwConfig { return NewLogNormalizedBwConfig() })
	BwConfigs.mustRegister(func() BwConfig { return NewSawtoothBwConfig() })
	BwConfigs.mustRegister(func() BwConfig { return NewTraceBwConfig() })
	BwConfigs.mustRegister(func() BwConfig { return NewRepeatedBwPatternConfig() })

	DelayConfigs.mustRegister(func() DelayConfig { return NewStaticDelayConfig() })
	DelayConfigs.mustRegister(func() DelayConfig { return NewNormalizedDelayConfig() })
	DelayConfigs.mustRegister(func() DelayConfig { return NewRepeatedDelayPatternConfig() })

	LossConfigs.mustRegister(func() LossConfig { return NewStaticLossConfig() })
	LossConfigs.mustRegister(func() LossConfig { return NewRepeatedLossPatternConfig() })

	DuplicateConfigs.mustRegister(func() DuplicateConfig { return NewStaticDuplicateConfig() })
	DuplicateConfigs.mustRegister(func() DuplicateConfig { return NewRepeatedDuplicatePatternConfig() })

	DelayPerPacketConfigs.mustRegister(func() DelayPerPacketConfig { return NewStaticDelayPerPacketConfig() })
	DelayPerPacketConfigs.mustRegister(func() DelayPerPacketConfig { return NewNormalizedDelayPerPacketConfig() })
	DelayPerPacketConfigs.mustRegister(func() DelayPerPacketConfig { return NewLogNormalizedDelayPerPacketConfig() })
	DelayPerPacketConfigs.mustRegister(func() DelayPerPacketConfig { return NewRepeatedDelayPerPacketPatternConfig() })
}

// Kind returns the signal kind the registry resolves.
func (r *Registry[C]) Kind() string {
	return r.kind
}

// Register adds a configuration type under the tag reported by factory().Tag().
func (r *Registry[C]) Register(factory func() C) error {
	tag := factory().Tag()
	if tag == "" {
		return fmt.Errorf("register %s config: empty tag", r.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("register %s config: tag %q already registered", r.kind, tag)
	}
	r.factories[tag] = factory
	return nil
}

func (r *Registry[C]) mustRegister(factory func() C) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// New returns an empty configuration for tag.
func (r *Registry[C]) New(tag string) (C, error) {
	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		var zero C
		return zero, fmt.Errorf("%w %q for %s, supported: %v", ErrUnknownTag, tag, r.kind, r.Tags())
	}
	return factory(), nil
}

// Tags lists the registered tags in sorted order.
func (r *Registry[C]) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}
