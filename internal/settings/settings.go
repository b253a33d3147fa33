// Package settings holds the system-wide analysis policy: prompt mode,
// demo mode, bypass allowance, and model parameters. The policy is a
// process-wide cached value with an explicit load/refresh/invalidate
// lifecycle, refreshed on a time-to-live basis.
package settings

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// Mode is the input-acquisition policy for analysis requests.
type Mode string

const (
	// ModeConstrained accepts template-bound input only.
	ModeConstrained Mode = "constrained"
	// ModeGuided accepts free text with full security checks.
	ModeGuided Mode = "guided"
	// ModeOpen accepts free text; checks may be relaxed via bypass.
	ModeOpen Mode = "open"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeConstrained, ModeGuided, ModeOpen:
		return true
	}
	return false
}

// Policy is the singleton system policy consumed at the start of every
// orchestrator invocation.
type Policy struct {
	Mode          Mode   `yaml:"mode"`
	DemoMode      bool   `yaml:"demo_mode"`
	BypassAllowed bool   `yaml:"bypass_allowed"`
	ModelID       string `yaml:"model_id"`
	MaxTokens     int    `yaml:"max_tokens"`
}

// DefaultPolicy matches a fresh install: guided free text, demo responses,
// no bypass.
func DefaultPolicy() Policy {
	return Policy{
		Mode:          ModeGuided,
		DemoMode:      true,
		BypassAllowed: false,
		ModelID:       "anthropic.claude-3-sonnet-20240229-v1:0",
		MaxTokens:     4096,
	}
}

// DefaultTTL bounds how stale a cached policy may get after an
// administrative write before a refresh is attempted.
const DefaultTTL = 5 * time.Minute

// HardenedEnv marks the deployment as production-hardened. When set, the
// classifier bypass is refused regardless of policy state.
const HardenedEnv = "INSIGHTGATE_HARDENED"

// Cache serves the policy to concurrent requests. Reads never block on a
// refresh in flight: while one goroutine reloads, everyone else gets the
// stale-but-recent value.
type Cache struct {
	path     string
	ttl      time.Duration
	hardened bool

	mu       sync.RWMutex
	policy   Policy
	loadedAt time.Time

	group singleflight.Group
}

// NewCache creates a policy cache over a YAML settings file. A missing file
// yields the default policy. The production-hardened flag is read from the
// environment once, at construction.
func NewCache(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		path:     path,
		ttl:      ttl,
		hardened: os.Getenv(HardenedEnv) != "",
	}
}

// Hardened reports whether the deployment is production-hardened.
func (c *Cache) Hardened() bool { return c.hardened }

// Get returns the current policy, refreshing from disk when the cached
// value has aged past the TTL. A refresh failure falls back to the last
// good value when one exists.
func (c *Cache) Get() (Policy, error) {
	c.mu.RLock()
	policy := c.policy
	loadedAt := c.loadedAt
	c.mu.RUnlock()

	if !loadedAt.IsZero() && time.Since(loadedAt) < c.ttl {
		return policy, nil
	}

	if loadedAt.IsZero() {
		// First load has nothing to fall back to, so wait for it.
		v, err, _ := c.group.Do("load", func() (any, error) {
			return c.reload()
		})
		if err != nil {
			return Policy{}, err
		}
		return v.(Policy), nil
	}

	// Stale value available: kick off a deduplicated refresh but serve the
	// stale policy immediately rather than blocking the request.
	go func() {
		c.group.Do("load", func() (any, error) {
			return c.reload()
		})
	}()
	return policy, nil
}

func (c *Cache) reload() (Policy, error) {
	policy, err := Load(c.path)
	if err != nil {
		return Policy{}, err
	}
	c.mu.Lock()
	c.policy = policy
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return policy, nil
}

// Invalidate drops the cached value so the next Get reloads from disk.
// Call after any administrative write.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// Load reads a policy file. Absent file means defaults; present fields
// override them.
func Load(path string) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return Policy{}, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse settings: %w", err)
	}
	if !policy.Mode.Valid() {
		return Policy{}, fmt.Errorf("invalid prompt mode %q", policy.Mode)
	}
	if policy.MaxTokens <= 0 {
		policy.MaxTokens = DefaultPolicy().MaxTokens
	}
	return policy, nil
}

// Save writes the policy file. Used by administrative tooling; callers must
// Invalidate the cache afterwards.
func Save(path string, policy Policy) error {
	data, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
