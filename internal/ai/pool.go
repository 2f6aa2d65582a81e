package ai

import (
	"sync"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/sirupsen/logrus"
)

const DefaultKeyCooldown = time.Hour

// CredentialPool rotates through API keys. A key that hit its quota is
// skipped for the cooldown; once every key is cooling down the pool forgets
// the failures and starts over from the first key.
type CredentialPool struct {
	mu       sync.Mutex
	keys     []string
	current  int
	failed   map[string]time.Time
	cooldown time.Duration
	clock    clock.Clock
}

func NewCredentialPool(keys []string, cooldown time.Duration, clk clock.Clock) *CredentialPool {
	if cooldown <= 0 {
		cooldown = DefaultKeyCooldown
	}

	seen := make(map[string]bool, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, key)
	}

	return &CredentialPool{
		keys:     unique,
		failed:   make(map[string]time.Time),
		cooldown: cooldown,
		clock:    clk,
	}
}

func (p *CredentialPool) Len() int {
	return len(p.keys)
}

// Current returns the key to use for the next call.
func (p *CredentialPool) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", ErrNoCredentials
	}
	if !p.usable(p.keys[p.current]) {
		p.advance()
	}

	return p.keys[p.current], nil
}

// MarkFailed puts key on cooldown and moves to the next usable key.
func (p *CredentialPool) MarkFailed(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed[key] = p.clock.Now()
	if len(p.keys) > 0 && p.keys[p.current] == key {
		p.advance()
	}
	logrus.Warnf("api key %d of %d rate limited, rotating", p.indexOf(key)+1, len(p.keys))
}

func (p *CredentialPool) advance() {
	for i := 1; i <= len(p.keys); i++ {
		next := (p.current + i) % len(p.keys)
		if p.usable(p.keys[next]) {
			p.current = next
			return
		}
	}

	logrus.Warn("every api key is rate limited, resetting the pool")
	p.failed = make(map[string]time.Time)
	p.current = 0
}

func (p *CredentialPool) usable(key string) bool {
	at, ok := p.failed[key]
	if !ok {
		return true
	}
	if p.clock.Now().Sub(at) >= p.cooldown {
		delete(p.failed, key)
		return true
	}
	return false
}

func (p *CredentialPool) indexOf(key string) int {
	for i, k := range p.keys {
		if k == key {
			return i
		}
	}
	return -1
}
