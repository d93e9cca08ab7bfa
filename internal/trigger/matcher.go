// Package trigger matches chat text against stored patterns.
package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/model"
)

const (
	// cacheTTL is how long an idle community's trigger set stays warm. An
	// entry accessed within the window is served as is; mutations refresh it
	// through Invalidate.
	cacheTTL = 30 * time.Minute
	// maxCommunities caps the number of communities held in memory at once.
	maxCommunities = 100
	// maxRegexes caps the shared compiled-pattern cache.
	maxRegexes = 1000
)

// Lister loads the enabled triggers of a community, grouped by owner person.
type Lister interface {
	ListEnabledByCommunity(ctx context.Context, communityID int64) (map[int64][]model.Trigger, error)
}

type compiled struct {
	trigger model.Trigger
	pattern string
}

type communityEntry struct {
	byPerson   map[int64][]compiled
	lastAccess time.Time
}

// Matcher evaluates incoming text against a community's enabled triggers.
// Trigger sets are cached per community with an idle TTL and LRU eviction;
// compiled regexes are shared in a bounded LRU. Invalid patterns are logged
// and skipped so one bad trigger cannot break matching for the rest.
type Matcher struct {
	lister  Lister
	logger  *zap.Logger
	regexes *regexCache
	now     func() time.Time

	mu          sync.Mutex
	communities map[int64]*communityEntry
}

// NewMatcher constructs a matcher around the given trigger source.
func NewMatcher(lister Lister, logger *zap.Logger) *Matcher {
	return &Matcher{
		lister:      lister,
		logger:      logger,
		regexes:     newRegexCache(maxRegexes),
		now:         time.Now,
		communities: make(map[int64]*communityEntry),
	}
}

// Match returns the first enabled trigger of the person whose pattern matches
// the text. Triggers are evaluated in creation order; matching is always
// case-insensitive. The boolean reports whether anything matched.
func (m *Matcher) Match(ctx context.Context, communityID, personID int64, text string) (*model.Trigger, bool, error) {
	entry, err := m.entry(ctx, communityID)
	if err != nil {
		return nil, false, err
	}

	for _, c := range entry.byPerson[personID] {
		re, err := m.regexes.compile(c.pattern)
		if err != nil {
			// Already logged at load time; compile can still fail here after
			// an LRU eviction, so guard again.
			continue
		}
		if re.MatchString(text) {
			t := c.trigger
			return &t, true, nil
		}
	}
	return nil, false, nil
}

// Invalidate drops the community's cached trigger set. Call after any
// trigger mutation so the next message sees fresh state.
func (m *Matcher) Invalidate(communityID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.communities, communityID)
}

// CachedCommunities reports how many communities are currently warm.
func (m *Matcher) CachedCommunities() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.communities)
}

// CachedRegexes reports the compiled-pattern cache size.
func (m *Matcher) CachedRegexes() int { return m.regexes.len() }

func (m *Matcher) entry(ctx context.Context, communityID int64) (*communityEntry, error) {
	m.mu.Lock()
	if e, ok := m.communities[communityID]; ok && m.now().Sub(e.lastAccess) < cacheTTL {
		e.lastAccess = m.now()
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	grouped, err := m.lister.ListEnabledByCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}

	e := &communityEntry{
		byPerson:   make(map[int64][]compiled, len(grouped)),
		lastAccess: m.now(),
	}
	for personID, triggers := range grouped {
		for _, t := range triggers {
			if _, err := m.regexes.compile(t.Pattern); err != nil {
				m.logger.Warn("skipping trigger with invalid pattern",
					zap.String("trigger_id", t.ID.String()),
					zap.Int64("community_id", communityID),
					zap.Error(err))
				continue
			}
			e.byPerson[personID] = append(e.byPerson[personID], compiled{trigger: t, pattern: t.Pattern})
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.communities[communityID] = e
	m.evictLocked()
	return e, nil
}

// evictLocked drops the least recently used community when over the ceiling.
func (m *Matcher) evictLocked() {
	for len(m.communities) > maxCommunities {
		var oldestID int64
		var oldestAt time.Time
		first := true
		for id, e := range m.communities {
			if first || e.lastAccess.Before(oldestAt) {
				oldestID, oldestAt = id, e.lastAccess
				first = false
			}
		}
		delete(m.communities, oldestID)
	}
}
