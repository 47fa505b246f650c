package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	applogger "RiskWatch/pkg/logger"
)

// RulesKey is the KV key holding the flat rule list.
const RulesKey = "watch_rules"

// RuleStore owns the watch rules. The in-memory list is authoritative once loaded;
// every mutation is written through to the KV store. Until the stored document has been
// read once, mutations stay in memory and are merged into it on the next successful load.
type RuleStore struct {
	mu     sync.Mutex
	doc    jsonDoc[[]models.WatchRule]
	rules  []models.WatchRule
	loaded bool
	dirty  bool
	now    func() time.Time
	newID  func() string
}

func NewRuleStore(kv domrepo.KVStore, l *applogger.Logger) *RuleStore {
	return &RuleStore{
		doc:   jsonDoc[[]models.WatchRule]{kv: kv, key: RulesKey, l: l},
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// ensureLoaded must be called with mu held. It reports whether the stored document has been read.
func (s *RuleStore) ensureLoaded(ctx context.Context) bool {
	if s.loaded {
		return true
	}
	stored, ok := s.doc.load(ctx)
	if !ok {
		return false
	}
	s.rules = mergeRules(stored, s.rules)
	s.loaded = true
	if s.dirty {
		s.dirty = false
		s.doc.save(ctx, s.rules)
	}
	return true
}

// Load returns a copy of the current rules. Unreadable storage yields the in-memory set, possibly empty.
func (s *RuleStore) Load(ctx context.Context) []models.WatchRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	out := make([]models.WatchRule, len(s.rules))
	for i := range s.rules {
		out[i] = cloneRule(s.rules[i])
	}
	return out
}

// Get returns the rule with id.
func (s *RuleStore) Get(ctx context.Context, id string) (models.WatchRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	if i := s.indexOf(id); i >= 0 {
		return cloneRule(s.rules[i]), true
	}
	return models.WatchRule{}, false
}

// Add assigns an id and creation time, persists, and returns the stored rule.
func (s *RuleStore) Add(ctx context.Context, r models.WatchRule) models.WatchRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	r = cloneRule(r)
	r.ID = s.newID()
	r.CreatedAt = s.now().UTC()
	r.LastTriggeredAt = nil
	s.rules = append(s.rules, r)
	s.persist(ctx)
	return cloneRule(r)
}

// Update merges p into the rule. Unknown ids are a no-op and report false.
func (s *RuleStore) Update(ctx context.Context, id string, p models.RulePatch) (models.WatchRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOf(id)
	if i < 0 {
		return models.WatchRule{}, false
	}
	p.Apply(&s.rules[i])
	s.persist(ctx)
	return cloneRule(s.rules[i]), true
}

// Delete removes the rule. Unknown ids are a no-op and report false.
func (s *RuleStore) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	s.persist(ctx)
	return true
}

// MarkTriggered stamps lastTriggeredAt on every listed rule and persists once.
// It returns the ids that still exist; rules deleted meanwhile are skipped.
func (s *RuleStore) MarkTriggered(ctx context.Context, at time.Time, ids ...string) []string {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	var found []string
	for _, id := range ids {
		if i := s.indexOf(id); i >= 0 {
			t := at
			s.rules[i].LastTriggeredAt = &t
			found = append(found, id)
		}
	}
	if len(found) > 0 {
		s.persist(ctx)
	}
	return found
}

// persist writes the list through. An unread document is never overwritten: the load is retried
// and the write happens as part of the merge, or is deferred to the next successful load.
func (s *RuleStore) persist(ctx context.Context) {
	if !s.loaded {
		s.dirty = true
		s.ensureLoaded(ctx)
		return
	}
	s.doc.save(ctx, s.rules)
}

// mergeRules overlays the in-memory rules on the stored ones by id. Stored order comes first.
func mergeRules(stored, mem []models.WatchRule) []models.WatchRule {
	if len(mem) == 0 {
		return stored
	}
	out := make([]models.WatchRule, 0, len(stored)+len(mem))
	pos := make(map[string]int, len(stored))
	for _, r := range stored {
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	for _, r := range mem {
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *RuleStore) indexOf(id string) int {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneRule(r models.WatchRule) models.WatchRule {
	r.Conditions = append(make([]models.Condition, 0, len(r.Conditions)), r.Conditions...)
	r.Scope.Symbols = append([]string(nil), r.Scope.Symbols...)
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		r.LastTriggeredAt = &t
	}
	return r
}
