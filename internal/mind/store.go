package mind

import (
	"log"
	"sync"

	"github.com/keshon/heartflow/internal/config"
	"github.com/keshon/heartflow/internal/storage"
)

// Store is the arena of live groups. Groups are created lazily on first
// message and hydrated from persistent storage when a record exists.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*Group
	cfg    config.EngineConfig
	db     *storage.Storage
}

func NewStore(cfg config.EngineConfig, db *storage.Storage) *Store {
	return &Store{
		groups: make(map[string]*Group),
		cfg:    cfg,
		db:     db,
	}
}

// Group returns the live state for groupID, loading or creating it.
func (s *Store) Group(groupID string) *Group {
	s.mu.RLock()
	g, ok := s.groups[groupID]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		return g
	}

	var rec GroupRecord
	if s.db != nil {
		if _, err := s.db.Get(groupKey(groupID), &rec); err != nil {
			// Corrupt record: start fresh rather than wedge the group.
			log.Printf("[ERR] mind: load group %s: %v", groupID, err)
			rec = GroupRecord{}
		}
	}
	g = NewGroup(groupID, s.cfg, rec)
	s.groups[groupID] = g
	return g
}

// Save writes the group's durable state through to storage. Takes the
// group's lock; never call it while already holding that lock.
func (s *Store) Save(g *Group) {
	if s.db == nil {
		return
	}
	g.mu.Lock()
	rec := g.persistedRecord()
	g.mu.Unlock()
	if err := s.db.Set(groupKey(g.ID), rec); err != nil {
		log.Printf("[ERR] mind: save group %s: %v", g.ID, err)
	}
}

// saveLocked persists while the caller already holds g.mu.
func (s *Store) saveLocked(g *Group) {
	if s.db == nil {
		return
	}
	if err := s.db.Set(groupKey(g.ID), g.persistedRecord()); err != nil {
		log.Printf("[ERR] mind: save group %s: %v", g.ID, err)
	}
}

// Reset wipes one group's engine state, live and persisted. The group is
// recreated fresh on its next message.
func (s *Store) Reset(groupID string) {
	s.mu.Lock()
	delete(s.groups, groupID)
	s.mu.Unlock()
	if s.db != nil {
		if err := s.db.Delete(groupKey(groupID)); err != nil {
			log.Printf("[ERR] mind: reset group %s: %v", groupID, err)
		}
	}
	log.Printf("[MIND] state reset for group %s", groupID)
}

// All returns the live groups, for the heartbeat registry and stats.
func (s *Store) All() []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out
}
