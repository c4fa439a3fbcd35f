package mr

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spud93/rma/internal/rmaerr"
)

// tableShards has the same value as internal/constants.DefaultMRTableShards;
// it is a separate local literal, not derived from that constant.
const tableShards = 16

// Table is a sharded MR lookup keyed by MR key, following the teacher's
// sharded-lock pattern but hashed with xxhash instead of a simple modulus,
// since MR keys are caller-chosen and may not distribute evenly under mod.
type Table struct {
	shards [tableShards]tableShard
}

type tableShard struct {
	mu  sync.RWMutex
	mrs map[uint64]*MR
}

// NewTable constructs an empty MR table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i].mrs = make(map[uint64]*MR)
	}
	return t
}

func (t *Table) shardFor(key uint64) *tableShard {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(key >> (8 * i))
	}
	h := xxhash.Sum64(buf[:])
	return &t.shards[h%uint64(tableShards)]
}

// Register inserts mr into the table, replacing any existing entry with the
// same key.
func (t *Table) Register(m *MR) {
	s := t.shardFor(m.Key)
	s.mu.Lock()
	s.mrs[m.Key] = m
	s.mu.Unlock()
}

// Deregister removes the MR with the given key, if present.
func (t *Table) Deregister(key uint64) {
	s := t.shardFor(key)
	s.mu.Lock()
	delete(s.mrs, key)
	s.mu.Unlock()
}

// Lookup finds the MR registered under key.
func (t *Table) Lookup(key uint64) (*MR, error) {
	s := t.shardFor(key)
	s.mu.RLock()
	m, ok := s.mrs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, rmaerr.New("mr.lookup", rmaerr.CodeInval, "unknown MR key")
	}
	return m, nil
}
