//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package lsmkv

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/btree"
)

const memtableBTreeDegree = 32

// memtableNode is the btree item: the latest mutation for one key
type memtableNode struct {
	key       []byte
	value     []byte
	tombstone bool
}

func (n *memtableNode) Less(than btree.Item) bool {
	return bytes.Compare(n.key, than.(*memtableNode).key) < 0
}

func (n *memtableNode) size() uint64 {
	return uint64(recordSize(n.key, n.value))
}

func (n *memtableNode) entry() Entry {
	e := Entry{Key: n.key, Value: n.value, Op: OpPut}
	if n.tombstone {
		e.Op = OpDelete
		e.Value = nil
	}
	return e
}

// Memtable holds the mutations that have not been flushed into a segment
// yet, at most one per key. It is safe for concurrent use.
type Memtable struct {
	sync.RWMutex
	tree      *btree.BTree
	size      uint64
	live      int
	createdAt time.Time
	metrics   *memtableMetrics
}

func newMemtable(metrics *Metrics) *Memtable {
	m := &Memtable{
		tree:      btree.New(memtableBTreeDegree),
		createdAt: time.Now(),
		metrics:   newMemtableMetrics(metrics),
	}

	m.metrics.size(m.size)
	return m
}

func (m *Memtable) put(key, value []byte) {
	start := time.Now()
	defer m.metrics.put(start.UnixNano())

	if value == nil {
		value = []byte{}
	}

	m.Lock()
	defer m.Unlock()

	m.insert(&memtableNode{
		key:   copyBytes(key),
		value: copyBytes(value),
	})
}

func (m *Memtable) setTombstone(key []byte) {
	start := time.Now()
	defer m.metrics.setTombstone(start.UnixNano())

	m.Lock()
	defer m.Unlock()

	m.insert(&memtableNode{
		key:       copyBytes(key),
		tombstone: true,
	})
}

// insert must be called with the write lock held
func (m *Memtable) insert(n *memtableNode) {
	if prev := m.tree.ReplaceOrInsert(n); prev != nil {
		m.size -= prev.(*memtableNode).size()
		if !prev.(*memtableNode).tombstone {
			m.live--
		}
	}
	m.size += n.size()
	if !n.tombstone {
		m.live++
	}
	m.metrics.size(m.size)
}

// get returns the latest entry for key. The second return value is false if
// the memtable has never seen the key; a tombstone is a hit with
// e.Tombstone() set.
func (m *Memtable) get(key []byte) (Entry, bool) {
	start := time.Now()
	defer m.metrics.get(start.UnixNano())

	m.RLock()
	defer m.RUnlock()

	item := m.tree.Get(&memtableNode{key: key})
	if item == nil {
		return Entry{}, false
	}

	return item.(*memtableNode).entry(), true
}

// Size is the estimated number of bytes the contents would occupy in a
// segment
func (m *Memtable) Size() uint64 {
	m.RLock()
	defer m.RUnlock()

	return m.size
}

// LiveCount is the number of keys whose latest mutation is a put
func (m *Memtable) LiveCount() int {
	m.RLock()
	defer m.RUnlock()

	return m.live
}

func (m *Memtable) Len() int {
	m.RLock()
	defer m.RUnlock()

	return m.tree.Len()
}

// drain returns a stable snapshot of all entries in ascending key order. The
// memtable is swapped out by the caller once the snapshot is durable.
func (m *Memtable) drain() []Entry {
	m.RLock()
	defer m.RUnlock()

	out := make([]Entry, 0, m.tree.Len())
	m.tree.Ascend(func(i btree.Item) bool {
		out = append(out, i.(*memtableNode).entry())
		return true
	})

	return out
}

// keys returns every key in ascending order together with whether its latest
// mutation is a delete
func (m *Memtable) keys() (keys [][]byte, tombstones []bool) {
	m.RLock()
	defer m.RUnlock()

	keys = make([][]byte, 0, m.tree.Len())
	tombstones = make([]bool, 0, m.tree.Len())
	m.tree.Ascend(func(i btree.Item) bool {
		n := i.(*memtableNode)
		keys = append(keys, n.key)
		tombstones = append(tombstones, n.tombstone)
		return true
	})

	return keys, tombstones
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
