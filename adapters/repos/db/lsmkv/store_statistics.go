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

// Statistics is a point-in-time view of the store
type Statistics struct {
	KeyCount        int
	SealedSegments  int
	DiskBytes       int64
	WALBytes        int64
	MemtableBytes   uint64
	MemtableEntries int
	Flushes         int64
	Compactions     int64
}

func (s Statistics) AsMap() map[string]int64 {
	return map[string]int64{
		"key_count":        int64(s.KeyCount),
		"sealed_segments":  int64(s.SealedSegments),
		"disk_bytes":       s.DiskBytes,
		"wal_bytes":        s.WALBytes,
		"memtable_bytes":   int64(s.MemtableBytes),
		"memtable_entries": int64(s.MemtableEntries),
		"flushes":          s.Flushes,
		"compactions":      s.Compactions,
	}
}

func (s *Store) Statistics() Statistics {
	s.stateLock.RLock()
	stats := Statistics{
		KeyCount:        s.keyCount(),
		SealedSegments:  s.segmentGroup.len(),
		DiskBytes:       s.segmentGroup.totalSize(),
		MemtableBytes:   s.active.Size(),
		MemtableEntries: s.active.Len(),
	}
	s.stateLock.RUnlock()

	stats.WALBytes = s.commitlog.Size()
	stats.Flushes = s.flushes.Load()
	stats.Compactions = s.compactions.Load()

	return stats
}
