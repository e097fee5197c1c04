package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// defaultDBBatchSize is used when callers pass a non-positive batch size.
	defaultDBBatchSize = 1000

	// inClauseChunk bounds the number of bound parameters in IN (...) lists.
	inClauseChunk = 500
)

func batchSize(n int) int {
	if n <= 0 {
		return defaultDBBatchSize
	}
	return n
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []uint, size int) [][]uint {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]uint, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// lockForUpdate adds FOR UPDATE on MySQL.
func lockForUpdate(db *gorm.DB, isMySQL, forUpdate bool) *gorm.DB {
	if isMySQL && forUpdate {
		return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return db
}
