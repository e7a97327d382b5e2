package store

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/icodex/icodex/pkg/dex"
)

// FillLog is an append-only journal of committed fills in Pebble, kept
// separately from the book file. The book is the system of record; the
// journal only serves history queries and survives restarts on its own.
type FillLog struct {
	db *pebble.DB
}

func OpenFillLog(dir string) (*FillLog, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &FillLog{db: db}, nil
}

func (l *FillLog) Close() error { return l.db.Close() }

// Record appends one fill.
func (l *FillLog) Record(f dex.Fill) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fill: %w", err)
	}
	key := fillKey(f.IcoID, f.Timestamp, f.ID)
	if err := l.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("append fill: %w", err)
	}
	return nil
}

// Recent returns up to limit fills for an ICO, newest first.
func (l *FillLog) Recent(icoID string, limit int) ([]dex.Fill, error) {
	if limit <= 0 {
		return []dex.Fill{}, nil
	}
	prefix := fillPrefix(icoID)
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	fills := make([]dex.Fill, 0, limit)
	for iter.Last(); iter.Valid() && len(fills) < limit; iter.Prev() {
		var f dex.Fill
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			continue // skip undecodable entries
		}
		fills = append(fills, f)
	}
	return fills, nil
}

var _ dex.FillRecorder = (*FillLog)(nil)
