package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/strata-db/strata/pkg/metrics"
	"github.com/strata-db/strata/pkg/serialize"
	"github.com/strata-db/strata/pkg/storage"
	"github.com/strata-db/strata/pkg/value"
)

var metaBucket = []byte("meta")

const metaVersionKey = "version"
const metaVersionKindKey = "version_kind"
const metaSnapshotOffsetKey = "snapshot_offset"

// snapshotFileName is deterministic so the newest snapshot is always
// findable by listing, not by a side-channel pointer file.
func snapshotFileName(version value.Version) string {
	return fmt.Sprintf("snapshot-%020d.boltdb", version.Uint64())
}

// WriteSnapshot serializes every live entry in store into a single atomic
// bbolt file under dir, one top-level bucket per branch, keyed by the
// storage chain key. It is backed by go.etcd.io/bbolt — the same
// single-file embedded format used elsewhere in the stack — rather than a
// hand-rolled snapshot format.
func WriteSnapshot(dir string, store *storage.Store, atVersion value.Version, segmentOffset uint64) (string, error) {
	timer := metrics.NewTimer()

	if err := ensureDir(dir); err != nil {
		return "", err
	}
	finalPath := filepath.Join(dir, snapshotFileName(atVersion))
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := bbolt.Open(tmpPath, 0o644, nil)
	if err != nil {
		return "", fmt.Errorf("wal: open snapshot tmp file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(metaVersionKey), uint64Bytes(atVersion.Uint64())); err != nil {
			return err
		}
		if err := meta.Put([]byte(metaVersionKindKey), []byte{byte(atVersion.Kind())}); err != nil {
			return err
		}
		if err := meta.Put([]byte(metaSnapshotOffsetKey), uint64Bytes(segmentOffset)); err != nil {
			return err
		}

		buckets := make(map[string]*bbolt.Bucket)
		var outerErr error
		store.ForEachLatest(func(branch string, key storage.Key, v value.Versioned) {
			if outerErr != nil {
				return
			}
			b, ok := buckets[branch]
			if !ok {
				b, outerErr = tx.CreateBucketIfNotExists([]byte("branch:" + branch))
				if outerErr != nil {
					return
				}
				buckets[branch] = b
			}
			entry := encodeSnapshotEntry(key, v)
			chainKey := append([]byte{byte(key.Tag)}, []byte(key.UserKey)...)
			outerErr = b.Put(chainKey, entry)
		})
		return outerErr
	})
	if err != nil {
		db.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("wal: write snapshot: %w", err)
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("wal: close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("wal: rename snapshot into place: %w", err)
	}

	metrics.SnapshotsTotal.Inc()
	timer.ObserveDuration(metrics.SnapshotDuration)
	return finalPath, nil
}

// LoadLatestSnapshot opens the newest snapshot file in dir, if any, and
// loads its entries into store. It returns the snapshot's version and the
// WAL segment offset recovery should resume from. ok is false if no
// snapshot exists yet (fresh database).
//
// Snapshot corruption is fail-fast: any error here aborts the open entirely
// rather than falling back to full WAL replay.
func LoadLatestSnapshot(dir string, store *storage.Store) (ver value.Version, segmentOffset uint64, ok bool, err error) {
	entries, statErr := os.ReadDir(dir)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return value.Version{}, 0, false, nil
		}
		return value.Version{}, 0, false, fmt.Errorf("wal: list snapshots: %w", statErr)
	}

	var newest string
	var newestN uint64
	found := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var n uint64
		if _, scanErr := fmt.Sscanf(e.Name(), "snapshot-%020d.boltdb", &n); scanErr == nil {
			if !found || n > newestN {
				newest = e.Name()
				newestN = n
				found = true
			}
		}
	}
	if !found {
		return value.Version{}, 0, false, nil
	}

	path := filepath.Join(dir, newest)
	db, openErr := bbolt.Open(path, 0o644, &bbolt.Options{ReadOnly: true})
	if openErr != nil {
		return value.Version{}, 0, false, fmt.Errorf("wal: open snapshot %s: %w", newest, openErr)
	}
	defer db.Close()

	readErr := db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return fmt.Errorf("wal: snapshot missing meta bucket")
		}
		vBytes := meta.Get([]byte(metaVersionKey))
		kindByte := meta.Get([]byte(metaVersionKindKey))
		offBytes := meta.Get([]byte(metaSnapshotOffsetKey))
		if vBytes == nil || kindByte == nil || offBytes == nil {
			return fmt.Errorf("wal: snapshot meta incomplete")
		}
		ver = versionFromKindAndN(value.VersionKind(kindByte[0]), bytesUint64(vBytes))
		segmentOffset = bytesUint64(offBytes)

		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			if !hasPrefix(name, "branch:") {
				return nil
			}
			branch := string(name[len("branch:"):])
			return b.ForEach(func(k, v []byte) error {
				key, versioned, decodeErr := decodeSnapshotEntry(branch, k, v)
				if decodeErr != nil {
					return decodeErr
				}
				store.LoadSnapshotEntry(key, versioned)
				return nil
			})
		})
	})
	if readErr != nil {
		return value.Version{}, 0, false, fmt.Errorf("wal: decode snapshot %s: %w", newest, readErr)
	}

	return ver, segmentOffset, true, nil
}

func hasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}

func encodeSnapshotEntry(key storage.Key, v value.Versioned) []byte {
	var out []byte
	out = append(out, byte(v.Version.Kind()))
	out = append(out, uint64Bytes(v.Version.Uint64())...)
	out = append(out, uint64Bytes(uint64(v.Timestamp))...)
	if v.Deleted {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, serialize.Encode(v.Value)...)
	return out
}

func decodeSnapshotEntry(branch string, chainKeyBytes, data []byte) (storage.Key, value.Versioned, error) {
	if len(chainKeyBytes) < 1 {
		return storage.Key{}, value.Versioned{}, fmt.Errorf("wal: empty chain key in snapshot")
	}
	tag := storage.TypeTag(chainKeyBytes[0])
	userKey := string(chainKeyBytes[1:])

	if len(data) < 1+8+8+1 {
		return storage.Key{}, value.Versioned{}, fmt.Errorf("wal: truncated snapshot entry")
	}
	kind := value.VersionKind(data[0])
	n := bytesUint64(data[1:9])
	ts := int64(bytesUint64(data[9:17]))
	deleted := data[17] != 0
	val, err := serialize.Decode(data[18:])
	if err != nil {
		return storage.Key{}, value.Versioned{}, fmt.Errorf("wal: decode snapshot value: %w", err)
	}

	return storage.Key{Branch: branch, Tag: tag, UserKey: userKey},
		value.Versioned{Value: val, Version: versionFromKindAndN(kind, n), Timestamp: ts, Deleted: deleted},
		nil
}

func versionFromKindAndN(kind value.VersionKind, n uint64) value.Version {
	switch kind {
	case value.VersionSequence:
		return value.Sequence(n)
	case value.VersionCounter:
		return value.Counter(n)
	default:
		return value.Txn(n)
	}
}

func uint64Bytes(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func bytesUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
