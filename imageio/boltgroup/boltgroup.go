// Package boltgroup is an imageio backend for the container file format
// spec.md 6 calls for: groups (bbolt buckets), chunked datasets
// (sub-buckets keyed by chunk index), and metadata (shape, node spacing)
// alongside the voxel data. Grounded on
// TrustTheVote-Project-BallotStudio/cmd/ballotstudio/imagearchive.go's
// bbolt usage (Open, Update, CreateBucketIfNotExists, Bucket, Put/Get) and
// its cbor-encoded metadata record, generalized from a dedup-hash store to
// a chunked voxel dataset store.
package boltgroup

import (
	"encoding/binary"
	"math"

	cbor "github.com/brianolson/cbor_go"
	"go.etcd.io/bbolt"

	"github.com/notargets/pfire/errs"
	"github.com/notargets/pfire/imageio"
)

func init() {
	imageio.Register(imageio.Factory{
		Name:       "boltgroup",
		Extensions: []string{"pfiredb"},
		NewLoader:  func() imageio.Loader { return loadDefaultGroup },
		NewWriter:  func() imageio.Writer { return saveDefaultGroup },
	})
}

// ChunkSize bounds the number of float64 values stored per sub-bucket
// entry, spec.md 6's "parallel writes, chunked datasets" expressed as a
// fixed chunk length.
const ChunkSize = 1 << 16

// Meta is the per-dataset metadata cbor-encoded alongside the chunked
// voxel data: shape and, for a map dataset, the node spacing.
type Meta struct {
	Shape   [3]int `cbor:"shape"`
	NDim    int    `cbor:"ndim"`
	Spacing [3]int `cbor:"spacing"`
}

// Open opens (creating if absent) the container file at path.
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrIO, "boltgroup: open %s: %v", path, err)
	}
	return db, nil
}

// WriteGroup writes one named group (e.g. "registered" or "map") into db:
// a bucket holding a "meta" key (cbor-encoded Meta) and a "chunks"
// sub-bucket of chunk-index -> raw float64 data.
func WriteGroup(db *bbolt.DB, group string, meta Meta, data []float64) error {
	return db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(group))
		if err != nil {
			return err
		}
		metaBytes, err := cbor.Dumps(meta)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte("meta"), metaBytes); err != nil {
			return err
		}
		chunks, err := bucket.CreateBucketIfNotExists([]byte("chunks"))
		if err != nil {
			return err
		}
		for i := 0; i < len(data); i += ChunkSize {
			end := i + ChunkSize
			if end > len(data) {
				end = len(data)
			}
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], uint64(i/ChunkSize))
			if err := chunks.Put(key[:], encodeChunk(data[i:end])); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadGroup reads group's metadata and reassembled voxel data back out of
// db.
func ReadGroup(db *bbolt.DB, group string) (Meta, []float64, error) {
	var meta Meta
	var data []float64
	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(group))
		if bucket == nil {
			return errs.Wrapf(errs.ErrIO, "boltgroup: group %q not found", group)
		}
		metaBytes := bucket.Get([]byte("meta"))
		if metaBytes == nil {
			return errs.Wrapf(errs.ErrIO, "boltgroup: group %q has no metadata", group)
		}
		if err := cbor.Loads(metaBytes, &meta); err != nil {
			return err
		}
		chunks := bucket.Bucket([]byte("chunks"))
		if chunks == nil {
			return errs.Wrapf(errs.ErrIO, "boltgroup: group %q has no chunk data", group)
		}
		var buf []float64
		c := chunks.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			buf = append(buf, decodeChunk(v)...)
		}
		data = buf
		return nil
	})
	return meta, data, err
}

func encodeChunk(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeChunk(buf []byte) []float64 {
	n := len(buf) / 8
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return values
}

func loadDefaultGroup(path string) ([3]int, []float64, error) {
	db, err := Open(path)
	if err != nil {
		return [3]int{}, nil, err
	}
	defer db.Close()
	meta, data, err := ReadGroup(db, "registered")
	if err != nil {
		return [3]int{}, nil, err
	}
	return meta.Shape, data, nil
}

func saveDefaultGroup(path string, shape [3]int, data []float64) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return WriteGroup(db, "registered", Meta{Shape: shape}, data)
}
