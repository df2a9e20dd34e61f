// Package mongodb implements db.Database over a MongoDB collection. Keys
// are stored hex encoded as document ids, which preserves byte ordering
// for prefix iteration. The WriteTx buffers writes in memory and flushes
// them with a single ordered bulk write on Commit, so it provides
// atomicity per transaction but no conflict detection.
//
// The server URL is taken from the MONGODB_URL environment variable
// (default mongodb://localhost:27017). Options.Path selects the database
// name.
package mongodb

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vireopay/fundflow/db"
)

const (
	collectionName = "kv"
	maxPoolSize    = 20
	opTimeout      = 10 * time.Second
)

type record struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB implements db.Database.
type MongoDB struct {
	client *mongo.Client
	keys   *mongo.Collection
}

var _ db.Database = (*MongoDB)(nil)

// New connects to the MongoDB server and returns a database handle over
// the database named by opts.Path.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		url = "mongodb://localhost:27017"
	}
	name := opts.Path
	if name == "" {
		name = "fundflow"
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url).SetMaxPoolSize(maxPoolSize))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("cannot ping mongodb: %w", err)
	}
	return &MongoDB{
		client: client,
		keys:   client.Database(name).Collection(collectionName),
	}, nil
}

// Close disconnects from the server.
func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Compact is a no-op, the server manages its own storage.
func (d *MongoDB) Compact() error {
	return nil
}

// Get retrieves the value for the given key.
func (d *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var rec record
	err := d.keys.FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Iterate calls callback with all key-value pairs whose key starts with
// prefix, in ascending key order. The prefix is stripped from the keys
// passed to the callback.
func (d *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries, err := d.snapshot(prefix)
	if err != nil {
		return err
	}
	iterateEntries(entries, prefix, callback)
	return nil
}

// WriteTx creates a new buffered write transaction.
func (d *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{
		db:     d,
		writes: make(map[string]*[]byte),
	}
}

// snapshot reads all records matching the prefix into a map keyed by the
// raw (non hex) key.
func (d *MongoDB) snapshot(prefix []byte) (map[string][]byte, error) {
	filter := bson.M{}
	if len(prefix) > 0 {
		keyRange := bson.M{"$gte": hex.EncodeToString(prefix)}
		if upper := keyUpperBound(prefix); upper != nil {
			keyRange["$lt"] = hex.EncodeToString(upper)
		}
		filter["_id"] = keyRange
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	cursor, err := d.keys.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	entries := make(map[string][]byte)
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, err
		}
		key, err := hex.DecodeString(rec.Key)
		if err != nil {
			return nil, fmt.Errorf("malformed key %q: %w", rec.Key, err)
		}
		entries[string(key)] = rec.Value
	}
	return entries, cursor.Err()
}

// WriteTx implements db.WriteTx buffering writes until Commit.
type WriteTx struct {
	db        *MongoDB
	writes    map[string]*[]byte // nil value means delete
	committed bool
	discarded bool
}

var _ db.WriteTx = (*WriteTx)(nil)

// Get retrieves the value for the given key, observing pending writes.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if pending, ok := tx.writes[string(key)]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}
	return tx.db.Get(key)
}

// Iterate calls callback with all key-value pairs, observing pending writes.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries, err := tx.db.snapshot(prefix)
	if err != nil {
		return err
	}
	for key, value := range tx.writes {
		if !bytes.HasPrefix([]byte(key), prefix) {
			continue
		}
		if value == nil {
			delete(entries, key)
			continue
		}
		entries[key] = bytes.Clone(*value)
	}
	iterateEntries(entries, prefix, callback)
	return nil
}

// Set adds a key-value pair to the pending writes.
func (tx *WriteTx) Set(key, value []byte) error {
	valCopy := bytes.Clone(value)
	tx.writes[string(key)] = &valCopy
	return nil
}

// Delete marks a key for deletion.
func (tx *WriteTx) Delete(key []byte) error {
	tx.writes[string(key)] = nil
	return nil
}

// Apply merges the pending writes of the given transaction, which must be
// a mongodb one possibly wrapped by prefixeddb, into this one.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	unwrapped := other
	for {
		casted, ok := unwrapped.(interface{ UnwrapWriteTx() db.WriteTx })
		if !ok {
			break
		}
		unwrapped = casted.UnwrapWriteTx()
	}
	otherTx, ok := unwrapped.(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply a transaction from a different backend")
	}
	for key, value := range otherTx.writes {
		if value == nil {
			tx.writes[key] = nil
			continue
		}
		valCopy := bytes.Clone(*value)
		tx.writes[key] = &valCopy
	}
	return nil
}

// Commit flushes all pending writes with a single ordered bulk write.
func (tx *WriteTx) Commit() error {
	if tx.committed || tx.discarded {
		return fmt.Errorf("cannot commit mongodb tx: already committed or discarded")
	}
	tx.committed = true
	if len(tx.writes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.writes))
	for key, value := range tx.writes {
		id := hex.EncodeToString([]byte(key))
		if value == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(record{Key: id, Value: *value}).
			SetUpsert(true))
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := tx.db.keys.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

// Discard drops all pending writes.
func (tx *WriteTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.discarded = true
}

func iterateEntries(entries map[string][]byte, prefix []byte, callback func(key, value []byte) bool) {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if !callback([]byte(key)[len(prefix):], entries[key]) {
			break
		}
	}
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when the prefix is all 0xff.
func keyUpperBound(b []byte) []byte {
	end := append([]byte{}, b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
