// Package blobstore persists state as versioned snapshot objects in a blob
// Store (filesystem, S3/MinIO or memory). Each commit writes one immutable
// object; older versions beyond the retention window are pruned.
package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"staffcore/internal/blob"
	"staffcore/internal/infra/persistence/memory"
	"staffcore/pkg/domain"
	"strconv"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Codec names the snapshot encoding.
type Codec string

// Supported snapshot codecs. The codec is also the object key extension.
const (
	CodecJSON Codec = "json"
	CodecCBOR Codec = "cbor"
)

const (
	// DefaultPrefix is the key prefix snapshot objects are written under.
	DefaultPrefix = "snapshots/"
	// DefaultRetain is the number of snapshot versions kept.
	DefaultRetain = 10
)

// Config controls snapshot layout.
type Config struct {
	Prefix string
	Codec  Codec
	// Retain is the number of newest snapshots kept; values below one keep
	// DefaultRetain.
	Retain int
}

func (c Config) withDefaults() (Config, error) {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if !strings.HasSuffix(c.Prefix, "/") {
		c.Prefix += "/"
	}
	if c.Codec == "" {
		c.Codec = CodecJSON
	}
	if c.Codec != CodecJSON && c.Codec != CodecCBOR {
		return c, fmt.Errorf("unsupported snapshot codec %q", c.Codec)
	}
	if c.Retain < 1 {
		c.Retain = DefaultRetain
	}
	return c, nil
}

// Store keeps state in memory and writes a new snapshot object on every
// committed transaction. A commit only lands when the newest object is still
// the one this process last saw; snapshot keys are create-only, so two
// writers racing for the same version cannot both succeed.
type Store struct {
	*memory.Store
	blobs blob.Store
	cfg   Config

	mu      sync.Mutex
	version uint64
}

// NewStore loads the newest snapshot under cfg.Prefix (if any) and returns a
// store that appends a snapshot per commit.
func NewStore(ctx context.Context, blobs blob.Store, engine *domain.RulesEngine, cfg Config, opts ...memory.Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blobstore: nil blob store")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	s := &Store{blobs: blobs, cfg: cfg}
	s.Store = memory.NewStore(engine, append(opts, memory.WithFlush(s.persist), memory.WithSync(s.changedSince))...)
	snapshot, found, err := s.read(ctx, true)
	if err != nil {
		return nil, err
	}
	if found {
		s.ImportState(snapshot)
	}
	return s, nil
}

// Version returns the number of the last written or loaded snapshot.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Reload imports the newest snapshot under the prefix when another writer
// added one.
func (s *Store) Reload(ctx context.Context) error { return s.Sync(ctx) }

// Blobs exposes the underlying blob store.
func (s *Store) Blobs() blob.Store { return s.blobs }

func (s *Store) key(version uint64) string {
	return fmt.Sprintf("%s%020d.%s", s.cfg.Prefix, version, s.cfg.Codec)
}

// parseKey extracts the version and codec from a snapshot key.
func (s *Store) parseKey(key string) (uint64, Codec, bool) {
	name := strings.TrimPrefix(key, s.cfg.Prefix)
	if strings.Contains(name, "/") {
		return 0, "", false
	}
	ext := path.Ext(name)
	codec := Codec(strings.TrimPrefix(ext, "."))
	if codec != CodecJSON && codec != CodecCBOR {
		return 0, "", false
	}
	version, err := strconv.ParseUint(strings.TrimSuffix(name, ext), 10, 64)
	if err != nil {
		return 0, "", false
	}
	return version, codec, true
}

type snapshotRef struct {
	key     string
	version uint64
	codec   Codec
}

func (s *Store) snapshots(ctx context.Context) ([]snapshotRef, error) {
	infos, err := s.blobs.List(ctx, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	refs := make([]snapshotRef, 0, len(infos))
	for _, info := range infos {
		if version, codec, ok := s.parseKey(info.Key); ok {
			refs = append(refs, snapshotRef{key: info.Key, version: version, codec: codec})
		}
	}
	// keys are zero padded so List order is version order
	return refs, nil
}

func (s *Store) changedSince(ctx context.Context) (memory.Snapshot, bool, error) {
	return s.read(ctx, false)
}

// read decodes the newest snapshot. Unless force is set it returns nothing
// when that snapshot is the current version.
func (s *Store) read(ctx context.Context, force bool) (memory.Snapshot, bool, error) {
	refs, err := s.snapshots(ctx)
	if err != nil {
		return memory.Snapshot{}, false, err
	}
	if len(refs) == 0 {
		return memory.Snapshot{}, false, nil
	}
	latest := refs[len(refs)-1]
	if !force && latest.version == s.Version() {
		return memory.Snapshot{}, false, nil
	}
	_, rc, err := s.blobs.Get(ctx, latest.key)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("read snapshot %s: %w", latest.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("read snapshot %s: %w", latest.key, err)
	}
	snapshot, err := decode(latest.codec, data)
	if err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", latest.key, err)
	}
	s.mu.Lock()
	s.version = latest.version
	s.mu.Unlock()
	return snapshot, true, nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
	data, err := encode(s.cfg.Codec, snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	refs, err := s.snapshots(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(refs) > 0 && refs[len(refs)-1].version != s.version {
		return domain.ErrStaleState
	}
	next := s.version + 1
	_, err = s.blobs.Put(ctx, s.key(next), bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType(s.cfg.Codec),
		Metadata:    map[string]string{"version": strconv.FormatUint(next, 10)},
	})
	if errors.Is(err, blob.ErrExists) {
		return domain.ErrStaleState
	}
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.version = next
	// pruning is best effort; the next commit retries anything left behind
	_ = s.prune(ctx)
	return nil
}

// prune deletes every snapshot older than the newest cfg.Retain.
func (s *Store) prune(ctx context.Context) error {
	refs, err := s.snapshots(ctx)
	if err != nil {
		return err
	}
	if len(refs) <= s.cfg.Retain {
		return nil
	}
	var errs []error
	for _, ref := range refs[:len(refs)-s.cfg.Retain] {
		if _, err := s.blobs.Delete(ctx, ref.key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// History lists retained snapshot versions, oldest first.
func (s *Store) History(ctx context.Context) ([]uint64, error) {
	refs, err := s.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]uint64, 0, len(refs))
	for _, ref := range refs {
		versions = append(versions, ref.version)
	}
	return versions, nil
}

// cborMode keeps nanosecond timestamps and emits deterministic output.
var cborMode = func() cbor.EncMode {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano, Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func encode(codec Codec, snapshot memory.Snapshot) ([]byte, error) {
	if codec == CodecCBOR {
		return cborMode.Marshal(snapshot)
	}
	return json.Marshal(snapshot)
}

func decode(codec Codec, data []byte) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	var err error
	if codec == CodecCBOR {
		err = cbor.Unmarshal(data, &snapshot)
	} else {
		err = json.Unmarshal(data, &snapshot)
	}
	return snapshot, err
}

func contentType(codec Codec) string {
	if codec == CodecCBOR {
		return "application/cbor"
	}
	return "application/json"
}
