package lsm

import (
	"fmt"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger is the logger used by the lsm engine
var Logger = logger.GetLogger("lsm")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	memDirName        = "akv-mem"
	defaultCacheBytes = 64 << 20
	infoSampleLimit   = 1000
)

// Options configures the engine during initialization
type Options struct {
	Dir        string // Data directory (ignored when InMemory is set)
	InMemory   bool   // Keep all data in memory, nothing is written to disk
	CacheBytes int64  // Size of the block cache (0 = use default: 64MB)
	Sync       bool   // Sync the write-ahead log after every write
}

// DefaultOptions returns the default engine options
func DefaultOptions() *Options {
	return &Options{
		Dir:        "data",
		CacheBytes: defaultCacheBytes,
	}
}

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

type lsmImpl struct {
	pdb       *pebble.DB
	writeOpts *pebble.WriteOptions
	opts      Options
}

// NewLSMDB opens (or creates) a Pebble store with the given options (optional)
func NewLSMDB(opts *Options) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	cacheBytes := opts.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = defaultCacheBytes
	}
	cache := pebble.NewCache(cacheBytes)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:  cache,
		Logger: pebbleLogger{},
	}

	dir := opts.Dir
	if opts.InMemory {
		pOpts.FS = vfs.NewMem()
		dir = memDirName
	}
	if dir == "" {
		return nil, errors.New("lsm: no data directory configured")
	}

	pdb, err := pebble.Open(dir, pOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %q", dir)
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	Logger.Infof("opened store (dir=%s, in_memory=%v, sync=%v)", dir, opts.InMemory, opts.Sync)

	return &lsmImpl{
		pdb:       pdb,
		writeOpts: writeOpts,
		opts:      *opts,
	}, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (l *lsmImpl) Set(key, value []byte) error {
	if err := l.pdb.Set(key, value, l.writeOpts); err != nil {
		return errors.Wrapf(err, "lsm: set")
	}
	return nil
}

func (l *lsmImpl) Delete(key []byte) error {
	if err := l.pdb.Delete(key, l.writeOpts); err != nil {
		return errors.Wrapf(err, "lsm: delete")
	}
	return nil
}

func (l *lsmImpl) DeleteRange(start, end []byte) error {
	if err := l.pdb.DeleteRange(start, end, l.writeOpts); err != nil {
		return errors.Wrapf(err, "lsm: delete range")
	}
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (l *lsmImpl) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := l.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "lsm: get")
	}
	defer closer.Close()

	// pebble owns value until closer is closed
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (l *lsmImpl) Has(key []byte) (bool, error) {
	_, closer, err := l.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "lsm: has")
	}
	_ = closer.Close()
	return true, nil
}

func (l *lsmImpl) Range(lower, upper []byte, fn func(key, value []byte) bool) error {
	iter := l.pdb.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})

	for valid := iter.First(); valid; valid = iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}

	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return errors.Wrapf(err, "lsm: range")
	}
	if err := iter.Close(); err != nil {
		return errors.Wrapf(err, "lsm: close iterator")
	}
	return nil
}

// --------------------------------------------------------------------------
// Feature Support
// --------------------------------------------------------------------------

// GetInfo returns statistics about the store. The value sizes are sampled
// from the first entries in key order.
func (l *lsmImpl) GetInfo() db.DatabaseInfo {
	m := l.pdb.Metrics()

	histogram := util.NewSizeHistogram()
	samples := 0
	_ = l.Range(nil, nil, func(_, value []byte) bool {
		histogram.AddSample(len(value))
		samples++
		return samples < infoSampleLimit
	})

	meta := &struct {
		InMemory         bool   `json:"in_memory"`
		Dir              string `json:"dir,omitempty"`
		MemTableBytes    uint64 `json:"memtable_bytes"`
		DiskSpaceUsage   uint64 `json:"disk_space_usage"`
		SampledValues    int    `json:"sampled_values"`
		MedianValueBytes int    `json:"median_value_bytes"`
		P99ValueBytes    int    `json:"p99_value_bytes"`
		Info             string `json:"info"`
	}{
		InMemory:         l.opts.InMemory,
		Dir:              l.opts.Dir,
		MemTableBytes:    m.MemTable.Size,
		DiskSpaceUsage:   m.DiskSpaceUsage(),
		SampledValues:    samples,
		MedianValueBytes: histogram.Median(),
		P99ValueBytes:    histogram.Percentile(99),
		Info:             "Value sizes are estimated from a sample of the key space.",
	}

	return db.DatabaseInfo{
		SizeBytes: int(m.DiskSpaceUsage() + m.MemTable.Size),
		DbType:    db.ImplLSM,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureHas,
			db.FeatureDelete, db.FeatureDeleteRange, db.FeatureRange,
		},
		Metadata: meta,
	}
}

func (l *lsmImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureHas |
		db.FeatureDelete |
		db.FeatureDeleteRange |
		db.FeatureRange
	return supportedFeatures&feature == feature
}

func (l *lsmImpl) Close() error {
	if err := l.pdb.Close(); err != nil {
		return errors.Wrapf(err, "lsm: close")
	}
	return nil
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

// pebbleLogger forwards pebble's log output to the lsm logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	Logger.Debugf("pebble: "+format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	Logger.Errorf("pebble: "+format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	Logger.Panicf("pebble: %s", fmt.Sprintf(format, args...))
}
