// Package config loads the storage core's YAML configuration: one
// eviction policy and backend description per named store, plus the
// per-instance-name Action Cache store map. Options are documented with
// Default/Help-style doc comments rather than a reflection-based flag
// generator, since flag/env binding is an external configuration-loading
// concern this package doesn't take on.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turbobuild/castore/internal/cerrors"
	"github.com/turbobuild/castore/internal/fsguard"
)

// EvictionPolicy bounds an EvictingMap. Zero fields mean unbounded.
type EvictionPolicy struct {
	// MaxCount caps the number of entries. Default: 0 (unbounded).
	MaxCount int `yaml:"max_count"`
	// MaxBytes caps the sum of entry sizes. Default: 0 (unbounded).
	MaxBytes int64 `yaml:"max_bytes"`
	// MaxSeconds evicts entries older than this age. Default: 0 (unbounded).
	MaxSeconds int64 `yaml:"max_seconds"`
	// EvictBytes is a documentation-only batching hint; it does not change
	// the end state of eviction. Default: 0.
	EvictBytes int64 `yaml:"evict_bytes"`
}

// FilesystemStoreConfig configures a pkg/store/filesystem.Store.
type FilesystemStoreConfig struct {
	// TempPath holds in-progress uploads. Required.
	TempPath string `yaml:"temp_path"`
	// ContentPath holds committed blobs. Required.
	ContentPath string `yaml:"content_path"`
	// ReadBufferSize is GetPart's chunk size. Default: 32KiB.
	ReadBufferSize int `yaml:"read_buffer_size"`
	// EvictionPolicy bounds the store's index. Default: unbounded.
	EvictionPolicy EvictionPolicy `yaml:"eviction_policy"`
}

// MemoryStoreConfig configures a pkg/store/memory.Store.
type MemoryStoreConfig struct {
	// DefaultExpirationSeconds is an entry's TTL. 0 disables expiry.
	DefaultExpirationSeconds int64 `yaml:"default_expiration_seconds"`
	// CleanupIntervalSeconds is how often expired entries are purged.
	CleanupIntervalSeconds int64 `yaml:"cleanup_interval_seconds"`
}

// GrpcStoreConfig configures a pkg/store/grpcstore.Store.
type GrpcStoreConfig struct {
	// Address is the upstream server's dial target, e.g. "cache.internal:443".
	Address string `yaml:"address"`
	// InstanceName is prefixed onto every forwarded resource name.
	InstanceName string `yaml:"instance_name"`
	// ReadChunkSize bounds forwarded chunk size. Default: 2MiB.
	ReadChunkSize int `yaml:"read_chunk_size"`
	// ActionCacheGetMethod/ActionCacheUpdateMethod are the full gRPC
	// method names used for Action Cache raw passthrough.
	ActionCacheGetMethod    string `yaml:"action_cache_get_method"`
	ActionCacheUpdateMethod string `yaml:"action_cache_update_method"`
}

// BackendConfig is a named store backend. Exactly one of Filesystem,
// Memory, or Grpc must be set.
type BackendConfig struct {
	Name       string                 `yaml:"name"`
	Filesystem *FilesystemStoreConfig `yaml:"filesystem,omitempty"`
	Memory     *MemoryStoreConfig     `yaml:"memory,omitempty"`
	Grpc       *GrpcStoreConfig       `yaml:"grpc,omitempty"`
}

// ActionCacheInstance binds a Remote Execution instance name to one of
// the named backends in Stores.
type ActionCacheInstance struct {
	InstanceName string `yaml:"instance_name"`
	Store        string `yaml:"store"`
}

// Config is the root document loaded from YAML.
type Config struct {
	// FSGuardPermits bounds concurrently open file descriptors. Default: fsguard.DefaultPermits.
	FSGuardPermits int64 `yaml:"fs_guard_permits"`
	// Stores is the set of named backends, referenced by name from
	// ActionCache and from the CAS's own store selection (outside this
	// config's scope — the RPC layer picks a CAS store by name the same
	// way).
	Stores []BackendConfig `yaml:"stores"`
	// ActionCache maps each instance name to one of Stores by name.
	ActionCache []ActionCacheInstance `yaml:"action_cache"`
}

// Load reads and validates a Config from the YAML file at path, then
// applies FSGuardPermits to the process-wide fsguard permit pool
// (fsguard.Init is a no-op below fsguard.DefaultPermits, so an unset or
// too-small value leaves the default pool in place).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrapf(cerrors.Internal, err, "failed to read config file %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerrors.Wrapf(cerrors.InvalidArgument, err, "failed to parse config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FSGuardPermits > 0 {
		fsguard.Init(cfg.FSGuardPermits)
	}
	return &cfg, nil
}

// Validate checks structural invariants Load cannot express in the
// struct tags alone: each backend names exactly one kind, backend
// names are unique, and every ActionCache entry references a backend
// that actually exists.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Stores))
	for _, b := range c.Stores {
		if b.Name == "" {
			return cerrors.New(cerrors.InvalidArgument, "every store must have a non-empty name")
		}
		if seen[b.Name] {
			return cerrors.Errorf(cerrors.InvalidArgument, "duplicate store name %q", b.Name)
		}
		seen[b.Name] = true

		kinds := 0
		if b.Filesystem != nil {
			kinds++
		}
		if b.Memory != nil {
			kinds++
		}
		if b.Grpc != nil {
			kinds++
		}
		if kinds != 1 {
			return cerrors.Errorf(cerrors.InvalidArgument, "store %q must set exactly one of filesystem, memory, grpc", b.Name)
		}
	}

	for _, ac := range c.ActionCache {
		if !seen[ac.Store] {
			return cerrors.Errorf(cerrors.InvalidArgument, "action_cache instance %q references unknown store %q", ac.InstanceName, ac.Store)
		}
	}
	return nil
}
