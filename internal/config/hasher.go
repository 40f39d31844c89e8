package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const hashCacheTTL = 5 * time.Minute

// ConfigHasher tracks two MD5 hashes of the semantic configuration content:
// the hash of the file currently on disk and the hash of the configuration
// the running service actually applied. Comparing the two tells SIGHUP
// handling and the status API whether a reload would change anything.
// Hashing the decoded structure (not the raw file) means comment or
// whitespace edits never trigger a reload.
type ConfigHasher struct {
	configPath string

	// Current hash (from config file) with caching
	currentHash     string
	currentHashTime time.Time

	// Applied hash (from running service)
	appliedHash string

	mu sync.RWMutex
}

// NewConfigHasher creates a new config hasher for the given config path.
func NewConfigHasher(configPath string) *ConfigHasher {
	return &ConfigHasher{
		configPath: configPath,
	}
}

// GetCurrentConfigHash returns the cached hash of the current config file,
// recalculating on cache miss.
func (h *ConfigHasher) GetCurrentConfigHash() (string, error) {
	h.mu.RLock()
	if time.Since(h.currentHashTime) < hashCacheTTL && h.currentHash != "" {
		hash := h.currentHash
		h.mu.RUnlock()
		return hash, nil
	}
	h.mu.RUnlock()

	return h.UpdateCurrentConfigHash()
}

// UpdateCurrentConfigHash recalculates the config-file hash and resets the
// cache. Always recalculates regardless of cache state (called after config
// changes and on SIGHUP).
func (h *ConfigHasher) UpdateCurrentConfigHash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := LoadConfig(h.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	hash, err := calculateHash(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}

	h.currentHash = hash
	h.currentHashTime = time.Now()

	return hash, nil
}

// CalculateHash calculates the hash for a given config object. Exposed for
// the service manager to record the hash of the config it applied.
func (h *ConfigHasher) CalculateHash(config *Config) (string, error) {
	return calculateHash(config)
}

// GetAppliedConfigHash returns the hash of the config that was active when
// the service last (re)started.
func (h *ConfigHasher) GetAppliedConfigHash() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.appliedHash
}

// SetAppliedConfigHash records the hash of the config the service applied.
func (h *ConfigHasher) SetAppliedConfigHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appliedHash = hash
}

// configHashData is the hashable projection of a Config: only fields whose
// change requires a service reload.
type configHashData struct {
	General        *GeneralConfig        `json:"general"`
	NetworkControl *NetworkControlConfig `json:"network_control"`
	DHCP           *DHCPConfig           `json:"dhcp"`
}

func calculateHash(config *Config) (string, error) {
	hashData := &configHashData{
		General:        config.General,
		NetworkControl: config.NetworkControl,
		DHCP:           config.DHCP,
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config data: %w", err)
	}

	hash := md5.Sum(jsonBytes)
	return hex.EncodeToString(hash[:]), nil
}
