package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages on/off toggles for optional service surfaces.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureReceiptListing   = "receipts.listing"            // GET /receipts
	FeatureReceiptRegister  = "receipts.register"           // xlsx ledger download
	FeatureDirectoryRefresh = "scheduler.directory_refresh" // periodic cache warm-up
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureReceiptListing] = &Feature{
		Name:        FeatureReceiptListing,
		Description: "List archived receipts",
		Enabled:     true,
	}
	ff.features[FeatureReceiptRegister] = &Feature{
		Name:        FeatureReceiptRegister,
		Description: "Download the receipt register spreadsheet",
		Enabled:     true,
	}
	ff.features[FeatureDirectoryRefresh] = &Feature{
		Name:        FeatureDirectoryRefresh,
		Description: "Periodically refresh the cached student directory",
		Enabled:     false,
	}
}

// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_RECEIPTS_REGISTER=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// "receipts.register" -> "FEATURE_RECEIPTS_REGISTER"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled. Unknown features are disabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// SetEnabled toggles a feature.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		result[k] = *v
	}
	return result
}

// ErrFeatureNotFound is returned for unknown feature names.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
