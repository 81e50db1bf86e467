package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IntegrationKeys validates API keys presented by upstream integrations
// (GLPI, Solman, the web portal). Configured values starting with "$2" are
// bcrypt hashes; anything else is compared in constant time, which keeps
// local development setups simple.
type IntegrationKeys struct {
	keys map[string]string // integration name -> stored secret
}

// NewIntegrationKeys wraps the configured key table.
func NewIntegrationKeys(keys map[string]string) *IntegrationKeys {
	return &IntegrationKeys{keys: keys}
}

// Enabled reports whether any integration keys are configured. With none
// configured, key checks are skipped entirely (development mode).
func (k *IntegrationKeys) Enabled() bool {
	return k != nil && len(k.keys) > 0
}

// Verify checks a presented API key against the table and returns the
// integration name it belongs to.
func (k *IntegrationKeys) Verify(presented string) (string, bool) {
	if presented == "" {
		return "", false
	}
	for name, stored := range k.keys {
		if strings.HasPrefix(stored, "$2") {
			if bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil {
				return name, true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1 {
			return name, true
		}
	}
	return "", false
}
