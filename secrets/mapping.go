package secrets

import (
	"encoding/json"
	"strings"

	"github.com/lumafin/go-dbgateway/config"
)

// fieldMapping binds one configuration field to the ordered source keys it
// may be hydrated from. First present, non-empty value wins.
type fieldMapping struct {
	name   string
	target func(*config.Config) *string
	keys   []string
}

// credentialMappings covers the key spellings seen across RDS-managed and
// hand-written secrets.
var credentialMappings = []fieldMapping{
	{
		name:   "host",
		target: func(c *config.Config) *string { return &c.Host },
		keys:   []string{"host", "hostname", "db_host"},
	},
	{
		name:   "port",
		target: func(c *config.Config) *string { return &c.Port },
		keys:   []string{"port", "db_port"},
	},
	{
		name:   "database",
		target: func(c *config.Config) *string { return &c.Name },
		keys:   []string{"dbname", "database", "db_name"},
	},
	{
		name:   "user",
		target: func(c *config.Config) *string { return &c.User },
		keys:   []string{"username", "user", "db_user"},
	},
	{
		name:   "password",
		target: func(c *config.Config) *string { return &c.Password },
		keys:   []string{"password", "db_password"},
	},
}

// applyCredentials merges the parsed blob into cfg. Explicitly configured
// fields are never overwritten. Returns the names of the fields filled.
func applyCredentials(cfg *config.Config, blob map[string]json.RawMessage) []string {
	var filled []string
	for _, m := range credentialMappings {
		dst := m.target(cfg)
		if strings.TrimSpace(*dst) != "" {
			continue
		}
		for _, key := range m.keys {
			raw, ok := blob[key]
			if !ok {
				continue
			}
			v, ok := stringValue(raw)
			if !ok || v == "" {
				continue
			}
			*dst = v
			filled = append(filled, m.name)
			break
		}
	}
	return filled
}

// stringValue accepts strings and bare numbers (RDS secrets store the port
// as a number).
func stringValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
