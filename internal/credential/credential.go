// Package credential manages trader credentials for the delivery
// channels. Credentials are scoped to (organization, country, channel)
// and at most one credential may exist per scope.
package credential

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel identifies a delivery channel type.
type Channel string

const (
	ChannelFTP Channel = "ftp"
	ChannelWeb Channel = "web"
)

// Credential is a trader credential for one channel in one country.
// Exactly one of the channel sections is populated, matching Type.
type Credential struct {
	OrganizationID string  `yaml:"organization_id"`
	Country        string  `yaml:"country"`
	Type           Channel `yaml:"type"`

	FTP *FTPCredential `yaml:"ftp,omitempty"`
	Web *WebCredential `yaml:"web,omitempty"`

	LastTestedAt time.Time `yaml:"last_tested_at,omitempty"`
	LastUsedAt   time.Time `yaml:"last_used_at,omitempty"`
}

// FTPCredential carries the batch-upload account details.
type FTPCredential struct {
	TraderID          string `yaml:"trader_id"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	NotificationEmail string `yaml:"notification_email,omitempty"`
}

// WebCredential carries the portal login plus the field selectors the
// automation engine starts from.
type WebCredential struct {
	Target         string            `yaml:"target,omitempty"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	FieldSelectors map[string]string `yaml:"field_selectors,omitempty"`
}

// Validate checks the credential is complete enough to attempt a
// submission. Incomplete credentials fail fast before any network call.
func (c *Credential) Validate() error {
	if c.OrganizationID == "" || c.Country == "" {
		return fmt.Errorf("credential missing organization or country")
	}
	switch c.Type {
	case ChannelFTP:
		if c.FTP == nil || c.FTP.TraderID == "" || c.FTP.Username == "" || c.FTP.Password == "" {
			return fmt.Errorf("ftp credential incomplete for %s/%s", c.OrganizationID, c.Country)
		}
	case ChannelWeb:
		if c.Web == nil || c.Web.Username == "" || c.Web.Password == "" {
			return fmt.Errorf("web credential incomplete for %s/%s", c.OrganizationID, c.Country)
		}
	default:
		return fmt.Errorf("unknown credential type %q", c.Type)
	}
	return nil
}

// MarkTested records a successful credential test. Timestamp only; the
// credential content itself is never mutated by a test.
func (c *Credential) MarkTested(at time.Time) {
	c.LastTestedAt = at
}

// MarkUsed records a submission attempt. Best effort and idempotent.
func (c *Credential) MarkUsed(at time.Time) {
	c.LastUsedAt = at
}

func (c *Credential) key() string {
	target := ""
	if c.Type == ChannelWeb && c.Web != nil {
		target = c.Web.Target
	}
	return strings.Join([]string{c.OrganizationID, c.Country, string(c.Type), target}, "\x00")
}

// Registry holds credentials and enforces the one-per-scope invariant.
type Registry struct {
	byKey map[string]*Credential
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Credential)}
}

// Add registers a credential. A second credential for the same
// (organization, country, channel, web-target) scope is rejected.
func (r *Registry) Add(c *Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	k := c.key()
	if _, exists := r.byKey[k]; exists {
		return fmt.Errorf("duplicate credential for %s/%s channel %s", c.OrganizationID, c.Country, c.Type)
	}
	r.byKey[k] = c
	return nil
}

// Lookup returns the credential for a scope, or nil.
func (r *Registry) Lookup(orgID, country string, channel Channel, target string) *Credential {
	c := &Credential{OrganizationID: orgID, Country: country, Type: channel}
	if channel == ChannelWeb {
		c.Web = &WebCredential{Target: target}
	}
	return r.byKey[c.key()]
}

// Save writes the registry back to a YAML file in the LoadRegistry
// format, in stable scope order. This is how the best-effort
// last-tested and last-used timestamps survive the process.
func (r *Registry) Save(path string) error {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var file struct {
		Credentials []*Credential `yaml:"credentials"`
	}
	for _, k := range keys {
		file.Credentials = append(file.Credentials, r.byKey[k])
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// LoadRegistry reads credentials from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var file struct {
		Credentials []*Credential `yaml:"credentials"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	r := NewRegistry()
	for _, c := range file.Credentials {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
