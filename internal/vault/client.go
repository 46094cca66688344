package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"stock-scenario-engine/config"
)

// Credential represents a data-provider credential stored in Vault
type Credential struct {
	Provider string `json:"provider"` // e.g. "market_primary", "market_fallback", "news"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Client wraps the HashiCorp Vault client for provider credentials.
// With Vault disabled it degrades to a process-local store so local
// development needs no Vault instance.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]*Credential
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*Credential),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}, nil
}

// StoreCredential stores a provider credential
func (c *Client) StoreCredential(ctx context.Context, cred Credential) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"provider": cred.Provider,
			"api_key":  cred.APIKey,
			"base_url": cred.BaseURL,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(cred.Provider), secretData)
	if err != nil {
		return fmt.Errorf("failed to store credential in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
	}
	return nil
}

// GetCredential retrieves a provider credential
func (c *Client) GetCredential(ctx context.Context, provider string) (*Credential, error) {
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[provider]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("credential %q not found and vault is disabled", provider)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credential %q not found", provider)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected secret format for %q", provider)
	}

	cred := &Credential{
		Provider: getString(data, "provider"),
		APIKey:   getString(data, "api_key"),
		BaseURL:  getString(data, "base_url"),
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[provider] = cred
		c.mu.Unlock()
	}
	return cred, nil
}

// DeleteCredential removes a provider credential
func (c *Client) DeleteCredential(ctx context.Context, provider string) error {
	c.mu.Lock()
	delete(c.cache, provider)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.secretPath(provider)); err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}
	return nil
}

// ClearCache drops all cached credentials
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*Credential)
}

// IsEnabled reports whether Vault is active
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health verifies connectivity to Vault
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%v sealed=%v", health.Initialized, health.Sealed)
	}
	return nil
}

// secretPath builds the KV v2 data path for a provider credential
func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
