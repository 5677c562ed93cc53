// internal/vault/vault.go
//
// Vault client wrapper for the gate server.
//
// Context
// -------
//   - Provides a concurrency-safe client around the HashiCorp Vault Go SDK.
//   - Adds background token renewal, simple KV-v2 helpers, and per-key caching.
//   - Resolves configuration values of the form `vault:<mount>/<path>#<key>`,
//     so secrets such as the routes database password never sit in YAML.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)              // during boot.
//  2. pw,  err := cli.Resolve(ctx, cfg.Password)    // plain values pass through.
//
// Build tags: none.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/logger"
)

// RefPrefix marks a configuration value that names a Vault secret.
const RefPrefix = "vault:"

// ResolveTTL is how long Resolve caches a secret.
const ResolveTTL = 5 * time.Minute

// ErrNoClient is returned when a vault reference is resolved without a client.
var ErrNoClient = errors.New("vault: reference found but no client configured")

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Create once at startup.  Zero value is
// invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client and starts a background token-renewal loop
// bound to ctx.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		log:   logger.OrGlobal(log),
		cache: make(map[string]cached),
	}

	go c.renewLoop(ctx)

	return c, nil
}

// IsRef reports whether v names a Vault secret.
func IsRef(v string) bool { return strings.HasPrefix(v, RefPrefix) }

// Resolve returns v unchanged unless it is a `vault:` reference, in which
// case the referenced key is fetched (and cached for ResolveTTL).  A nil
// client resolves plain values only.
func (c *Client) Resolve(ctx context.Context, v string) (string, error) {
	if !IsRef(v) {
		return v, nil
	}
	path, key, err := parseRef(v)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", ErrNoClient
	}
	return c.GetKV(ctx, path, key, ResolveTTL)
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result is
// cached for that duration.  Subsequent callers within the TTL receive the
// cached copy.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}

	return sval, nil
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		// Probe the current token.
		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			c.log.Warnw("vault: token renew self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault: token is not renewable, sleeping 1h")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
			Secret: sec,
		})
		if err != nil {
			c.log.Warnw("vault: lifetime watcher init error", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		c.watch(ctx, watcher)
	}
}

// watch runs one lifetime watcher until it finishes or ctx is cancelled.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	go w.Start()
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault: token renewal stopped", "err", err)
			}
			backoff(ctx, 15*time.Second)
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault: token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

// parseRef splits `vault:<mount>/<path>#<key>`.
func parseRef(v string) (path, key string, err error) {
	body := strings.TrimPrefix(v, RefPrefix)
	path, key, ok := strings.Cut(body, "#")
	if !ok || path == "" || key == "" || !strings.Contains(path, "/") {
		return "", "", fmt.Errorf("vault: malformed reference %q (want vault:<mount>/<path>#<key>)", v)
	}
	return path, key, nil
}

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
