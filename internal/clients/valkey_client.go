package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

const (
	VALKEY_SUMMARY_PREFIX = "agora:summary:"
	valkeyRetries         = 3
)

type ValkeyConfig struct {
	InitAddress []string
	Password    string
	TLS         bool
	// TTL bounds how long a cached summary lives. Zero keeps it forever.
	TTL time.Duration
}

// ValkeyClient is a summary.Store used as the fast layer in front of the
// Summaries table. The first writer for a headline wins.
type ValkeyClient struct {
	Client valkey.Client
	cfg    ValkeyConfig
	mu     sync.Mutex
}

func NewValkeyClient(cfg ValkeyConfig) (*ValkeyClient, error) {
	client, err := dialValkey(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", strings.Join(cfg.InitAddress, ",")))
	return &ValkeyClient{Client: client, cfg: cfg}, nil
}

func dialValkey(cfg ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      cfg.InitAddress,
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := dialValkey(vc.cfg)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

func summaryKey(headline string) string {
	return VALKEY_SUMMARY_PREFIX + utils.HeadlineKey(headline)
}

func (vc *ValkeyClient) Lookup(ctx context.Context, headline string) (string, bool, error) {
	res := vc.DoWithRetry(ctx, func() valkey.Completed {
		return vc.client().B().Get().Key(summaryKey(headline)).Build()
	})

	text, err := res.ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[ValkeyClient] get summary: %w", err)
	}
	return text, true, nil
}

func (vc *ValkeyClient) Save(ctx context.Context, s models.CachedSummary) error {
	key := summaryKey(s.Headline)
	res := vc.DoWithRetry(ctx, func() valkey.Completed {
		if vc.cfg.TTL > 0 {
			return vc.client().B().Set().Key(key).Value(s.SummaryText).Nx().ExSeconds(int64(vc.cfg.TTL.Seconds())).Build()
		}
		return vc.client().B().Set().Key(key).Value(s.SummaryText).Nx().Build()
	})

	// NX answers nil when another writer got there first
	if err := res.Error(); err != nil && !valkey.IsValkeyNil(err) {
		return fmt.Errorf("[ValkeyClient] set summary: %w", err)
	}
	return nil
}

// DoWithRetry rebuilds the command per attempt since a Completed command may
// not be reused after it is sent.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func() valkey.Completed) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < valkeyRetries; i++ {
		result = vc.client().Do(ctx, build())
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		if isConnectionError(err) {
			vc.recreateClient()
		}
		if sleepCtx(ctx, 250*time.Millisecond) != nil {
			break
		}
	}
	return result
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
