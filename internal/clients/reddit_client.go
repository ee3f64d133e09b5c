package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/spacesedan/agora/internal/models"
)

const (
	REDDIT_AUTH_URL = "https://www.reddit.com/api/v1/access_token"
	REDDIT_API_URL  = "https://oauth.reddit.com"
)

var ErrRedditUnauthorized = errors.New("reddit rejected credentials")

type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	AuthURL      string
	APIURL       string
	// MinInterval spaces consecutive requests. Zero disables throttling.
	MinInterval    time.Duration
	InitialBackoff time.Duration
	MaxRetries     int
	// HTTPClient is the transport used for token and API calls.
	HTTPClient *http.Client
}

// RedditClient reads listings and comments through the OAuth API.
type RedditClient struct {
	config    *clientcredentials.Config
	baseCtx   context.Context
	apiURL    string
	userAgent string

	mu     sync.Mutex
	client *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration

	initialBackoff time.Duration
	maxRetries     int
}

func NewRedditClient(cfg RedditConfig) *RedditClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = REDDIT_AUTH_URL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = REDDIT_API_URL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = USER_AGENT
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = INITIAL_BACKOFF
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MAX_RETRIES
	}

	oauthConf := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.AuthURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	baseCtx := context.Background()
	if cfg.HTTPClient != nil {
		baseCtx = context.WithValue(baseCtx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	return &RedditClient{
		config:         oauthConf,
		baseCtx:        baseCtx,
		apiURL:         strings.TrimRight(cfg.APIURL, "/"),
		userAgent:      cfg.UserAgent,
		client:         oauthConf.Client(baseCtx),
		minInterval:    cfg.MinInterval,
		initialBackoff: cfg.InitialBackoff,
		maxRetries:     cfg.MaxRetries,
	}
}

// RefreshClient drops the cached token so the next request fetches a new one.
func (rc *RedditClient) RefreshClient() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.client = rc.config.Client(rc.baseCtx)
}

func (rc *RedditClient) httpClient() *http.Client {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.client
}

func (rc *RedditClient) throttle(ctx context.Context) error {
	if rc.minInterval <= 0 {
		return nil
	}

	rc.throttleMu.Lock()
	defer rc.throttleMu.Unlock()

	wait := rc.minInterval - time.Since(rc.lastRequest)
	if wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	rc.lastRequest = time.Now()
	return nil
}

// Search runs a subreddit-restricted search.
func (rc *RedditClient) Search(ctx context.Context, subreddit, query, sort, window string, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", sort)
	params.Set("t", window)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("restrict_sr", "on")

	body, err := rc.get(ctx, fmt.Sprintf("/r/%s/search", url.PathEscape(subreddit)), params)
	if err != nil {
		return nil, err
	}
	return decodePosts(body, limit)
}

// Hot returns the subreddit's hot listing.
func (rc *RedditClient) Hot(ctx context.Context, subreddit string, limit int) ([]models.Post, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := rc.get(ctx, fmt.Sprintf("/r/%s/hot", url.PathEscape(subreddit)), params)
	if err != nil {
		return nil, err
	}
	return decodePosts(body, limit)
}

// Comments returns up to limit top-level comments of a post. Nested replies
// and "load more" stubs are not expanded.
func (rc *RedditClient) Comments(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("depth", "1")

	body, err := rc.get(ctx, fmt.Sprintf("/comments/%s", url.PathEscape(postID)), params)
	if err != nil {
		return nil, err
	}

	var listings []models.RedditAPIResponse
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("[RedditClient] decode comments: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	comments := make([]models.Comment, 0, limit)
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		if len(comments) == limit {
			break
		}
		comments = append(comments, models.Comment{
			ID:        child.Data.ID,
			Body:      child.Data.Body,
			Author:    child.Data.Author,
			Score:     child.Data.Score,
			CreatedAt: fromUnix(child.Data.CreatedUTC),
		})
	}
	return comments, nil
}

func (rc *RedditClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("raw_json", "1")
	endpoint := rc.apiURL + path + "?" + params.Encode()

	backoff := rc.initialBackoff
	refreshed := false

	for attempt := 0; attempt < rc.maxRetries; attempt++ {
		if err := rc.throttle(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("[RedditClient] Failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", rc.userAgent)

		resp, err := rc.httpClient().Do(req)
		if err != nil {
			return nil, fmt.Errorf("[RedditClient] request %s: %w", path, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("[RedditClient] read response: %w", readErr)
			}
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return nil, fmt.Errorf("[RedditClient] %s: %w", path, ErrRedditUnauthorized)
			}
			slog.Warn("[RedditClient] Token expired - Refreshing and Retrying...")
			rc.RefreshClient()
			refreshed = true

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			slog.Warn("[RedditClient] Retrying request",
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff))

			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > MAX_BACKOFF {
				backoff = MAX_BACKOFF
			}

		default:
			return nil, fmt.Errorf("[RedditClient] %s returned status %d", path, resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("[RedditClient] Max retries reached request failed: %s", path)
}

func decodePosts(body []byte, limit int) ([]models.Post, error) {
	var listing models.RedditAPIResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("[RedditClient] decode listing: %w", err)
	}

	posts := make([]models.Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		if limit > 0 && len(posts) == limit {
			break
		}
		posts = append(posts, models.Post{
			ID:          child.Data.ID,
			Title:       child.Data.Title,
			Subreddit:   child.Data.Subreddit,
			Author:      child.Data.Author,
			Permalink:   child.Data.Permalink,
			Upvotes:     child.Data.Ups,
			NumComments: child.Data.NumComments,
			Stickied:    child.Data.Stickied,
			CreatedAt:   fromUnix(child.Data.CreatedUTC),
		})
	}
	return posts, nil
}

func fromUnix(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds), 0).UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
