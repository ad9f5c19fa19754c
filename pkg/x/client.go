package x

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/provider"
	"xscraper/pkg/ratelimit"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options configures the client and the login flow
type Options struct {
	GraphQLBase string
	APIBase     string
	UserAgent   string
	Timeout     time.Duration
	PageSize    int
	// Budget is consulted before every GraphQL request; nil disables it
	Budget     ratelimit.Budget
	HTTPClient *http.Client
	Logger     logger.Logger
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.GraphQLBase == "" {
		o.GraphQLBase = GraphQLBase
	}
	if o.APIBase == "" {
		o.APIBase = APIBase
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// observer is implemented by budgets that can follow server-reported limits
type observer interface {
	Observe(remaining int, resetAt time.Time)
}

// Client issues authenticated GraphQL requests for one session token
type Client struct {
	opts   Options
	token  *Token
	logger logger.Logger

	mu      sync.Mutex
	userIDs map[string]string
}

// NewClient creates a client bound to token
func NewClient(token *Token, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:    opts,
		token:   token,
		logger:  opts.Logger.WithField("component", "x"),
		userIDs: make(map[string]string),
	}
}

// FetchPage implements provider.Session. The handle's user id is resolved
// once and cached
func (c *Client) FetchPage(ctx context.Context, handle, cursor string) (*provider.Page, error) {
	userID, err := c.UserID(ctx, handle)
	if err != nil {
		return nil, err
	}
	return c.UserTweets(ctx, userID, cursor)
}

// UserID resolves a handle to its numeric id
func (c *Client) UserID(ctx context.Context, handle string) (string, error) {
	c.mu.Lock()
	id, ok := c.userIDs[handle]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	u, err := graphQLURL(c.opts.GraphQLBase, userByScreenName, userByScreenNameVariables(handle))
	if err != nil {
		return "", err
	}
	body, err := c.get(ctx, userByScreenName.Name, u)
	if err != nil {
		return "", err
	}
	id, err = parseUserID(body)
	if err != nil {
		// an unknown or suspended account never recovers mid-run
		return "", errs.NewAuth(fmt.Sprintf("resolve @%s", handle), err)
	}

	c.mu.Lock()
	c.userIDs[handle] = id
	c.mu.Unlock()
	c.logger.DebugWithFields("Resolved handle", map[string]interface{}{"handle": handle, "user_id": id})
	return id, nil
}

// UserTweets fetches one timeline page; an empty cursor is the first page
func (c *Client) UserTweets(ctx context.Context, userID, cursor string) (*provider.Page, error) {
	u, err := graphQLURL(c.opts.GraphQLBase, userTweets, userTweetsVariables(userID, cursor, c.opts.PageSize))
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, userTweets.Name, u)
	if err != nil {
		return nil, err
	}
	posts, next, err := parseUserTweets(body)
	if err != nil {
		return nil, errs.NewTransient("parse UserTweets", err)
	}
	return &provider.Page{Posts: posts, Cursor: next}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("authorization", "Bearer "+BearerToken)
	req.Header.Set("x-csrf-token", c.token.CT0)
	req.Header.Set("cookie", "auth_token="+c.token.AuthToken+"; ct0="+c.token.CT0)
	req.Header.Set("x-twitter-active-user", "yes")
	req.Header.Set("x-twitter-auth-type", "OAuth2Session")
	req.Header.Set("x-twitter-client-language", "en")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", c.opts.UserAgent)
	req.Header.Set("accept", "*/*")
	req.Header.Set("referer", "https://x.com/")
	req.Header.Set("origin", "https://x.com")
}

// get performs one GraphQL GET and classifies the outcome
func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	if c.opts.Budget != nil && !c.opts.Budget.Allow() {
		resetAt := c.opts.Budget.ResetAt()
		c.logger.WarnWithFields("Request budget exhausted", map[string]interface{}{
			"operation": op,
			"reset_at":  resetAt.Format(time.RFC3339),
		})
		return nil, errs.NewRateLimited(op+": client request budget exhausted", resetAt)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	c.setHeaders(req)

	start := c.opts.Now()
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{"operation": op})
		return nil, errs.NewConnectivity(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.NewConnectivity(op+": read body", err)
	}

	c.observeLimits(resp.Header)
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"operation": op,
		"status":    resp.StatusCode,
		"duration":  c.opts.Now().Sub(start),
		"bytes":     len(body),
	})

	if err := classifyResponse(op, resp.StatusCode, resp.Header, body); err != nil {
		return nil, err
	}
	return body, nil
}

// observeLimits feeds x-rate-limit-* headers back into the budget
func (c *Client) observeLimits(h http.Header) {
	o, ok := c.opts.Budget.(observer)
	if !ok {
		return
	}
	remaining, err := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	if err != nil {
		return
	}
	var resetAt time.Time
	if ts, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil && ts > 0 {
		resetAt = time.Unix(ts, 0)
	}
	o.Observe(remaining, resetAt)
}
