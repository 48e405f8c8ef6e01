// Package platform is the HTTP client for the healthcare booking
// platform's REST API. Catalog reads are public; appointment submission
// carries a bearer credential supplied by the caller.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clinicbook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	// ErrMissingToken is returned when an authenticated call is attempted
	// without a credential. The request is never sent.
	ErrMissingToken = errors.New("platform: missing bearer token")

	// ErrUnexpectedPayload covers envelopes with success=false on public
	// reads, where the platform gives no usable message.
	ErrUnexpectedPayload = errors.New("platform: unexpected response payload")
)

// Client talks to the booking platform. Catalog GETs go through an
// optional Redis read-through cache; all requests pass a shared limiter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables Redis caching for catalog reads.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.redis = client
		c.cacheTTL = ttl
	}
}

// WithRateLimit bounds outbound request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger attaches a logger; silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a platform client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the platform's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ListClinics fetches all tenants. Public, unauthenticated.
func (c *Client) ListClinics(ctx context.Context) ([]models.Clinic, error) {
	const cacheKey = "catalog:clinics"

	var wires []clinicWire
	if c.readCache(ctx, cacheKey, &wires) {
		return clinicsFromWire(wires), nil
	}

	endpoint := c.baseURL + "/tenants/all"
	if err := c.doGet(ctx, endpoint, &wires); err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}

	c.writeCache(ctx, cacheKey, wires)
	return clinicsFromWire(wires), nil
}

// ListDoctors fetches the doctors of one clinic. Public, unauthenticated.
func (c *Client) ListDoctors(ctx context.Context, clinicID string) ([]models.Doctor, error) {
	if clinicID == "" {
		return nil, fmt.Errorf("list doctors: empty clinic id")
	}
	cacheKey := "catalog:doctors:" + clinicID

	var wires []doctorWire
	if c.readCache(ctx, cacheKey, &wires) {
		return doctorsFromWire(wires), nil
	}

	endpoint := c.baseURL + "/tenants/doctors/public/" + url.PathEscape(clinicID)
	if err := c.doGet(ctx, endpoint, &wires); err != nil {
		return nil, fmt.Errorf("list doctors for %s: %w", clinicID, err)
	}

	c.writeCache(ctx, cacheKey, wires)
	return doctorsFromWire(wires), nil
}

// CreateAppointment submits a booking draft as one atomic request.
// A rejected booking is not a transport error: the result carries
// success=false and the server's message verbatim.
func (c *Client) CreateAppointment(ctx context.Context, req models.AppointmentRequest, token string) (*models.AppointmentResult, error) {
	token = CleanToken(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("create appointment: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.send(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("create appointment: http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("create appointment: decode response: %w", err)
	}

	return &models.AppointmentResult{Success: env.Success, Message: env.Message}, nil
}

// RefreshClinics bypasses and repopulates the clinic cache. Used by the
// catalog worker.
func (c *Client) RefreshClinics(ctx context.Context) ([]models.Clinic, error) {
	c.dropCache(ctx, "catalog:clinics")
	return c.ListClinics(ctx)
}

// CleanToken trims whitespace and the surrounding quote characters some
// credential stores leave around the raw token.
func CleanToken(token string) string {
	return strings.Trim(strings.TrimSpace(token), `"'`)
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return fmt.Errorf("%w: %s", ErrUnexpectedPayload, env.Message)
		}
		return ErrUnexpectedPayload
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", req.URL.Path).Msg("platform request failed")
		return nil, err
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("platform request")
	return resp, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}
