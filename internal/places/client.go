// Package places wraps the Google Places (New) nearby-search endpoint. The
// client is a metered pass-through: it counts every outbound call for quota
// accounting and classifies failures, but never caches or deduplicates.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Field masks control Places (New) billing: each call is charged by the most
// expensive field tier it requests.
const (
	basicFields      = "places.id,places.displayName,places.formattedAddress,places.location,places.types,places.primaryType"
	contactFields    = "places.nationalPhoneNumber,places.websiteUri"
	atmosphereFields = "places.rating,places.userRatingCount,places.priceLevel"

	// nextPageToken must be requested explicitly or the provider omits it.
	nearbyFieldMask = basicFields + "," + contactFields + "," + atmosphereFields + ",nextPageToken"

	// maxResultsPerCall is the provider's per-request ceiling.
	maxResultsPerCall = 20
)

// ProviderError describes a failed provider call. Retryable errors are
// transport or 5xx failures; 4xx responses are terminal and must not be
// retried.
type ProviderError struct {
	StatusCode int
	Retryable  bool
	Message    string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("places provider: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("places provider: %s", e.Message)
}

// GroupQuery describes one nearby-search call for a single type group.
type GroupQuery struct {
	Lat       float64
	Lng       float64
	Radius    int
	Types     []string
	PageToken string
}

// GroupResult carries the raw places returned for one call plus the token for
// the next page, when the provider offers one.
type GroupResult struct {
	Places        []Place
	NextPageToken string
}

// Place is the subset of the provider's place resource the service consumes.
// Raw retains the full response object for storage.
type Place struct {
	ID                  string         `json:"id"`
	DisplayName         *LocalizedText `json:"displayName,omitempty"`
	FormattedAddress    string         `json:"formattedAddress,omitempty"`
	Location            *LatLng        `json:"location,omitempty"`
	Types               []string       `json:"types,omitempty"`
	PrimaryType         string         `json:"primaryType,omitempty"`
	NationalPhoneNumber string         `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string         `json:"websiteUri,omitempty"`
	Rating              *float64       `json:"rating,omitempty"`
	UserRatingCount     *int           `json:"userRatingCount,omitempty"`
	PriceLevel          string         `json:"priceLevel,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// LocalizedText is the provider's localized string wrapper.
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// LatLng is a geographic point.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fetcher is the provider contract the orchestrator depends on.
type Fetcher interface {
	FetchTypeGroup(ctx context.Context, q GroupQuery) (GroupResult, error)
	CallsMade() int64
}

// Client calls the Places nearby-search endpoint with API-key auth and an
// optional outbound rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	calls      atomic.Int64
}

// NewClient builds a provider client. A nil httpClient gets a 30s-timeout
// default; a nil limiter disables outbound throttling.
func NewClient(httpClient *http.Client, baseURL, apiKey string, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
	}
}

// CallsMade reports how many HTTP calls this client has issued, including
// in-call retries. The orchestrator uses it to audit quota consumption.
func (c *Client) CallsMade() int64 {
	return c.calls.Load()
}

type nearbyRequest struct {
	LocationRestriction locationRestriction `json:"locationRestriction"`
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	RankPreference      string              `json:"rankPreference"`
	PageToken           string              `json:"pageToken,omitempty"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type nearbyResponse struct {
	Places        []json.RawMessage `json:"places"`
	NextPageToken string            `json:"nextPageToken"`
}

// FetchTypeGroup issues one nearby-search call for a single type group,
// retrying once on a transport or 5xx failure. Terminal (4xx) failures are
// returned as non-retryable ProviderErrors.
func (c *Client) FetchTypeGroup(ctx context.Context, q GroupQuery) (GroupResult, error) {
	types := q.Types
	if len(types) > maxTypesPerCall {
		types = types[:maxTypesPerCall]
	}

	body := nearbyRequest{
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: LatLng{Latitude: q.Lat, Longitude: q.Lng},
				Radius: float64(q.Radius),
			},
		},
		IncludedTypes:  types,
		MaxResultCount: maxResultsPerCall,
		RankPreference: "DISTANCE",
		PageToken:      q.PageToken,
	}

	result, err := c.post(ctx, body)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && perr.Retryable {
			result, err = c.post(ctx, body)
		}
	}
	if err != nil {
		return GroupResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, body nearbyRequest) (GroupResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return GroupResult{}, fmt.Errorf("wait for provider rate limit: %w", err)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return GroupResult{}, fmt.Errorf("marshal nearby request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchNearby", bytes.NewReader(payload))
	if err != nil {
		return GroupResult{}, fmt.Errorf("create nearby request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", nearbyFieldMask)

	c.calls.Add(1)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GroupResult{}, &ProviderError{Retryable: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		message := apiErr.Error.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return GroupResult{}, &ProviderError{
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
			Message:    message,
		}
	}

	var decoded nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return GroupResult{}, fmt.Errorf("decode nearby response: %w", err)
	}

	result := GroupResult{NextPageToken: decoded.NextPageToken}
	for _, raw := range decoded.Places {
		var place Place
		if err := json.Unmarshal(raw, &place); err != nil {
			return GroupResult{}, fmt.Errorf("decode place: %w", err)
		}
		place.Raw = raw
		result.Places = append(result.Places, place)
	}
	return result, nil
}

var _ Fetcher = (*Client)(nil)
