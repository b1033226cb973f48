package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/fusion-gateway/internal/models"
)

// CharacterFetcher returns the upstream character list. A failure is fatal
// to the fusion request.
type CharacterFetcher interface {
	FetchCharacters(ctx context.Context) ([]models.RawCharacter, error)
}

type SWAPIClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewSWAPIClient(baseURL string, timeout time.Duration) (*SWAPIClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid SWAPI URL %q", baseURL)
	}
	return &SWAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type peopleResponse struct {
	Results []models.RawCharacter `json:"results"`
}

// FetchCharacters reads the first page of GET {baseURL}/people. Every error
// wraps ErrUpstreamUnavailable; transport failures also wrap
// ErrUpstreamUnreachable.
func (c *SWAPIClient) FetchCharacters(ctx context.Context) ([]models.RawCharacter, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body peopleResponse
	if err := getJSON(reqCtx, c.client, upstreamSWAPI, c.baseURL+"/people", &body); err != nil {
		if isConnectionError(err) {
			return nil, fmt.Errorf("fetch characters: %w: %w: %w", ErrUpstreamUnavailable, ErrUpstreamUnreachable, err)
		}
		return nil, fmt.Errorf("fetch characters: %w: %w", ErrUpstreamUnavailable, err)
	}
	return body.Results, nil
}
