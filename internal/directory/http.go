package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

const defaultTimeout = 15 * time.Second

// HTTPClient talks to the directory service over its JSON API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type HTTPOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

func NewHTTPClient(baseURL, token string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type matchRequest struct {
	Phones []models.ContactKey `json:"phones"`
}

type friendsResponse struct {
	Friends []models.Friend `json:"friends"`
}

type requestsResponse struct {
	Requests []models.IncomingRequest `json:"requests"`
}

type sendRequestBody struct {
	FriendID string `json:"friend_id"`
}

type sendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

type inviteBody struct {
	Phone models.ContactKey `json:"phone"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPClient) MatchContacts(ctx context.Context, keys []models.ContactKey) ([]models.Friend, error) {
	var resp friendsResponse
	if err := c.do(ctx, http.MethodPost, "/api/directory/match", matchRequest{Phones: keys}, &resp); err != nil {
		return nil, fmt.Errorf("matching contacts: %w", err)
	}
	return resp.Friends, nil
}

func (c *HTTPClient) ListFriends(ctx context.Context) ([]models.Friend, error) {
	var resp friendsResponse
	if err := c.do(ctx, http.MethodGet, "/api/friends", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return resp.Friends, nil
}

func (c *HTTPClient) ListIncomingRequests(ctx context.Context) ([]models.IncomingRequest, error) {
	var resp requestsResponse
	if err := c.do(ctx, http.MethodGet, "/api/friends/requests", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}
	return resp.Requests, nil
}

func (c *HTTPClient) SendRequest(ctx context.Context, userID uuid.UUID) (*models.FriendRequest, error) {
	var resp sendRequestResponse
	if err := c.do(ctx, http.MethodPost, "/api/friends/request", sendRequestBody{FriendID: userID.String()}, &resp); err != nil {
		return nil, fmt.Errorf("sending friend request: %w", err)
	}
	if resp.Request == nil {
		return nil, fmt.Errorf("sending friend request: %w: empty response", ErrNetworkUnavailable)
	}
	return resp.Request, nil
}

func (c *HTTPClient) RespondToRequest(ctx context.Context, requestID uuid.UUID, accept bool) error {
	action := "reject"
	if accept {
		action = "accept"
	}
	path := "/api/friends/" + url.PathEscape(requestID.String()) + "/" + action
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("responding to request: %w", err)
	}
	return nil
}

func (c *HTTPClient) Invite(ctx context.Context, phone models.ContactKey) error {
	if err := c.do(ctx, http.MethodPost, "/api/invites/sms", inviteBody{Phone: phone}, nil); err != nil {
		return fmt.Errorf("inviting %s: %w", phone, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding body: %v", ErrInvalidInput, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrNetworkUnavailable, err)
		}
		return nil
	}

	var apiErr errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
	return statusError(resp.StatusCode, apiErr.Error)
}

func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	var kind error
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = ErrInvalidInput
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrUnauthorized
	case status == http.StatusNotFound:
		kind = ErrNotFound
	case status == http.StatusConflict:
		kind = ErrConflict
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrNetworkUnavailable
	}
	return fmt.Errorf("%w: %s (status %d)", kind, message, status)
}
