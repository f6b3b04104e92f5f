package admission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/config"
	"github.com/livekit/tutor-room/pkg/rtc/types"
)

const (
	DefaultHTTPTimeout = 10 * time.Second

	maxErrorBody = 4096
)

// Client talks to the admission API. Every call is a single request; retries belong to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(conf config.AdmissionConfig, log logger.Logger) *Client {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		baseURL: strings.TrimRight(conf.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithValues("admission", conf.URL),
	}
}

// FetchAccessToken requests a credential for identity to join roomID.
func (c *Client) FetchAccessToken(
	ctx context.Context,
	roomID string,
	identity string,
	displayName string,
	metadata types.ParticipantMetadata,
) (types.Credential, error) {
	md, err := json.Marshal(metadata)
	if err != nil {
		return types.Credential{}, fmt.Errorf("failed to marshal participant metadata: %w", err)
	}

	var res TokenResponse
	err = c.do(ctx, http.MethodPost, "/tokens", &TokenRequest{
		RoomID:      roomID,
		Identity:    identity,
		DisplayName: displayName,
		Metadata:    string(md),
	}, &res)
	if err != nil {
		return types.Credential{}, err
	}
	if res.Credential == "" {
		return types.Credential{}, fmt.Errorf("%w: no credential in token response", types.ErrMalformedResponse)
	}

	c.logger.Debugw("received access token", "room", roomID, "identity", identity)
	return types.Credential{
		Token:     res.Credential,
		ServerURL: res.URL,
		RoomID:    roomID,
		Identity:  identity,
	}, nil
}

func (c *Client) CreateRoom(ctx context.Context, roomID string, maxParticipants int, metadata types.RoomMetadata) error {
	md, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal room metadata: %w", err)
	}
	var res CreateRoomResponse
	return c.do(ctx, http.MethodPost, "/rooms", &CreateRoomRequest{
		RoomID:          roomID,
		MaxParticipants: maxParticipants,
		Metadata:        string(md),
	}, &res)
}

func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	var res StatusResponse
	return c.do(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, &res)
}

// CheckCapacity reports whether one more participant may join roomID.
func (c *Client) CheckCapacity(ctx context.Context, roomID string) (bool, error) {
	var res CapacityResponse
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/capacity", nil, &res); err != nil {
		return false, err
	}
	return res.CanJoin, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	var res ListRoomsResponse
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &res); err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var res HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", types.ErrAdmissionUnreachable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", types.ErrAdmissionUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := errorReason(resp)
		// timeouts and throttling are transient, like server errors
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s %s returned %d: %s", types.ErrAdmissionUnreachable, method, path, resp.StatusCode, reason)
		}
		return fmt.Errorf("%w: %s %s returned %d: %s", types.ErrAdmissionDenied, method, path, resp.StatusCode, reason)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	return nil
}

func errorReason(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var status StatusResponse
	if err := json.Unmarshal(data, &status); err == nil && status.Error != "" {
		return status.Error
	}
	return strings.TrimSpace(string(data))
}
