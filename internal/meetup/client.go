// Package meetup talks to the Meetup GraphQL API.
//
// The HTTP client owns a connection-level retry policy (backoff on 5xx);
// that is orthogonal to the application-level attempt loop, which only
// retries the well-known transient rejection code.
package meetup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"rsvpbot/pkg/logx"
)

type Config struct {
	Endpoint    string
	AccessToken string

	// RSVPQueryHash overrides DefaultRSVPQueryHash when set.
	RSVPQueryHash string

	// Transport retry knobs; zero values take the defaults below.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

type Client struct {
	endpoint string
	token    string
	rsvpHash string
	http     *http.Client
	log      logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("meetup: endpoint is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("meetup: access token is required")
	}
	hash := cfg.RSVPQueryHash
	if hash == "" {
		hash = DefaultRSVPQueryHash
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = cfg.RetryMax
	if rc.RetryMax <= 0 {
		rc.RetryMax = 3
	}
	rc.RetryWaitMin = cfg.RetryWaitMin
	if rc.RetryWaitMin <= 0 {
		rc.RetryWaitMin = 1 * time.Second
	}
	rc.RetryWaitMax = cfg.RetryWaitMax
	if rc.RetryWaitMax <= 0 {
		rc.RetryWaitMax = 8 * time.Second
	}
	rc.CheckRetry = retryOnServerError

	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.AccessToken,
		rsvpHash: hash,
		http:     rc.StandardClient(),
		log:      log,
	}, nil
}

// retryOnServerError retries transport failures and the gateway-style 5xx
// statuses, nothing else. 4xx responses surface immediately.
func retryOnServerError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// ---- wire shapes ----

type graphQLRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type eventsResponse struct {
	Data struct {
		GroupByURLName *struct {
			Events struct {
				Edges []struct {
					Node struct {
						ID       string `json:"id"`
						Title    string `json:"title"`
						DateTime string `json:"dateTime"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"events"`
		} `json:"groupByUrlname"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type rsvpResponse struct {
	Data struct {
		RSVP struct {
			RSVP *struct {
				Status string `json:"status"`
			} `json:"rsvp"`
			Errors []struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"rsvp"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// UpcomingEvents fetches the group's next events by URL name.
func (c *Client) UpcomingEvents(ctx context.Context, urlname string) ([]Event, error) {
	req := graphQLRequest{
		Query:     upcomingEventsQuery,
		Variables: map[string]any{"urlname": urlname},
	}
	var out eventsResponse
	if err := c.post(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("meetup: events query: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("meetup: events query rejected: %s", out.Errors[0].Message)
	}
	if out.Data.GroupByURLName == nil {
		return nil, fmt.Errorf("meetup: unknown group %q", urlname)
	}

	edges := out.Data.GroupByURLName.Events.Edges
	events := make([]Event, 0, len(edges))
	for _, e := range edges {
		at, err := ParseEventTime(e.Node.DateTime)
		if err != nil {
			return nil, fmt.Errorf("meetup: event %s: %w", e.Node.ID, err)
		}
		events = append(events, Event{ID: e.Node.ID, Title: e.Node.Title, StartsAt: at})
	}
	c.log.Debug("retrieved upcoming events",
		logx.String("group", urlname), logx.Int("count", len(events)))
	return events, nil
}

// RSVP issues the persisted rsvpToEvent mutation for eventID. venueID is
// only sent when non-empty; the API applies no venue restriction otherwise.
func (c *Client) RSVP(ctx context.Context, eventID, venueID string) (AttemptResult, error) {
	input := map[string]any{
		"eventId":            eventID,
		"response":           "YES",
		"proEmailShareOptin": false,
		"guestsCount":        0,
		"eventPromotionId":   "0",
	}
	if venueID != "" {
		input["venueId"] = venueID
	}
	req := graphQLRequest{
		OperationName: "rsvpToEvent",
		Variables:     map[string]any{"input": input},
		Extensions: map[string]any{
			"persistedQuery": map[string]any{"version": 1, "sha256Hash": c.rsvpHash},
		},
	}
	var out rsvpResponse
	if err := c.post(ctx, req, &out); err != nil {
		return AttemptResult{}, fmt.Errorf("meetup: rsvp: %w", err)
	}
	if len(out.Errors) > 0 {
		return AttemptResult{}, fmt.Errorf("meetup: rsvp rejected: %s", out.Errors[0].Message)
	}

	res := AttemptResult{}
	if out.Data.RSVP.RSVP != nil {
		res.Status = out.Data.RSVP.RSVP.Status
	}
	for _, e := range out.Data.RSVP.Errors {
		res.Codes = append(res.Codes, e.Code)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, payload graphQLRequest, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
