package emt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL       = "https://openbus.emtmadrid.es:9443/emt-proxy-server/last"
	DefaultTimeout       = 10 * time.Second
	DefaultMaxSize       = 4 << 20 // 4 MB
	DefaultRouteLinesTTL = 6 * time.Hour
)

var ErrStatus = errors.New("unexpected status")

// Client for the EMT Madrid open data API.
type Client struct {
	BaseURL  string
	ClientID string
	PassKey  string

	Timeout       time.Duration
	MaxSize       int
	RouteLinesTTL time.Duration
	HTTPClient    *http.Client
	TimeNow       func() time.Time

	cache *memoryCache
}

func NewClient(baseURL string, clientID string, passKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		ClientID:      clientID,
		PassKey:       passKey,
		Timeout:       DefaultTimeout,
		MaxSize:       DefaultMaxSize,
		RouteLinesTTL: DefaultRouteLinesTTL,
		HTTPClient:    &http.Client{},
		TimeNow:       time.Now,
		cache:         newMemoryCache(),
	}
}

// Stops within radius metres of lat,lon, in API order.
func (c *Client) StopsNearLocation(ctx context.Context, lat float64, lon float64, radius int) ([]LocationStop, error) {
	var resp struct {
		response
		Stops OneOrMany[LocationStop] `json:"stop"`
	}
	err := c.call(ctx, "geo/GetStopsFromXY.php", url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
		"Radius":    {strconv.Itoa(radius)},
	}, false, &resp.response, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Stops, nil
}

// Buses approaching a stop.
func (c *Client) IncomingBuses(ctx context.Context, stopID string) ([]Arrival, error) {
	var resp struct {
		response
		Arrives OneOrMany[Arrival] `json:"arrives"`
	}
	err := c.call(ctx, "geo/GetArriveStop.php", url.Values{
		"idStop": {stopID},
	}, false, &resp.response, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Arrives, nil
}

// Stops with IDs in [from, to).
func (c *Client) CatalogPage(ctx context.Context, from int, to int) ([]Node, error) {
	if to <= from {
		return []Node{}, nil
	}

	ids := make([]string, 0, to-from)
	for id := from; id < to; id++ {
		ids = append(ids, strconv.Itoa(id))
	}

	var resp struct {
		response
		Nodes OneOrMany[Node] `json:"resultValues"`
	}
	err := c.call(ctx, "bus/GetNodesLines.php", url.Values{
		"Nodes": {strings.Join(ids, "|")},
	}, false, &resp.response, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

// Stops along a line in the given direction ("1" or "2"), in route
// order. Responses are cached for RouteLinesTTL.
func (c *Client) StopsOfLine(ctx context.Context, lineCode string, direction string) ([]LineStop, error) {
	var resp struct {
		response
		Stops OneOrMany[LineStop] `json:"resultValues"`
	}
	err := c.call(ctx, "bus/GetRouteLines.php", url.Values{
		"SelectDate": {c.TimeNow().Format("02/01/2006")},
		"Lines":      {lineCode},
	}, true, &resp.response, &resp)
	if err != nil {
		return nil, err
	}

	stops := []LineStop{}
	for _, s := range resp.Stops {
		if s.Direction() == direction {
			stops = append(stops, s)
		}
	}
	return stops, nil
}

// Responses are only cached once they decode and carry a good
// envelope.
func (c *Client) call(
	ctx context.Context,
	endpoint string,
	form url.Values,
	cache bool,
	envelope *response,
	v interface{},
) error {
	key := cacheKey(endpoint, form)
	if cache {
		if body, ok := c.cache.get(key, c.TimeNow()); ok {
			err := json.Unmarshal(body, v)
			if err == nil && envelope.ok() {
				return nil
			}
			c.cache.evict(key)
		}
	}

	body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}

	if !envelope.ok() {
		return fmt.Errorf("%s: error %s: %s", endpoint, envelope.ErrorCode, envelope.Description)
	}

	if cache {
		c.cache.put(key, body, c.TimeNow().Add(c.RouteLinesTTL))
	}

	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	authed := url.Values{}
	for k, v := range form {
		authed[k] = v
	}
	authed.Set("idClient", c.ClientID)
	authed.Set("passKey", c.PassKey)

	body, err := HTTPPost(ctx, c.HTTPClient, c.BaseURL+"/"+endpoint, authed, PostOptions{
		Timeout: c.Timeout,
		MaxSize: c.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}

	return body, nil
}

type PostOptions struct {
	MaxSize int
	Timeout time.Duration
}

// Posts a form. Doesn't cache.
func HTTPPost(ctx context.Context, client *http.Client, target string, form url.Values, options PostOptions) ([]byte, error) {
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, int64(options.MaxSize))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return body, nil
}
