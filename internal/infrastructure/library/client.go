package library

import (
	"bytes"
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

	"go.uber.org/zap"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/infrastructure/config"
)

const (
	pathAreas        = "/eastLibReservation/area"
	pathPeriods      = "/eastLibReservation/api/period"
	pathSeats        = "/eastLibReservation/seat/getAreaSeats"
	pathReserve      = "/eastLibReservation/seatReservation/reservation"
	pathReservations = "/eastLibReservation/reservation/myReservationList"
	pathSignIn       = "/eastLibReservation/seatReservation/commonSignIn"
	pathSignOut      = "/eastLibReservation/seatReservation/signOut"

	reservationPageSize = 50
	maxReservationPages = 20
)

// Client talks to the library reservation service. It holds no per-user
// state; Session binds a token for the calls made on a user's behalf.
type Client struct {
	hc  *http.Client
	cfg config.LibraryConfig
	log *zap.Logger
	now func() time.Time
}

func New(cfg config.LibraryConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:  &http.Client{Timeout: timeout},
		cfg: cfg,
		log: log.Named("library"),
		now: time.Now,
	}
}

func (c *Client) Session(token string) reservation.Session {
	return &Session{c: c, token: token}
}

// Ping checks the service answers at all; it needs no credential.
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, pathAreas, "", url.Values{"floorId": {c.cfg.FloorID}}, nil)
	if err != nil {
		return fmt.Errorf("%w: ping: %v", reservation.ErrTransport, err)
	}
	if status >= 500 {
		return fmt.Errorf("%w: ping: status %d", reservation.ErrTransport, status)
	}
	return nil
}

type resultStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	ResultStatus *resultStatus  `json:"resultStatus"`
	ResultValue  json.RawMessage `json:"resultValue"`
}

// errNoStatus marks a 2xx response whose envelope carries no resultStatus.
var errNoStatus = errors.New("response has no resultStatus")

// call performs one request and decodes resultValue into out.
func (c *Client) call(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	env, err := c.fetch(ctx, method, path, token, query, body)
	if err != nil && !errors.Is(err, errNoStatus) {
		return err
	}
	if out == nil || len(env.ResultValue) == 0 || string(env.ResultValue) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.ResultValue, out); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", reservation.ErrTransport, path, err)
	}
	return nil
}

// fetch performs one request and decodes its envelope. A non-zero status code
// comes back as *reservation.RemoteError; a missing status as errNoStatus
// alongside the decoded envelope.
func (c *Client) fetch(ctx context.Context, method, path, token string, query url.Values, body any) (envelope, error) {
	var env envelope
	status, raw, err := c.do(ctx, method, path, token, query, body)
	if err != nil {
		return env, fmt.Errorf("%w: %s %s: %v", reservation.ErrTransport, method, path, err)
	}
	if status < 200 || status > 299 {
		return env, fmt.Errorf("%w: %s %s: status %d", reservation.ErrTransport, method, path, status)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: decode %s: %v", reservation.ErrTransport, path, err)
	}
	if env.ResultStatus == nil {
		return env, fmt.Errorf("%s %s: %w", method, path, errNoStatus)
	}
	if env.ResultStatus.Code != 0 {
		return env, &reservation.RemoteError{Code: env.ResultStatus.Code, Message: env.ResultStatus.Message}
	}
	return env, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("user-agent", "seatsched/1.0")
	req.Header.Set("clientId", c.cfg.ClientID)
	req.Header.Set("source", c.cfg.Source)
	req.Header.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if token != "" {
		req.Header.Set("token", token)
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	start := c.now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", c.now().Sub(start)),
	)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

// flexString accepts either a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// idValue sends numeric identifiers as JSON numbers, anything else as a string.
func idValue(s string) any {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return json.Number(s)
	}
	return s
}

func trimmed(f flexString) string { return strings.TrimSpace(string(f)) }
