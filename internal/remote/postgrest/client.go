// Package postgrest talks to a hosted backend exposing PostgREST row
// endpoints under /rest/v1 and GoTrue auth endpoints under /auth/v1.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gurkanbulca/taskboard/internal/remote"
)

const (
	restPath = "/rest/v1/"
	authPath = "/auth/v1/"
)

// Client is a remote.Store backed by PostgREST. Requests carry the
// signed-in user's access token when Auth holds a session and the anon
// key otherwise.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        *zap.Logger
	auth       *Auth
}

var _ remote.Store = (*Client)(nil)

func New(baseURL, anonKey string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
	c.auth = newAuth(c)
	return c
}

// Auth returns the session owner sharing this client's transport.
func (c *Client) Auth() *Auth {
	return c.auth
}

func (c *Client) Select(ctx context.Context, q remote.Query, dest any) error {
	params, err := queryParams(q)
	if err != nil {
		return err
	}
	return c.rest(ctx, http.MethodGet, q.Collection, params, nil, "", dest)
}

func (c *Client) Insert(ctx context.Context, collection string, rows []remote.Record, dest any) error {
	if len(rows) == 0 {
		return nil
	}
	return c.rest(ctx, http.MethodPost, collection, url.Values{}, rows, returnPref(dest), dest)
}

func (c *Client) Upsert(ctx context.Context, collection string, rows []remote.Record, onConflict string, dest any) error {
	if len(rows) == 0 {
		return nil
	}
	params := url.Values{}
	params.Set("on_conflict", onConflict)
	return c.rest(ctx, http.MethodPost, collection, params, rows, "resolution=ignore-duplicates,"+returnPref(dest), dest)
}

func (c *Client) Update(ctx context.Context, collection string, patch remote.Record, filters []remote.Filter, dest any) error {
	if len(filters) == 0 {
		return fmt.Errorf("update %s: at least one filter is required", collection)
	}
	params := url.Values{}
	if err := addFilters(params, filters); err != nil {
		return err
	}
	return c.rest(ctx, http.MethodPatch, collection, params, patch, returnPref(dest), dest)
}

func (c *Client) Delete(ctx context.Context, collection string, filters []remote.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete %s: at least one filter is required", collection)
	}
	params := url.Values{}
	if err := addFilters(params, filters); err != nil {
		return err
	}
	return c.rest(ctx, http.MethodDelete, collection, params, nil, "", nil)
}

func (c *Client) rest(ctx context.Context, method, collection string, params url.Values, body any, prefer string, dest any) error {
	bearer, err := c.auth.bearer(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	if prefer != "" {
		header.Set("Prefer", prefer)
	}

	if err := c.do(ctx, method, restPath+collection, params, body, header, bearer, dest); err != nil {
		return fmt.Errorf("%s %s: %w", strings.ToLower(method), collection, err)
	}
	return nil
}

// do sends one request and decodes a JSON response into dest.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, header http.Header, bearer string, dest any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("remote request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorEnvelope covers the PostgREST body and both GoTrue error shapes.
type errorEnvelope struct {
	Code             json.RawMessage `json:"code"`
	Message          string          `json:"message"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)

	var code string
	if len(env.Code) > 0 {
		var s string
		if json.Unmarshal(env.Code, &s) == nil {
			code = s
		}
	}

	remoteErr := &remote.Error{
		Message: firstNonEmpty(env.Message, env.Msg, env.ErrorDescription, env.Error),
		Code:    firstNonEmpty(env.ErrorCode, code, env.Error),
		Details: env.Details,
		Hint:    env.Hint,
		Status:  resp.StatusCode,
	}
	if remoteErr.Code == "" {
		remoteErr.Code = strconv.Itoa(resp.StatusCode)
	}
	if remoteErr.Message == "" {
		remoteErr.Message = strings.TrimSpace(string(raw))
	}
	if remoteErr.Message == "" {
		remoteErr.Message = http.StatusText(resp.StatusCode)
	}
	return remoteErr
}

func queryParams(q remote.Query) (url.Values, error) {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	if err := addFilters(params, q.Filters); err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params, nil
}

func addFilters(params url.Values, filters []remote.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case remote.OpEq, remote.OpNeq:
			params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
		case remote.OpILike:
			params.Add(f.Column, "ilike.*"+formatValue(f.Value)+"*")
		case remote.OpIsNull:
			params.Add(f.Column, "is.null")
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "null"
		}
		return formatValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(v)
}

func returnPref(dest any) string {
	if dest == nil {
		return "return=minimal"
	}
	return "return=representation"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
