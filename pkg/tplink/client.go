// Package tplink talks to the TP-Link smart-plug cloud: a JSON-RPC style
// gateway for login and service discovery, then per-device REST calls
// against the discovered app server.
package tplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cyph1x/PowerContribution/pkg/provider"
)

const (
	defaultGatewayURL = "https://n-wap-gw.tplinkcloud.com"
	appType           = "Kasa_Android"
	appCIDPrefix      = "app:TP-Link_Tapo_Android:"

	// Service route the energy endpoints live behind.
	appServerService = "nbu.iot-app-server.app"
)

// Service identifiers resolved in one batch at login; routes are cached for
// the session lifetime.
var serviceIDs = []string{
	"iot.google.prd",
	"iot.alexa.tapo.link.prd",
	"nbu.iot-security.appdevice",
	"tapocare.app.nbu",
	"nbu.iot-cloud-gateway.app",
	"nbu.iot-app-server.app",
	"basic.oauth-server.app.prd",
	"nbu.iac.prd",
}

// Client is one authenticated cloud session. The bearer token and service
// routes are held for the client's lifetime; nothing is persisted.
type Client struct {
	gatewayURL string
	httpClient *http.Client
	logger     *zap.Logger

	termID      string
	token       string
	serviceURLs map[string]string
	accountID   string
	nickname    string
	regionCode  string
}

// Option overrides Client defaults, mostly for tests.
type Option func(*Client)

// WithGatewayURL points the client at an alternate cloud gateway.
func WithGatewayURL(u string) Option {
	return func(c *Client) { c.gatewayURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient swaps the underlying client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		gatewayURL: defaultGatewayURL,
		logger:     logger,
		termID:     strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type rpcEnvelope struct {
	ErrorCode int             `json:"error_code"`
	Msg       string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

type loginResult struct {
	Token       string `json:"token"`
	Nickname    string `json:"nickname"`
	AccountID   string `json:"accountId"`
	CountryCode string `json:"countryCode"`
}

type serviceURLResult struct {
	ServiceURLs map[string]string `json:"serviceUrls"`
}

// Login authenticates against the cloud gateway and resolves the service
// routes subsequent calls depend on. Like the portal login it is never
// retried internally.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var result loginResult
	err := c.gatewayCall(ctx, "", rpcRequest{
		Method: "login",
		Params: map[string]any{
			"appType":       appType,
			"cloudUserName": username,
			"cloudPassword": password,
			"terminalUUID":  c.termID,
		},
	}, &result)
	if err != nil {
		return err
	}
	if result.Token == "" {
		return &provider.AuthError{Provider: "tplink", Op: "login", Err: fmt.Errorf("login response missing token")}
	}

	c.token = result.Token
	c.accountID = result.AccountID
	c.nickname = result.Nickname
	c.regionCode = result.CountryCode

	var services serviceURLResult
	err = c.gatewayCall(ctx, c.token, rpcRequest{
		Method: "getAppServiceUrl",
		Params: map[string]any{"serviceIds": serviceIDs},
	}, &services)
	if err != nil {
		return err
	}
	if len(services.ServiceURLs) == 0 {
		return &provider.AuthError{Provider: "tplink", Op: "discover services", Err: fmt.Errorf("no service routes returned")}
	}
	c.serviceURLs = services.ServiceURLs

	c.logger.Info("tplink login complete",
		zap.String("account_id", c.accountID),
		zap.String("region", c.regionCode),
		zap.Int("service_routes", len(c.serviceURLs)))
	return nil
}

// AccountNickname returns the display name reported at login.
func (c *Client) AccountNickname() string { return c.nickname }

func (c *Client) gatewayCall(ctx context.Context, token string, body rpcRequest, result any) error {
	op := body.Method
	payload, err := json.Marshal(body)
	if err != nil {
		return &provider.AuthError{Provider: "tplink", Op: op, Err: err}
	}

	endpoint := c.gatewayURL
	if token != "" {
		endpoint += "?token=" + token
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &provider.AuthError{Provider: "tplink", Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &provider.AuthError{Provider: "tplink", Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &provider.AuthError{Provider: "tplink", Op: op, Status: resp.StatusCode}
	}

	var envelope rpcEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &provider.AuthError{Provider: "tplink", Op: op, Err: err}
	}
	if envelope.ErrorCode != 0 {
		return &provider.AuthError{Provider: "tplink", Op: op, Err: fmt.Errorf("error_code %d: %s", envelope.ErrorCode, envelope.Msg)}
	}
	return json.Unmarshal(envelope.Result, result)
}

// Thing is one device registered to the account.
type Thing struct {
	ThingName string `json:"thingName"`
	Nickname  string `json:"nickname"`
	Model     string `json:"deviceModel"`
	Category  string `json:"category"`
	Status    int    `json:"status"`
}

// Things lists the account's devices, keyed by thing name.
func (c *Client) Things(ctx context.Context) (map[string]Thing, error) {
	base, err := c.serviceURL(appServerService)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v2/things", nil)
	if err != nil {
		return nil, err
	}
	c.setDeviceHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.FetchError{Provider: "tplink", Status: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Data []Thing `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &provider.SchemaError{Provider: "tplink", Reason: fmt.Sprintf("undecodable things response: %v", err)}
	}

	things := make(map[string]Thing, len(out.Data))
	for _, thing := range out.Data {
		things[thing.ThingName] = thing
	}
	return things, nil
}

func (c *Client) serviceURL(id string) (string, error) {
	if c.token == "" {
		return "", &provider.AuthError{Provider: "tplink", Op: "service lookup", Err: fmt.Errorf("not logged in")}
	}
	base, ok := c.serviceURLs[id]
	if !ok || base == "" {
		return "", &provider.AuthError{Provider: "tplink", Op: "service lookup", Err: fmt.Errorf("no route for service %q", id)}
	}
	return strings.TrimRight(base, "/"), nil
}

func (c *Client) setDeviceHeaders(req *http.Request) {
	req.Header.Set("app-cid", appCIDPrefix+c.termID)
	req.Header.Set("authorization", "ut|"+c.token)
	req.Header.Set("x-term-id", c.termID)
}
