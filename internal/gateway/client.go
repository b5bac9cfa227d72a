// Package gateway wraps the external messaging gateway's REST API. The client
// owns request timeout and error classification; retry policy belongs to the
// caller, and the client never touches local storage.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	jsoniter "github.com/json-iterator/go"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/pkg/common"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout is the hard per-call deadline for every gateway request.
const DefaultTimeout = 15 * time.Second

// ConfigSource yields the active gateway configuration. The client snapshots
// it once per call, so a config change never affects an in-flight request.
type ConfigSource interface {
	ActiveConfig(ctx context.Context) (*domain.GatewayConfig, error)
}

// Client is a typed HTTP wrapper around the gateway REST API.
type Client struct {
	source  ConfigSource
	timeout time.Duration
}

func NewClient(source ConfigSource) *Client {
	return &Client{source: source, timeout: DefaultTimeout}
}

// SetTimeout overrides the per-call deadline (used in tests).
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// ConnectionState is the normalized connection report for one instance.
type ConnectionState struct {
	State         string `json:"state"`
	QrCode        string `json:"qr_code"`
	ProfileName   string `json:"profile_name"`
	PhoneNumber   string `json:"phone_number"`
	ProfilePicURL string `json:"profile_picture_url"`
}

// Request performs one gateway call and returns the raw response body.
func (c *Client) Request(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	cfg, err := c.source.ActiveConfig(ctx)
	if err != nil {
		return nil, &Error{Kind: KindNotConfigured, Op: endpoint, Err: err}
	}
	if !cfg.Configured() {
		return nil, &Error{Kind: KindNotConfigured, Op: endpoint}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := strings.TrimRight(cfg.ServerURL, "/") + endpoint
	var df *dataflow.DataFlow
	switch method {
	case http.MethodGet:
		df = gout.GET(url)
	case http.MethodPost:
		df = gout.POST(url)
	case http.MethodPut:
		df = gout.PUT(url)
	case http.MethodDelete:
		df = gout.DELETE(url)
	default:
		return nil, &Error{Kind: KindNetwork, Op: endpoint, Err: fmt.Errorf("unsupported method %s", method)}
	}

	df = df.WithContext(ctx).SetHeader(gout.H{"apikey": cfg.ApiKey})
	if body != nil {
		df = df.SetJSON(body)
	}

	var respBody []byte
	var code int
	if err := df.BindBody(&respBody).Code(&code).Do(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Op: endpoint, Err: err}
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, &Error{Kind: KindTimeout, Op: endpoint, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Op: endpoint, Err: err}
	}

	if code == http.StatusNotFound {
		return nil, &Error{Kind: KindNotFound, Op: endpoint, Status: code, Body: string(respBody)}
	}
	if code < 200 || code >= 300 {
		return nil, &Error{Kind: KindHTTP, Op: endpoint, Status: code, Body: string(respBody)}
	}
	return respBody, nil
}

func decodeMap(raw []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// GetConnectionState polls the gateway for the current state of one instance.
func (c *Client) GetConnectionState(ctx context.Context, name string) (*ConnectionState, error) {
	endpoint := "/instance/connectionState/" + name
	raw, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Instance struct {
			State         string `json:"state"`
			ProfileName   string `json:"profileName"`
			OwnerJid      string `json:"ownerJid"`
			ProfilePicURL string `json:"profilePicUrl"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindCorrupt, Op: endpoint, Err: err}
	}

	state := payload.Instance.State
	if state == "" {
		state = payload.State
	}
	return &ConnectionState{
		State:         state,
		QrCode:        ExtractQr(decodeMap(raw)),
		ProfileName:   payload.Instance.ProfileName,
		PhoneNumber:   jidToNumber(payload.Instance.OwnerJid),
		ProfilePicURL: payload.Instance.ProfilePicURL,
	}, nil
}

// Connect asks the gateway to start the pairing handshake for an instance and
// returns whatever QR payload the gateway already produced.
func (c *Client) Connect(ctx context.Context, name string) (*ConnectionState, error) {
	endpoint := "/instance/connect/" + name
	raw, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindCorrupt, Op: endpoint, Err: err}
	}

	return &ConnectionState{
		State:  payload.State,
		QrCode: ExtractQr(decodeMap(raw)),
	}, nil
}

// CreateInstance registers a new instance on the gateway.
func (c *Client) CreateInstance(ctx context.Context, name string) error {
	_, err := c.Request(ctx, http.MethodPost, "/instance/create", map[string]interface{}{
		"instanceName": name,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	})
	return err
}

// Logout closes the instance session on the gateway.
func (c *Client) Logout(ctx context.Context, name string) error {
	_, err := c.Request(ctx, http.MethodDelete, "/instance/logout/"+name, nil)
	return err
}

// DeleteInstance removes the instance from the gateway. A 404 answer comes
// back as KindNotFound so callers can tolerate it.
func (c *Client) DeleteInstance(ctx context.Context, name string) error {
	_, err := c.Request(ctx, http.MethodDelete, "/instance/delete/"+name, nil)
	return err
}

// SendText sends a plain text message through the instance.
func (c *Client) SendText(ctx context.Context, name, number, text string) error {
	_, err := c.Request(ctx, http.MethodPost, "/message/sendText/"+name, map[string]interface{}{
		"number": common.DigitsOnly(number),
		"text":   text,
	})
	return err
}

// SendMedia sends a media message referenced by URL through the instance.
func (c *Client) SendMedia(ctx context.Context, name, number, mediaURL, kind string) error {
	_, err := c.Request(ctx, http.MethodPost, "/message/sendMedia/"+name, map[string]interface{}{
		"number":    common.DigitsOnly(number),
		"mediatype": kind,
		"media":     mediaURL,
	})
	return err
}

// SetWebhook configures the delivery-callback URL for an instance.
func (c *Client) SetWebhook(ctx context.Context, name, url string, events []string) error {
	_, err := c.Request(ctx, http.MethodPost, "/webhook/set/"+name, map[string]interface{}{
		"url":    url,
		"events": events,
	})
	return err
}

// jidToNumber reduces a gateway JID ("5511999999@s.whatsapp.net") to digits.
func jidToNumber(jid string) string {
	if jid == "" {
		return ""
	}
	if idx := strings.Index(jid, "@"); idx >= 0 {
		jid = jid[:idx]
	}
	return common.DigitsOnly(jid)
}
