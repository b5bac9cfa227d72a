package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadesk/wadesk/internal/domain"
)

type staticConfig struct {
	cfg *domain.GatewayConfig
}

func (s staticConfig) ActiveConfig(context.Context) (*domain.GatewayConfig, error) {
	return s.cfg, nil
}

func newTestClient(serverURL string) *Client {
	return NewClient(staticConfig{cfg: &domain.GatewayConfig{
		ServerURL: serverURL,
		ApiKey:    "secret-key",
	}})
}

func TestRequestNotConfigured(t *testing.T) {
	c := NewClient(staticConfig{cfg: &domain.GatewayConfig{}})

	_, err := c.Request(context.Background(), http.MethodGet, "/instance/connectionState/acme", nil)
	require.Error(t, err)
	assert.Equal(t, KindNotConfigured, KindOf(err))
}

func TestRequestSendsApiKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	body, err := c.Request(context.Background(), http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestRequestClassifiesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such instance"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Request(context.Background(), http.MethodGet, "/instance/connectionState/ghost", nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRequestClassifiesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Request(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	assert.Equal(t, KindHTTP, KindOf(err))

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusInternalServerError, ge.Status)
}

func TestRequestClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetTimeout(50 * time.Millisecond)

	_, err := c.Request(context.Background(), http.MethodGet, "/slow", nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestRequestClassifiesNetworkError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	c.SetTimeout(time.Second)

	_, err := c.Request(context.Background(), http.MethodGet, "/x", nil)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestGetConnectionStateDecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connectionState/acme", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"instance": {
				"state": "open",
				"profileName": "Acme Support",
				"ownerJid": "5511999990000@s.whatsapp.net",
				"profilePicUrl": "https://pps.example.com/acme.jpg"
			}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	st, err := c.GetConnectionState(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "open", st.State)
	assert.Equal(t, "Acme Support", st.ProfileName)
	assert.Equal(t, "5511999990000", st.PhoneNumber)
	assert.Equal(t, "https://pps.example.com/acme.jpg", st.ProfilePicURL)
}

func TestGetConnectionStateCorruptPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetConnectionState(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, KindCorrupt, KindOf(err))
}

func TestConnectExtractsQrAcrossFieldNames(t *testing.T) {
	payloads := []string{
		`{"base64": "AAA"}`,
		`{"qrcode": "AAA"}`,
		`{"qrCode": {"base64": "AAA"}}`,
		`{"instance": {"qrcode": "AAA"}}`,
	}
	for _, payload := range payloads {
		body := payload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}))

		c := newTestClient(srv.URL)
		st, err := c.Connect(context.Background(), "acme")
		srv.Close()

		require.NoError(t, err, "payload %s", payload)
		assert.Equal(t, "data:image/png;base64,AAA", st.QrCode, "payload %s", payload)
	}
}

func TestConnectCorruptPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Connect(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, KindCorrupt, KindOf(err))
}
