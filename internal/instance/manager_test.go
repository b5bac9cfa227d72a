package instance

import (
	"context"
	"testing"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/gateway"
)

// fakeGateway implements GatewayAPI with overridable behavior per test.
type fakeGateway struct {
	stateFn   func(name string) (*gateway.ConnectionState, error)
	connectFn func(name string) (*gateway.ConnectionState, error)
	createErr error
	logoutErr error
	deleteErr error

	stateCalls    int
	createCalls   int
	webhookCalls  int
	webhookURL    string
	webhookEvents []string
}

func (f *fakeGateway) GetConnectionState(_ context.Context, name string) (*gateway.ConnectionState, error) {
	f.stateCalls++
	if f.stateFn != nil {
		return f.stateFn(name)
	}
	return &gateway.ConnectionState{State: "close"}, nil
}

func (f *fakeGateway) Connect(_ context.Context, name string) (*gateway.ConnectionState, error) {
	if f.connectFn != nil {
		return f.connectFn(name)
	}
	return &gateway.ConnectionState{State: "connecting"}, nil
}

func (f *fakeGateway) CreateInstance(_ context.Context, _ string) error {
	f.createCalls++
	return f.createErr
}

func (f *fakeGateway) Logout(_ context.Context, _ string) error {
	return f.logoutErr
}

func (f *fakeGateway) DeleteInstance(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeGateway) SendText(_ context.Context, _, _, _ string) error     { return nil }
func (f *fakeGateway) SendMedia(_ context.Context, _, _, _, _ string) error { return nil }

func (f *fakeGateway) SetWebhook(_ context.Context, _, url string, events []string) error {
	f.webhookCalls++
	f.webhookURL = url
	f.webhookEvents = events
	return nil
}

// fakeSettings stands in for the runtime settings store, keyed category.name.
type fakeSettings map[string]string

func (f fakeSettings) GetString(category, name string) string {
	return f[category+"."+name]
}

func newTestManager(t *testing.T, gw *fakeGateway) (*Manager, *GormRepository) {
	t.Helper()
	repo := NewGormRepository(newTestDB(t))
	mgr := NewManager(repo, gw, EventBus.New(), &Sequencer{}, nil)
	mgr.storeRetry = RetryPolicy{MaxAttempts: 1}
	return mgr, repo
}

func TestCreateRejectsDuplicateNameWithoutGatewayCall(t *testing.T) {
	gw := &fakeGateway{}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "acme", Status: domain.StatusOpen, Active: true}))

	_, err := mgr.Create(ctx, "acme", "Acme")
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.Zero(t, gw.createCalls, "gateway must not be called on a name conflict")
}

func TestCreateGatewayFailureWritesNoRow(t *testing.T) {
	gw := &fakeGateway{createErr: &gateway.Error{Kind: gateway.KindHTTP, Op: "/instance/create", Status: 500}}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "acme", "Acme")
	require.Error(t, err)

	_, err = repo.GetByName(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateWritesDisconnectedRowAndConfiguresWebhook(t *testing.T) {
	gw := &fakeGateway{}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.SaveConfig(ctx, &domain.GatewayConfig{
		ServerURL:      "https://gw.example.com",
		ApiKey:         "key",
		WebhookBaseURL: "https://desk.example.com/",
	}))

	inst, err := mgr.Create(ctx, "acme", "Acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, inst.Status)
	assert.True(t, inst.Active)

	assert.Equal(t, 1, gw.webhookCalls)
	assert.Equal(t, "https://desk.example.com/webhook/acme", gw.webhookURL)

	stored, err := repo.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, stored.Status)
}

func TestCreateUsesConfiguredWebhookEvents(t *testing.T) {
	gw := &fakeGateway{}
	mgr, repo := newTestManager(t, gw)
	mgr.settings = fakeSettings{"webhook.default_events": "MESSAGES_UPSERT, CALL_UPSERT"}
	ctx := context.Background()

	require.NoError(t, repo.SaveConfig(ctx, &domain.GatewayConfig{
		ServerURL:      "https://gw.example.com",
		ApiKey:         "key",
		WebhookBaseURL: "https://desk.example.com",
	}))

	_, err := mgr.Create(ctx, "acme", "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"MESSAGES_UPSERT", "CALL_UPSERT"}, gw.webhookEvents)

	// An unset or blank setting falls back to the built-in list.
	mgr.settings = fakeSettings{}
	_, err = mgr.Create(ctx, "acme2", "Acme")
	require.NoError(t, err)
	assert.Equal(t, defaultWebhookEvents, gw.webhookEvents)
}

func TestConnectStoresQr(t *testing.T) {
	gw := &fakeGateway{
		connectFn: func(string) (*gateway.ConnectionState, error) {
			return &gateway.ConnectionState{State: "connecting", QrCode: "data:image/png;base64,QQ"}, nil
		},
	}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "acme", Status: domain.StatusDisconnected, Active: true}))

	inst, err := mgr.Connect(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQr, inst.Status)
	assert.Equal(t, "data:image/png;base64,QQ", inst.QrCode)
}

func TestConnectTimeoutLeavesRecordUntouched(t *testing.T) {
	gw := &fakeGateway{
		connectFn: func(string) (*gateway.ConnectionState, error) {
			return nil, &gateway.Error{Kind: gateway.KindTimeout, Op: "/instance/connect/acme"}
		},
	}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "acme", Status: domain.StatusClose, Active: true}))

	_, err := mgr.Connect(ctx, "acme")
	require.Error(t, err)
	assert.True(t, gateway.IsTimeout(err))

	stored, err := repo.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClose, stored.Status)
}

func TestDisconnectRequiresRemoteSuccess(t *testing.T) {
	gw := &fakeGateway{logoutErr: &gateway.Error{Kind: gateway.KindNetwork, Op: "/instance/logout/acme"}}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "acme", Status: domain.StatusOpen, Active: true}))

	_, err := mgr.Disconnect(ctx, "acme")
	require.Error(t, err)

	stored, err := repo.GetByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status, "failed logout must not be recorded as close")

	gw.logoutErr = nil
	inst, err := mgr.Disconnect(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClose, inst.Status)
}

func TestDeleteRemovesLocallyWhenRemoteFails(t *testing.T) {
	gw := &fakeGateway{deleteErr: &gateway.Error{Kind: gateway.KindNotFound, Op: "/instance/delete/acme", Status: 404}}
	mgr, repo := newTestManager(t, gw)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Instance{Name: "acme", Status: domain.StatusClose, Active: true}))

	remoteRemoved, err := mgr.Delete(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, remoteRemoved)

	_, err = repo.GetByName(ctx, "acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUnknownInstance(t *testing.T) {
	mgr, _ := newTestManager(t, &fakeGateway{})

	_, err := mgr.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
