package instance

import (
	"context"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/gateway"
)

// Event bus topics published by the reconciliation core.
const (
	TopicInstanceUpdated = "instance.updated"
	TopicInstanceDeleted = "instance.deleted"
)

// Webhook events configured on newly created instances when the
// webhook.default_events setting is unset.
var defaultWebhookEvents = []string{"MESSAGES_UPSERT", "MESSAGES_UPDATE", "CONNECTION_UPDATE"}

// ErrNameTaken is returned by Create when an active instance already uses the name.
var ErrNameTaken = errors.New("instance name already in use")

// GatewayAPI is the slice of the gateway client the lifecycle manager uses.
type GatewayAPI interface {
	GetConnectionState(ctx context.Context, name string) (*gateway.ConnectionState, error)
	Connect(ctx context.Context, name string) (*gateway.ConnectionState, error)
	CreateInstance(ctx context.Context, name string) error
	Logout(ctx context.Context, name string) error
	DeleteInstance(ctx context.Context, name string) error
	SendText(ctx context.Context, name, number, text string) error
	SendMedia(ctx context.Context, name, number, mediaURL, kind string) error
	SetWebhook(ctx context.Context, name, url string, events []string) error
}

// Manager orchestrates multi-step instance lifecycle operations against the
// gateway and the local store. Steps are sequential; the partial-failure
// policy of each operation is documented on its method.
type Manager struct {
	repo       Repository
	gw         GatewayAPI
	bus        EventBus.Bus
	seq        *Sequencer
	settings   Settings
	storeRetry RetryPolicy
}

func NewManager(repo Repository, gw GatewayAPI, bus EventBus.Bus, seq *Sequencer, settings Settings) *Manager {
	return &Manager{
		repo:       repo,
		gw:         gw,
		bus:        bus,
		seq:        seq,
		settings:   settings,
		storeRetry: DefaultStoreRetry,
	}
}

// Create validates name uniqueness, registers the instance on the gateway and
// writes the local row. The gateway call failing means no row is written.
// Webhook auto-configuration is a soft dependency: its failure is logged and
// never fails the create.
func (m *Manager) Create(ctx context.Context, name, company string) (*domain.Instance, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("instance name is required")
	}

	exists, err := m.repo.ExistsActive(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "check instance name")
	}
	if exists {
		return nil, ErrNameTaken
	}

	if err := m.gw.CreateInstance(ctx, name); err != nil {
		return nil, err
	}

	inst := &domain.Instance{
		Name:            name,
		Company:         company,
		Status:          domain.StatusDisconnected,
		ConnectionState: domain.StatusDisconnected,
		Active:          true,
	}
	if err := m.storeRetry.Do(ctx, func() error {
		return m.repo.Upsert(ctx, inst)
	}); err != nil {
		return nil, errors.Wrap(err, "write instance")
	}

	m.configureWebhook(ctx, name)
	m.publishUpdated(inst)
	return inst, nil
}

// configureWebhook points the gateway's delivery callbacks for the instance
// at our webhook base URL. Best-effort only.
func (m *Manager) configureWebhook(ctx context.Context, name string) {
	cfg, err := m.repo.ActiveConfig(ctx)
	if err != nil || cfg.WebhookBaseURL == "" {
		return
	}
	url := strings.TrimRight(cfg.WebhookBaseURL, "/") + "/webhook/" + name
	if err := m.gw.SetWebhook(ctx, name, url, m.webhookEvents()); err != nil {
		zap.L().Warn("instance: webhook configuration failed",
			zap.String("instance", name),
			zap.Error(err))
	}
}

// webhookEvents resolves the event list for webhook auto-configuration from
// the webhook.default_events setting, falling back to the built-in defaults.
func (m *Manager) webhookEvents() []string {
	if m.settings == nil {
		return defaultWebhookEvents
	}
	raw := m.settings.GetString("webhook", "default_events")
	if raw == "" {
		return defaultWebhookEvents
	}
	var events []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			events = append(events, part)
		}
	}
	if len(events) == 0 {
		return defaultWebhookEvents
	}
	return events
}

// Connect starts the QR-pairing handshake. If the gateway call fails the
// local record stays untouched and the error goes back to the caller.
func (m *Manager) Connect(ctx context.Context, name string) (*domain.Instance, error) {
	inst, err := m.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	st, err := m.gw.Connect(ctx, name)
	if err != nil {
		return nil, err
	}

	state := st.State
	if state == "" {
		state = domain.StatusConnecting
	}
	remote := RemoteStatus{
		State:      state,
		QrCode:     st.QrCode,
		Seq:        m.seq.Next(),
		ViaCommand: true,
	}

	next, changed := Reconcile(*inst, remote, time.Now())
	if changed {
		if err := m.storeRetry.Do(ctx, func() error {
			return m.repo.Upsert(ctx, &next)
		}); err != nil {
			return nil, errors.Wrap(err, "write instance")
		}
		m.publishUpdated(&next)
	}
	return &next, nil
}

// Disconnect logs the instance out on the gateway. A gateway failure is
// surfaced and no local write happens: the record must not claim a
// disconnection that did not happen.
func (m *Manager) Disconnect(ctx context.Context, name string) (*domain.Instance, error) {
	inst, err := m.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := m.gw.Logout(ctx, name); err != nil {
		return nil, err
	}

	remote := RemoteStatus{State: domain.StatusClose, Seq: m.seq.Next()}
	next, changed := Reconcile(*inst, remote, time.Now())
	if changed {
		if err := m.storeRetry.Do(ctx, func() error {
			return m.repo.Upsert(ctx, &next)
		}); err != nil {
			return nil, errors.Wrap(err, "write instance")
		}
		m.publishUpdated(&next)
	}
	return &next, nil
}

// Delete removes the instance. The remote call is best-effort: a missing
// remote instance and a local row pointing at nothing are equivalent failure
// states, so the local row is deleted regardless of the gateway's answer.
// The returned flag reports whether the remote delete actually succeeded.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	if _, err := m.repo.GetByName(ctx, name); err != nil {
		return false, err
	}

	remoteRemoved := true
	if err := m.gw.DeleteInstance(ctx, name); err != nil {
		remoteRemoved = false
		if gateway.IsNotFound(err) {
			zap.L().Info("instance: gateway reports instance missing, removing locally",
				zap.String("instance", name))
		} else {
			zap.L().Warn("instance: gateway delete failed, removing locally anyway",
				zap.String("instance", name),
				zap.Error(err))
		}
	}

	if err := m.repo.DeleteByName(ctx, name); err != nil {
		return remoteRemoved, errors.Wrap(err, "delete instance")
	}
	m.bus.Publish(TopicInstanceDeleted, name)
	return remoteRemoved, nil
}

// SendText sends a text message through a connected instance.
func (m *Manager) SendText(ctx context.Context, name, number, text string) error {
	return m.gw.SendText(ctx, name, number, text)
}

// SendMedia sends a media message referenced by URL through a connected instance.
func (m *Manager) SendMedia(ctx context.Context, name, number, mediaURL, kind string) error {
	return m.gw.SendMedia(ctx, name, number, mediaURL, kind)
}

func (m *Manager) publishUpdated(inst *domain.Instance) {
	if m.bus != nil {
		m.bus.Publish(TopicInstanceUpdated, inst)
	}
}
