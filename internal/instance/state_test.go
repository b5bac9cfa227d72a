package instance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadesk/wadesk/internal/domain"
)

func TestNormalizeState(t *testing.T) {
	cases := map[string]string{
		"open":         domain.StatusOpen,
		"OPEN":         domain.StatusOpen,
		"connected":    domain.StatusOpen,
		"online":       domain.StatusOpen,
		"connecting":   domain.StatusConnecting,
		"pairing":      domain.StatusConnecting,
		"qr":           domain.StatusQr,
		"qrcode":       domain.StatusQr,
		"close":        domain.StatusClose,
		"closed":       domain.StatusClose,
		"logout":       domain.StatusClose,
		"":             "",
		"wat":          domain.StatusDisconnected,
		"banana-state": domain.StatusDisconnected,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeState(in), "input %q", in)
	}
}

func TestReconcileOpenClearsQrAndStampsConnectedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	current := domain.Instance{
		Name:   "acme",
		Status: domain.StatusQr,
		QrCode: "data:image/png;base64,AAA",
	}

	next, changed := Reconcile(current, RemoteStatus{
		State:       "open",
		ProfileName: "Acme Support",
		PhoneNumber: "5511999990000",
		Seq:         1,
	}, now)

	require.True(t, changed)
	assert.Equal(t, domain.StatusOpen, next.Status)
	assert.Empty(t, next.QrCode)
	assert.Equal(t, "Acme Support", next.ProfileName)
	require.NotNil(t, next.LastConnectedAt)
	assert.True(t, next.LastConnectedAt.Equal(now))
}

func TestReconcileReopenKeepsLastConnectedAt(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	current := domain.Instance{
		Name:            "acme",
		Status:          domain.StatusOpen,
		LastConnectedAt: &first,
		ProfileName:     "Acme Support",
	}

	// Same open state reported again: nothing changed, no write.
	next, changed := Reconcile(current, RemoteStatus{State: "open", Seq: 2}, later)
	assert.False(t, changed)
	assert.True(t, next.LastConnectedAt.Equal(first))

	// Drop and reconnect: the timestamp moves.
	closed, changed := Reconcile(current, RemoteStatus{State: "close", Seq: 3}, later)
	require.True(t, changed)
	reopened, changed := Reconcile(closed, RemoteStatus{State: "open", Seq: 4}, later)
	require.True(t, changed)
	assert.True(t, reopened.LastConnectedAt.Equal(later))
}

func TestReconcileOpenNeverErasesProfileFields(t *testing.T) {
	current := domain.Instance{
		Name:        "acme",
		Status:      domain.StatusClose,
		ProfileName: "Acme Support",
		PhoneNumber: "5511999990000",
	}

	next, changed := Reconcile(current, RemoteStatus{State: "open", Seq: 1}, time.Now())
	require.True(t, changed)
	assert.Equal(t, "Acme Support", next.ProfileName)
	assert.Equal(t, "5511999990000", next.PhoneNumber)
}

func TestReconcileRejectsStaleSequence(t *testing.T) {
	current := domain.Instance{
		Name:      "acme",
		Status:    domain.StatusOpen,
		UpdateSeq: 10,
	}

	next, changed := Reconcile(current, RemoteStatus{State: "close", Seq: 5}, time.Now())
	assert.False(t, changed)
	assert.Equal(t, domain.StatusOpen, next.Status)
}

func TestReconcilePollCannotForceConnecting(t *testing.T) {
	current := domain.Instance{Name: "acme", Status: domain.StatusOpen}

	// A poll reporting "connecting" without a QR is ignored.
	next, changed := Reconcile(current, RemoteStatus{State: "connecting", Seq: 1}, time.Now())
	assert.False(t, changed)
	assert.Equal(t, domain.StatusOpen, next.Status)

	// Issued via an explicit connect command, the same report applies.
	next, changed = Reconcile(current, RemoteStatus{State: "connecting", Seq: 2, ViaCommand: true}, time.Now())
	require.True(t, changed)
	assert.Equal(t, domain.StatusConnecting, next.Status)
}

func TestReconcileQrRefreshMidPairing(t *testing.T) {
	current := domain.Instance{
		Name:   "acme",
		Status: domain.StatusQr,
		QrCode: "data:image/png;base64,OLD",
	}

	next, changed := Reconcile(current, RemoteStatus{State: "connecting", QrCode: "NEW", Seq: 1}, time.Now())
	require.True(t, changed)
	assert.Equal(t, domain.StatusQr, next.Status)
	assert.Equal(t, "data:image/png;base64,NEW", next.QrCode)

	// Same refresh against an open instance does nothing.
	open := domain.Instance{Name: "acme", Status: domain.StatusOpen}
	next, changed = Reconcile(open, RemoteStatus{State: "connecting", QrCode: "NEW", Seq: 2}, time.Now())
	assert.False(t, changed)
	assert.Empty(t, next.QrCode)
}

func TestReconcileEmptyStateAppliesQrMidPairing(t *testing.T) {
	current := domain.Instance{Name: "acme", Status: domain.StatusConnecting}

	next, changed := Reconcile(current, RemoteStatus{QrCode: "FRESH", Seq: 1}, time.Now())
	require.True(t, changed)
	assert.Equal(t, domain.StatusQr, next.Status)
	assert.Equal(t, "data:image/png;base64,FRESH", next.QrCode)
}

func TestReconcileCloseAndDisconnectedClearQr(t *testing.T) {
	for _, state := range []string{"close", "some-garbage"} {
		current := domain.Instance{
			Name:   "acme",
			Status: domain.StatusQr,
			QrCode: "data:image/png;base64,AAA",
		}
		next, changed := Reconcile(current, RemoteStatus{State: state, Seq: 1}, time.Now())
		require.True(t, changed, "state %q", state)
		assert.Empty(t, next.QrCode, "state %q", state)
	}
}

func TestReconcileBumpsSequenceOnlyWhenChanged(t *testing.T) {
	current := domain.Instance{Name: "acme", Status: domain.StatusClose, UpdateSeq: 3}

	next, changed := Reconcile(current, RemoteStatus{State: "close", Seq: 7}, time.Now())
	assert.False(t, changed)
	assert.Equal(t, int64(3), next.UpdateSeq)

	next, changed = Reconcile(current, RemoteStatus{State: "open", Seq: 7}, time.Now())
	require.True(t, changed)
	assert.Equal(t, int64(7), next.UpdateSeq)
	assert.Equal(t, next.Status, next.ConnectionState)
}
