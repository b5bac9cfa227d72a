// Package instance holds the connection-state reconciliation core: the pure
// state machine, the instance repository, the lifecycle manager and the
// background reconciler that keeps local records aligned with the gateway.
package instance

import (
	"strings"
	"time"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/gateway"
)

// RemoteStatus is the normalized input to Reconcile. Poll results and push
// events are both converted to this shape so the two paths can never diverge.
type RemoteStatus struct {
	State         string
	QrCode        string
	ProfileName   string
	PhoneNumber   string
	ProfilePicURL string
	// Seq is a monotonically increasing sequence assigned at ingest. Reconcile
	// rejects updates strictly older than the sequence already stored, which
	// closes the stale-poll-after-push race.
	Seq int64
	// ViaCommand marks updates produced by an explicit connect() command.
	// Only those may move an instance into the connecting state.
	ViaCommand bool
}

// NormalizeState maps the gateway's reported state strings onto the local
// status enum. Unknown values fall back to disconnected.
func NormalizeState(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "connected", "online":
		return domain.StatusOpen
	case "connecting", "pairing":
		return domain.StatusConnecting
	case "qr", "qrcode":
		return domain.StatusQr
	case "close", "closed", "logout":
		return domain.StatusClose
	case "":
		return ""
	default:
		return domain.StatusDisconnected
	}
}

// Reconcile maps (current record, remote report) to the canonical next record.
// It is pure: no I/O, no clock reads beyond the supplied now. The second
// return value reports whether any field changed; callers must skip the store
// write when it is false.
func Reconcile(current domain.Instance, remote RemoteStatus, now time.Time) (domain.Instance, bool) {
	// Stale update: something newer was already applied.
	if remote.Seq > 0 && remote.Seq < current.UpdateSeq {
		return current, false
	}

	next := current
	state := NormalizeState(remote.State)

	switch state {
	case domain.StatusOpen:
		next.Status = domain.StatusOpen
		next.QrCode = ""
		// Adopt profile fields, but never overwrite with empty values.
		if remote.ProfileName != "" {
			next.ProfileName = remote.ProfileName
		}
		if remote.PhoneNumber != "" {
			next.PhoneNumber = remote.PhoneNumber
		}
		if remote.ProfilePicURL != "" {
			next.ProfilePicURL = remote.ProfilePicURL
		}
		if current.Status != domain.StatusOpen {
			ts := now
			next.LastConnectedAt = &ts
		}

	case domain.StatusClose:
		next.Status = domain.StatusClose
		next.QrCode = ""

	case domain.StatusDisconnected:
		next.Status = domain.StatusDisconnected
		next.QrCode = ""

	case domain.StatusQr:
		next.Status = domain.StatusQr
		if remote.QrCode != "" {
			next.QrCode = gateway.NormalizeQr(remote.QrCode)
		}

	case domain.StatusConnecting:
		if remote.ViaCommand {
			next.Status = domain.StatusConnecting
			if remote.QrCode != "" {
				next.Status = domain.StatusQr
				next.QrCode = gateway.NormalizeQr(remote.QrCode)
			}
		} else if remote.QrCode != "" &&
			(current.Status == domain.StatusConnecting || current.Status == domain.StatusQr) {
			// A poll may refresh the QR mid-pairing but never force connecting.
			next.Status = domain.StatusQr
			next.QrCode = gateway.NormalizeQr(remote.QrCode)
		}

	case "":
		// No state reported; a fresh QR mid-pairing is still applied.
		if remote.QrCode != "" &&
			(current.Status == domain.StatusConnecting || current.Status == domain.StatusQr) {
			next.Status = domain.StatusQr
			next.QrCode = gateway.NormalizeQr(remote.QrCode)
		}
	}

	if !instanceChanged(current, next) {
		return current, false
	}

	next.ConnectionState = next.Status
	if remote.Seq > next.UpdateSeq {
		next.UpdateSeq = remote.Seq
	}
	return next, true
}

func instanceChanged(a, b domain.Instance) bool {
	if a.Status != b.Status ||
		a.QrCode != b.QrCode ||
		a.ProfileName != b.ProfileName ||
		a.PhoneNumber != b.PhoneNumber ||
		a.ProfilePicURL != b.ProfilePicURL {
		return true
	}
	at, bt := a.LastConnectedAt, b.LastConnectedAt
	switch {
	case at == nil && bt == nil:
		return false
	case at == nil || bt == nil:
		return true
	default:
		return !at.Equal(*bt)
	}
}
