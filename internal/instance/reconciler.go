package instance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/asaskevich/EventBus"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/wadesk/wadesk/internal/domain"
	"github.com/wadesk/wadesk/internal/gateway"
	"github.com/wadesk/wadesk/pkg/metrics"
)

const (
	// PollInterval is the period between full reconciliation sweeps.
	PollInterval = 30 * time.Second
	// InterCallDelay spaces consecutive gateway polls inside one sweep so a
	// large instance list does not burst-load the gateway.
	InterCallDelay = 500 * time.Millisecond
)

// Sequencer hands out the monotonic sequence stamped on every remote status
// at ingest time. Shared between the reconciler and the lifecycle manager so
// command results and poll results order against each other.
type Sequencer struct {
	n int64
}

func (s *Sequencer) Next() int64 {
	return atomic.AddInt64(&s.n, 1)
}

// PushEvent is a gateway webhook notification about one instance. Payloads
// arrive as loosely typed JSON; DecodePushEvent maps them into this shape.
type PushEvent struct {
	Event    string                 `mapstructure:"event"`
	Instance string                 `mapstructure:"instance"`
	Data     map[string]interface{} `mapstructure:"data"`
	DateTime string                 `mapstructure:"date_time"`
}

// DecodePushEvent converts a raw webhook payload into a PushEvent.
func DecodePushEvent(payload map[string]interface{}) (*PushEvent, error) {
	var ev PushEvent
	if err := mapstructure.Decode(payload, &ev); err != nil {
		return nil, errors.Wrap(err, "decode push event")
	}
	if ev.Instance == "" {
		return nil, errors.New("push event without instance name")
	}
	return &ev, nil
}

// Settings is the slice of the runtime settings store the reconciliation
// core consults. Satisfied by app.ConfigManager.
type Settings interface {
	GetString(category, name string) string
}

// Reconciler is the standalone worker that keeps local instance records
// aligned with the gateway. It owns the poll loop and the push-event intake;
// both feed the same Reconcile path so they can never disagree.
type Reconciler struct {
	repo     Repository
	gw       GatewayAPI
	bus      EventBus.Bus
	seq      *Sequencer
	settings Settings

	pollRetry RetryPolicy

	pushCh   chan *PushEvent
	stopChan chan struct{}
	stopped  bool
	wg       sync.WaitGroup

	sweeping int32

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewReconciler(repo Repository, gw GatewayAPI, bus EventBus.Bus, seq *Sequencer, settings Settings) *Reconciler {
	return &Reconciler{
		repo:      repo,
		gw:        gw,
		bus:       bus,
		seq:       seq,
		settings:  settings,
		pollRetry: GatewayReadRetry,
		pushCh:    make(chan *PushEvent, 128),
		inFlight:  make(map[string]bool),
	}
}

// Start launches the poll loop and the push-event consumer.
func (r *Reconciler) Start() {
	r.stopChan = make(chan struct{})
	r.stopped = false
	r.wg.Add(2)
	go r.pollLoop()
	go r.pushLoop()
	zap.L().Info("reconciler: started",
		zap.Duration("interval", PollInterval),
		zap.Duration("call_delay", InterCallDelay))
}

// Stop shuts both loops down and waits for in-flight work, including a sweep
// still in progress, to finish.
func (r *Reconciler) Stop() {
	if r.stopChan == nil || r.stopped {
		return
	}
	r.stopped = true
	close(r.stopChan)
	r.wg.Wait()
	zap.L().Info("reconciler: stopped")
}

// Ingest accepts a gateway push event. Delivery is non-blocking: when the
// queue is full the event is dropped, because the next sweep re-derives the
// same state from the gateway anyway.
func (r *Reconciler) Ingest(ev *PushEvent) {
	select {
	case r.pushCh <- ev:
	default:
		metrics.IncrCounter(metrics.CounterPushDropped, 1)
		zap.L().Warn("reconciler: push queue full, event dropped",
			zap.String("instance", ev.Instance))
	}
}

func (r *Reconciler) pollLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	r.trySweep()
	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.trySweep()
		}
	}
}

// trySweep starts one sweep in the background. A sweep still running from a
// previous tick is skipped, not queued; its results stay valid and the next
// tick retries. The sweep joins the WaitGroup so Stop waits it out.
func (r *Reconciler) trySweep() {
	if !atomic.CompareAndSwapInt32(&r.sweeping, 0, 1) {
		zap.L().Debug("reconciler: previous sweep still running, tick skipped")
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer atomic.StoreInt32(&r.sweeping, 0)
		r.sweep()
	}()
}

func (r *Reconciler) pushLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopChan:
			return
		case ev := <-r.pushCh:
			r.applyPush(ev)
		}
	}
}

// settingDisabled reports whether a runtime switch was explicitly turned off.
// A missing settings store or an unset key leaves the feature enabled.
func (r *Reconciler) settingDisabled(category, name string) bool {
	return r.settings != nil && r.settings.GetString(category, name) == "false"
}

// sweep polls every active instance once, spaced by InterCallDelay.
func (r *Reconciler) sweep() {
	if r.settingDisabled("reconcile", "poll_enabled") {
		zap.L().Debug("reconciler: polling disabled by setting, sweep skipped")
		return
	}

	ctx := context.Background()
	insts, err := r.repo.ListActive(ctx)
	if err != nil {
		zap.L().Error("reconciler: list instances failed", zap.Error(err))
		return
	}

	var open int
	for i, inst := range insts {
		if i > 0 {
			select {
			case <-r.stopChan:
				return
			case <-time.After(InterCallDelay):
			}
		}
		r.pollOne(ctx, inst.Name)
		if cur, err := r.repo.GetByName(ctx, inst.Name); err == nil && cur.IsConnected() {
			open++
		}
	}

	metrics.SetGauge(metrics.GaugeInstancesTotal, float64(len(insts)))
	metrics.SetGauge(metrics.GaugeInstancesOpen, float64(open))
	metrics.IncrCounter(metrics.CounterSweeps, 1)
}

// pollOne polls the gateway for one instance and applies the result. The
// in-flight guard makes a poll and a push for the same instance take turns;
// whichever loses the race is skipped and the sequence guard keeps ordering.
func (r *Reconciler) pollOne(ctx context.Context, name string) {
	if !r.acquire(name) {
		zap.L().Debug("reconciler: instance busy, poll skipped", zap.String("instance", name))
		return
	}
	defer r.release(name)

	var st *gateway.ConnectionState
	err := r.pollRetry.Do(ctx, func() error {
		var perr error
		st, perr = r.gw.GetConnectionState(ctx, name)
		return perr
	})
	seq := r.seq.Next()
	if err != nil {
		r.applyPollFailure(ctx, name, seq, err)
		return
	}

	r.applyRemote(ctx, name, RemoteStatus{
		State:         st.State,
		QrCode:        st.QrCode,
		ProfileName:   st.ProfileName,
		PhoneNumber:   st.PhoneNumber,
		ProfilePicURL: st.ProfilePicURL,
		Seq:           seq,
	})
}

// applyPollFailure is the fail-safe: an instance whose state cannot be
// confirmed is recorded as disconnected rather than left claiming a
// connection that may no longer exist.
func (r *Reconciler) applyPollFailure(ctx context.Context, name string, seq int64, err error) {
	metrics.IncrCounter(metrics.CounterPollErrors, 1)

	if gateway.KindOf(err) == gateway.KindNotConfigured {
		zap.L().Debug("reconciler: gateway not configured, poll skipped",
			zap.String("instance", name))
		return
	}

	if r.settingDisabled("reconcile", "force_disconnect") {
		zap.L().Warn("reconciler: poll failed, force-disconnect disabled by setting",
			zap.String("instance", name),
			zap.Error(err))
		return
	}

	zap.L().Warn("reconciler: poll failed, forcing disconnected",
		zap.String("instance", name),
		zap.Error(err))
	r.applyRemote(ctx, name, RemoteStatus{State: domain.StatusDisconnected, Seq: seq})
}

func (r *Reconciler) applyPush(ev *PushEvent) {
	ctx := context.Background()
	if !r.acquire(ev.Instance) {
		zap.L().Debug("reconciler: instance busy, push skipped",
			zap.String("instance", ev.Instance))
		return
	}
	defer r.release(ev.Instance)

	if ts, err := dateparse.ParseAny(ev.DateTime); err == nil {
		metrics.SetGauge(metrics.GaugePushLagSeconds, time.Since(ts).Seconds())
	}

	r.applyRemote(ctx, ev.Instance, RemoteStatus{
		State:  cast.ToString(ev.Data["state"]),
		QrCode: gateway.ExtractQr(ev.Data),
		Seq:    r.seq.Next(),
	})
	metrics.IncrCounter(metrics.CounterPushApplied, 1)
}

// applyRemote runs one remote status through Reconcile and persists the
// result when anything changed.
func (r *Reconciler) applyRemote(ctx context.Context, name string, remote RemoteStatus) {
	current, err := r.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			zap.L().Debug("reconciler: instance not in store, update dropped",
				zap.String("instance", name))
			return
		}
		zap.L().Error("reconciler: load instance failed",
			zap.String("instance", name),
			zap.Error(err))
		return
	}

	next, changed := Reconcile(*current, remote, time.Now())
	if !changed {
		return
	}

	if err := DefaultStoreRetry.Do(ctx, func() error {
		return r.repo.Upsert(ctx, &next)
	}); err != nil {
		zap.L().Error("reconciler: write instance failed",
			zap.String("instance", name),
			zap.Error(err))
		return
	}

	zap.L().Info("reconciler: instance state changed",
		zap.String("instance", name),
		zap.String("from", current.Status),
		zap.String("to", next.Status))
	if r.bus != nil {
		r.bus.Publish(TopicInstanceUpdated, &next)
	}
}

func (r *Reconciler) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[name] {
		return false
	}
	r.inFlight[name] = true
	return true
}

func (r *Reconciler) release(name string) {
	r.mu.Lock()
	delete(r.inFlight, name)
	r.mu.Unlock()
}
