// Package calls turns the unordered stream of PBX channel events into a
// monotonic call lifecycle and notifies the broadcast hub on every
// transition. The canonical call record lives in Postgres; the tracker keeps
// only the in-memory working copy of calls that are still alive.
package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"telephony-bridge/internal/ami"
	"telephony-bridge/internal/events"
	"telephony-bridge/internal/models"
)

// Dialplan contexts the PBX is provisioned with. A channel's Context field
// tells apart an inbound trunk call, a dashboard click-to-call leg and a
// voice call arriving through a chat channel.
const (
	contextPSTN        = "from-pstn"
	contextChat        = "from-chat"
	contextClickToCall = "click-to-call"
)

// ErrTelephonyUnavailable is returned when an originate is requested while
// the PBX session is down. Callers fail fast, nothing is queued.
var ErrTelephonyUnavailable = errors.New("telephony unavailable")

var destinationPattern = regexp.MustCompile(`^[0-9]{2,15}$`)

// Publisher is the slice of the hub the tracker needs.
type Publisher interface {
	Broadcast(ev events.Event)
}

// Store persists terminal call records, best effort.
type Store interface {
	InsertCall(ctx context.Context, rec models.CallRecord) error
}

// PBX is the slice of the manager client the tracker needs.
type PBX interface {
	Send(action string, params map[string]string) (ami.Frame, error)
	Connected() bool
}

type Tracker struct {
	pbx   PBX
	pub   Publisher
	store Store
	log   *slog.Logger

	mu     sync.Mutex
	active map[string]*models.CallRecord

	now func() time.Time
}

func NewTracker(pbx PBX, pub Publisher, store Store, log *slog.Logger) *Tracker {
	return &Tracker{
		pbx:    pbx,
		pub:    pub,
		store:  store,
		log:    log,
		active: make(map[string]*models.CallRecord),
		now:    time.Now,
	}
}

// HandleEvent consumes one manager event. Runs on the client's sequential
// dispatch path; persistence writes are pushed off it.
func (t *Tracker) HandleEvent(frame ami.Frame) {
	switch frame.Event() {
	case "Newchannel":
		t.handleSetup(frame)
	case "Newstate":
		if frame.Get("ChannelStateDesc") == "Up" {
			t.handleAnswer(frame)
		}
	case "BridgeEnter":
		t.handleAnswer(frame)
	case "Hangup":
		t.handleHangup(frame)
	}
	// Anything else referencing an unknown channel id is mid-call telemetry
	// and must not fabricate a ghost call.
}

func (t *Tracker) handleSetup(frame ami.Frame) {
	id := frame.Get("Uniqueid")
	if id == "" {
		return
	}

	t.mu.Lock()
	if _, exists := t.active[id]; exists {
		t.mu.Unlock()
		return
	}

	origin, direction := classify(frame.Get("Channel"), frame.Get("Context"))
	rec := &models.CallRecord{
		UniqueID:     id,
		Origin:       origin,
		Direction:    direction,
		CallerNumber: frame.Get("CallerIDNum"),
		CalledNumber: frame.Get("Exten"),
		Status:       models.StatusRinging,
		StartTime:    t.now(),
	}
	t.active[id] = rec
	snapshot := *rec
	t.mu.Unlock()

	t.log.Info("call ringing",
		"unique_id", id, "origin", origin, "caller", snapshot.CallerNumber, "called", snapshot.CalledNumber)
	t.pub.Broadcast(events.CallCreated{Call: snapshot})
}

func (t *Tracker) handleAnswer(frame ami.Frame) {
	id := frame.Get("Uniqueid")

	t.mu.Lock()
	rec, ok := t.active[id]
	if !ok || rec.Status != models.StatusRinging {
		t.mu.Unlock()
		return
	}
	answered := t.now()
	rec.Status = models.StatusAnswered
	rec.AnswerTime = &answered
	if ext := frame.Get("ConnectedLineNum"); ext != "" && ext != "<unknown>" {
		rec.Extension = ext
	}
	snapshot := *rec
	t.mu.Unlock()

	t.log.Info("call answered", "unique_id", id, "extension", snapshot.Extension)
	t.pub.Broadcast(events.CallUpdated{Call: snapshot})
}

func (t *Tracker) handleHangup(frame ami.Frame) {
	id := frame.Get("Uniqueid")

	t.mu.Lock()
	rec, ok := t.active[id]
	if !ok {
		// Already terminal or never tracked. Duplicate teardown events must
		// not re-emit.
		t.mu.Unlock()
		return
	}
	delete(t.active, id)

	ended := t.now()
	rec.EndTime = &ended
	rec.Duration = int(ended.Sub(rec.StartTime) / time.Second)
	if rec.AnswerTime != nil {
		rec.Status = models.StatusEnded
	} else {
		rec.Status = models.StatusMissed
	}
	snapshot := *rec
	t.mu.Unlock()

	t.log.Info("call finished",
		"unique_id", id, "status", snapshot.Status, "duration", snapshot.Duration, "cause", frame.Get("Cause"))
	t.pub.Broadcast(events.CallUpdated{Call: snapshot})

	if t.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := t.store.InsertCall(ctx, snapshot); err != nil && !errors.Is(err, ErrDuplicateCall) {
				t.log.Error("failed to persist call record", "unique_id", id, "error", err)
			}
		}()
	}
}

// Originate places a click-to-call from the agent's extension to the
// destination. Returns the correlation key of the originate action so the
// caller can match the asynchronous outcome event.
func (t *Tracker) Originate(extension, destination string) (string, error) {
	if extension == "" {
		return "", fmt.Errorf("missing extension")
	}
	if !destinationPattern.MatchString(destination) {
		return "", fmt.Errorf("invalid destination %q: digits only, 2-15 characters", destination)
	}
	if !t.pbx.Connected() {
		return "", ErrTelephonyUnavailable
	}

	resp, err := t.pbx.Send("Originate", map[string]string{
		"Channel":  "PJSIP/" + extension,
		"Exten":    destination,
		"Context":  contextClickToCall,
		"Priority": "1",
		"CallerID": extension,
		"Async":    "true",
		"Timeout":  "30000",
	})
	if err != nil {
		return "", fmt.Errorf("originate: %w", err)
	}
	if !resp.Success() {
		return resp.ActionID(), fmt.Errorf("originate rejected: %s", resp.Get("Message"))
	}
	return resp.ActionID(), nil
}

// Active returns a snapshot of live calls, oldest first. Dashboards poll this
// to reconcile after a missed event.
func (t *Tracker) Active() []models.CallRecord {
	t.mu.Lock()
	out := make([]models.CallRecord, 0, len(t.active))
	for _, rec := range t.active {
		out = append(out, *rec)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func classify(channel, context string) (models.CallOrigin, models.CallDirection) {
	switch context {
	case contextPSTN:
		return models.OriginInbound, models.DirectionInbound
	case contextChat:
		return models.OriginChatVoice, models.DirectionInbound
	case contextClickToCall:
		return models.OriginClickToCall, models.DirectionOutbound
	}
	if strings.HasPrefix(channel, "Local/") {
		return models.OriginClickToCall, models.DirectionOutbound
	}
	return models.OriginInbound, models.DirectionInbound
}
