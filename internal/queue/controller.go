// Package queue keeps PBX queue membership pause-state consistent with an
// agent's declared presence and polls peer registration on demand.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"telephony-bridge/internal/ami"
	"telephony-bridge/internal/models"
)

// pollConcurrency bounds parallel peer-status queries so a wide extension
// range does not flood the manager session.
const pollConcurrency = 8

// PBX is the slice of the manager client the controller needs.
type PBX interface {
	Send(action string, params map[string]string) (ami.Frame, error)
	Connected() bool
}

type Controller struct {
	pbx PBX
	log *slog.Logger
}

func NewController(pbx PBX, log *slog.Logger) *Controller {
	return &Controller{pbx: pbx, log: log}
}

// SetPresence reconciles queue pause-state with the agent's declared
// presence: anything other than "available" pauses the member with the
// presence as reason. Fire and forget; presence in the system-of-record is
// authoritative regardless of PBX reachability, so failures are logged and
// never surfaced to the presence caller.
func (c *Controller) SetPresence(extension string, presence models.Presence) {
	paused := presence != models.PresenceAvailable

	go func() {
		_, err := c.pbx.Send("QueuePause", map[string]string{
			"Interface": "PJSIP/" + extension,
			"Paused":    strconv.FormatBool(paused),
			"Reason":    string(presence),
		})
		if err != nil {
			c.log.Warn("queue pause failed",
				"extension", extension, "paused", paused, "presence", presence, "error", err)
			return
		}
		c.log.Info("queue pause applied", "extension", extension, "paused", paused, "reason", presence)
	}()
}

// ExtensionStatuses polls peer registration for every extension in
// [rangeStart, rangeEnd] and returns only currently registered peers. This
// is a point-in-time poll; callers re-poll periodically.
func (c *Controller) ExtensionStatuses(ctx context.Context, rangeStart, rangeEnd int) ([]models.ExtensionStatus, error) {
	if rangeStart > rangeEnd {
		return nil, fmt.Errorf("invalid extension range %d-%d", rangeStart, rangeEnd)
	}
	if !c.pbx.Connected() {
		return nil, ami.ErrNotConnected
	}

	var (
		mu     sync.Mutex
		online []models.ExtensionStatus
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)
	for ext := rangeStart; ext <= rangeEnd; ext++ {
		exten := strconv.Itoa(ext)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			status, ok := c.peerStatus(exten)
			if !ok {
				return nil
			}
			mu.Lock()
			online = append(online, status)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(online, func(i, j int) bool { return online[i].Extension < online[j].Extension })
	return online, nil
}

// peerStatus queries one peer. Unregistered and unknown peers both report
// not-ok; a registration status of the form "OK (12 ms)" means online.
func (c *Controller) peerStatus(exten string) (models.ExtensionStatus, bool) {
	resp, err := c.pbx.Send("SIPshowpeer", map[string]string{"Peer": exten})
	if err != nil || !resp.Success() {
		return models.ExtensionStatus{}, false
	}

	status := resp.Get("Status")
	if !strings.HasPrefix(status, "OK") {
		return models.ExtensionStatus{}, false
	}

	return models.ExtensionStatus{
		Extension: exten,
		Online:    true,
		Busy:      resp.Get("Busy-level") == "busy",
	}, true
}
