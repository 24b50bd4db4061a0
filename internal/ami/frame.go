package ami

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Frame is one manager-protocol frame: a set of Key: Value header lines
// terminated by a blank line. Action frames carry "Action" plus "ActionID",
// response frames echo the ActionID, unsolicited frames carry "Event".
type Frame map[string]string

func (f Frame) Get(key string) string { return f[key] }

func (f Frame) ActionID() string { return f["ActionID"] }

func (f Frame) Event() string { return f["Event"] }

// Success reports whether a response frame indicates success.
func (f Frame) Success() bool { return f["Response"] == "Success" }

// readFrame reads one frame from r. Lines without a colon (the connect
// banner, protocol noise) are skipped rather than failing the connection.
func readFrame(r *bufio.Reader) (Frame, error) {
	frame := Frame{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if len(frame) == 0 {
				continue
			}
			return frame, nil
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		frame[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
}

// writeAction writes an action frame. Action and ActionID lead, remaining
// parameters follow in sorted order so frames are stable on the wire.
func writeAction(w io.Writer, action, actionID string, params map[string]string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\r\n", action)
	if actionID != "" {
		fmt.Fprintf(&b, "ActionID: %s\r\n", actionID)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, params[k])
	}
	b.WriteString("\r\n")

	_, err := io.WriteString(w, b.String())
	return err
}
