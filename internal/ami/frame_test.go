package ami

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestReadFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Frame
	}{
		{
			name:  "event frame",
			input: "Event: Newchannel\r\nUniqueid: 1700000000.42\r\nCallerIDNum: 0611111111\r\n\r\n",
			want: Frame{
				"Event":       "Newchannel",
				"Uniqueid":    "1700000000.42",
				"CallerIDNum": "0611111111",
			},
		},
		{
			name:  "response frame echoes action id",
			input: "Response: Success\r\nActionID: abc-123\r\nMessage: Authentication accepted\r\n\r\n",
			want: Frame{
				"Response": "Success",
				"ActionID": "abc-123",
				"Message":  "Authentication accepted",
			},
		},
		{
			name:  "banner line before frame is skipped",
			input: "Asterisk Call Manager/5.0\r\nResponse: Success\r\nActionID: x\r\n\r\n",
			want: Frame{
				"Response": "Success",
				"ActionID": "x",
			},
		},
		{
			name:  "leading blank lines are skipped",
			input: "\r\n\r\nEvent: Hangup\r\nUniqueid: 1.1\r\n\r\n",
			want: Frame{
				"Event":    "Hangup",
				"Uniqueid": "1.1",
			},
		},
		{
			name:  "value containing colon splits at first colon only",
			input: "Event: Newchannel\r\nChannel: PJSIP/201-00000001\r\nAppData: dial:201:30\r\n\r\n",
			want: Frame{
				"Event":   "Newchannel",
				"Channel": "PJSIP/201-00000001",
				"AppData": "dial:201:30",
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := readFrame(bufio.NewReader(strings.NewReader(tc.input)))
			if err != nil {
				t.Fatalf("readFrame: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d keys, want %d: %v", len(got), len(tc.want), got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("key %s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestReadFrameEOF(t *testing.T) {
	t.Parallel()

	_, err := readFrame(bufio.NewReader(strings.NewReader("Event: Hangup\r\n")))
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestWriteAction(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := writeAction(&buf, "Originate", "id-1", map[string]string{
		"Exten":   "0611111111",
		"Channel": "PJSIP/201",
	})
	if err != nil {
		t.Fatalf("writeAction: %v", err)
	}

	want := "Action: Originate\r\nActionID: id-1\r\nChannel: PJSIP/201\r\nExten: 0611111111\r\n\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteActionNoParams(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := writeAction(&buf, "Ping", "id-2", nil); err != nil {
		t.Fatalf("writeAction: %v", err)
	}
	want := "Action: Ping\r\nActionID: id-2\r\n\r\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestFrameSuccess(t *testing.T) {
	t.Parallel()

	if !(Frame{"Response": "Success"}).Success() {
		t.Error("Success frame not recognized")
	}
	if (Frame{"Response": "Error"}).Success() {
		t.Error("Error frame reported success")
	}
}
