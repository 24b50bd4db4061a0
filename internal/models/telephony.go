package models

import "time"

type CallOrigin string

const (
	// OriginInbound is a call arriving from the PSTN trunk.
	OriginInbound CallOrigin = "inbound"
	// OriginClickToCall is a call originated from the dashboard.
	OriginClickToCall CallOrigin = "click_to_call"
	// OriginChatVoice is a voice call arriving through a chat channel.
	OriginChatVoice CallOrigin = "chat_voice"
)

type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

type CallStatus string

const (
	StatusRinging  CallStatus = "ringing"
	StatusAnswered CallStatus = "answered"
	StatusEnded    CallStatus = "ended"
	StatusMissed   CallStatus = "missed"
)

// CallRecord is the in-memory working copy of one call attempt, keyed by the
// PBX channel unique id. The canonical copy lives in the cdr table.
type CallRecord struct {
	UniqueID     string        `json:"unique_id"`
	Origin       CallOrigin    `json:"origin"`
	Direction    CallDirection `json:"direction"`
	CallerNumber string        `json:"caller_number"`
	CalledNumber string        `json:"called_number"`
	Extension    string        `json:"extension,omitempty"`
	Status       CallStatus    `json:"status"`
	StartTime    time.Time     `json:"start_time"`
	AnswerTime   *time.Time    `json:"answer_time,omitempty"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	Duration     int           `json:"duration"`
}

type CDR struct {
	ID           int64      `db:"id" json:"id"`
	CallUUID     string     `db:"call_uuid" json:"call_uuid"`
	Origin       string     `db:"origin" json:"origin"`
	Direction    string     `db:"direction" json:"direction"`
	CallerNumber *string    `db:"caller_number" json:"caller_number,omitempty"`
	CalledNumber *string    `db:"called_number" json:"called_number,omitempty"`
	Extension    *string    `db:"extension" json:"extension,omitempty"`
	Status       string     `db:"status" json:"status"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	AnswerTime   *time.Time `db:"answer_time" json:"answer_time,omitempty"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	Duration     int        `db:"duration" json:"duration"`
	RecordingID  *int64     `db:"recording_id" json:"recording_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type Recording struct {
	ID        int64     `db:"id" json:"id"`
	CallUUID  string    `db:"call_uuid" json:"call_uuid"`
	Path      string    `db:"path" json:"path"`
	Backend   string    `db:"backend" json:"backend"`
	SizeBytes *int64    `db:"size_bytes" json:"size_bytes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExtensionStatus is a point-in-time view of one registered peer. It is
// recomputed on every poll, never cached.
type ExtensionStatus struct {
	Extension string `json:"extension"`
	Online    bool   `json:"online"`
	Busy      bool   `json:"busy"`
}

type Presence string

const (
	PresenceAvailable Presence = "available"
	PresenceBreak     Presence = "break"
	PresenceLunch     Presence = "lunch"
	PresenceMeeting   Presence = "meeting"
	PresenceOffline   Presence = "offline"
)
