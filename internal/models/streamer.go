package models

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Platform is the source platform of a monitored stream.
type Platform string

const (
	PlatformDouyin   Platform = "Douyin"
	PlatformTikTok   Platform = "TikTok"
	PlatformKuaishou Platform = "Kuaishou"
)

// DefaultPlatform is used for any platform string the backend reports that we do not know.
const DefaultPlatform = PlatformTikTok

// ParsePlatform normalizes a backend platform tag. It is total: unknown tags map to DefaultPlatform.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformDouyin:
		return PlatformDouyin
	case PlatformKuaishou:
		return PlatformKuaishou
	case PlatformTikTok:
		return PlatformTikTok
	default:
		return DefaultPlatform
	}
}

// StreamStatus is the lifecycle status of a stream target.
type StreamStatus string

const (
	StatusLive      StreamStatus = "LIVE"
	StatusOffline   StreamStatus = "OFFLINE"
	StatusRecording StreamStatus = "RECORDING"
	StatusError     StreamStatus = "ERROR"
)

// ParseTaskStatus maps a task status reported by the backend. Only "RECORDING" is recognized;
// the backend never reports LIVE or ERROR for tasks, so everything else is Offline.
func ParseTaskStatus(s string) StreamStatus {
	if s == string(StatusRecording) {
		return StatusRecording
	}
	return StatusOffline
}

// RiskLevel is the coarse risk classification shown on a stream card.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskLevelFor buckets a 0-100 risk score.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// UnknownName is shown for tasks the backend returned without a name.
const UnknownName = "Unknown"

// Streamer is a value snapshot of one monitored broadcaster. It is replaced wholesale on every
// successful poll and never mutated in place.
type Streamer struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Platform  Platform     `json:"platform"`
	URL       string       `json:"url"`
	Status    StreamStatus `json:"status"`
	Avatar    string       `json:"avatar"`
	Viewers   int          `json:"viewers"`
	RiskLevel RiskLevel    `json:"riskLevel"`
	Tags      []string     `json:"tags"`
}

// Task is the wire shape of one entry of GET /tasks.
type Task struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// UnmarshalJSON decodes one task leniently. A field of the wrong type (or an item that is not an
// object at all) decodes as empty so MapTask's defaults apply to that item alone; numbers keep
// their literal text.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Task{}
		return nil
	}
	*t = Task{
		ID:       looseString(raw["id"]),
		Name:     looseString(raw["name"]),
		URL:      looseString(raw["url"]),
		Platform: looseString(raw["platform"]),
		Status:   looseString(raw["status"]),
	}
	return nil
}

func looseString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// NewTask is the body of POST /tasks.
type NewTask struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// MapTask converts a backend task into a Streamer snapshot.
func MapTask(t Task) Streamer {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		name = UnknownName
	}
	return Streamer{
		ID:        t.ID,
		Name:      name,
		Platform:  ParsePlatform(t.Platform),
		URL:       t.URL,
		Status:    ParseTaskStatus(t.Status),
		Avatar:    AvatarURL(name),
		Viewers:   ClampViewers(0),
		RiskLevel: RiskLow,
		Tags:      []string{},
	}
}

// MapTasks maps a whole task list. The result always has the same length as the input.
func MapTasks(tasks []Task) []Streamer {
	out := make([]Streamer, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, MapTask(t))
	}
	return out
}

// AvatarURL returns a generated avatar for a display name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// ClampViewers keeps viewer counts non-negative.
func ClampViewers(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
