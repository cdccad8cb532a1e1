package queue

const (
	TypeSpeechGenerate = "speech:generate"
)

type SpeechGeneratePayload struct {
	JobID     string  `json:"job_id"`
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Persona   string  `json:"persona,omitempty"`
	Tone      string  `json:"tone,omitempty"`
	Rate      float64 `json:"rate,omitempty"`
	Pitch     float64 `json:"pitch,omitempty"`
}
