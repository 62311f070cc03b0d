package models

// RankedParticipant is one participant in the quiz engine's final ranking.
type RankedParticipant struct {
	ParticipantID  string `json:"participant_id"`
	DisplayName    string `json:"display_name"`
	Placement      int    `json:"placement"`
	RewardImageURL string `json:"reward_image_url,omitempty"`
}

// QuizResults is the ranking the quiz engine computes when a session closes.
// Ranked participants carry a reward; Others answered but did not place.
type QuizResults struct {
	Ranked []RankedParticipant `json:"ranked"`
	Others []RankedParticipant `json:"others"`
}

// AnswerReport is the per-answer record forwarded to the quiz engine while a
// session is open, so it can rank participants at finalize time.
type AnswerReport struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Correct       bool   `json:"correct"`
}
