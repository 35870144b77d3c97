package domain

import "time"

// ScoreCard holds one participant's computed metrics, feedback and grade.
type ScoreCard struct {
	ParticipantID          ParticipantID `json:"participant_id"`
	Name                   string        `json:"name"`
	SpeakingTime           int           `json:"speaking_time_seconds"`
	SpeakingPercentage     float64       `json:"speaking_percentage"`
	Contributions          int           `json:"contributions"`
	ContributionsPerMinute float64       `json:"contributions_per_minute"`
	ParticipationScore     float64       `json:"participation_score"`
	EngagementScore        float64       `json:"engagement_score"`
	BalanceScore           float64       `json:"balance_score"`
	CommunicationScore     float64       `json:"communication_score"`
	OverallScore           float64       `json:"overall_score"` // rounded to one decimal
	Grade                  string        `json:"grade"`
	Feedback               []string      `json:"feedback"`
}

type GroupInsights struct {
	TotalSeconds       int           `json:"total_seconds"`
	AverageScore       float64       `json:"average_score"`
	TotalContributions int           `json:"total_contributions"`
	BestPerformer      ParticipantID `json:"best_performer"`
	NeedsImprovement   ParticipantID `json:"needs_improvement"`
}

// AnalysisReport is the immutable session outcome, computed once at session end.
type AnalysisReport struct {
	RoomCode    RoomCode      `json:"room_code"`
	GeneratedAt time.Time     `json:"generated_at"`
	ScoreCards  []ScoreCard   `json:"score_cards"`
	Group       GroupInsights `json:"group_insights"`
}
