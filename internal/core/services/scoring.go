package services

import (
	"math"
	"time"

	"gdroom/internal/core/domain"
)

// Score weights for the overall score.
const (
	participationWeight = 0.35
	engagementWeight    = 0.25
	balanceWeight       = 0.20
	communicationWeight = 0.20
)

// Score converts the final registry snapshot into a ranked analysis report.
// It is a pure function of its inputs: identical snapshots yield identical
// reports. Participants that never reached the Connected state are excluded;
// they contributed no media and would only drag the equal-share baseline.
func Score(code domain.RoomCode, participants []domain.Participant, totalSeconds int, generatedAt time.Time) *domain.AnalysisReport {
	var scored []domain.Participant
	for _, p := range participants {
		if p.State == domain.StateConnected {
			scored = append(scored, p)
		}
	}

	report := &domain.AnalysisReport{
		RoomCode:    code,
		GeneratedAt: generatedAt,
		ScoreCards:  make([]domain.ScoreCard, 0, len(scored)),
		Group:       domain.GroupInsights{TotalSeconds: totalSeconds},
	}
	if len(scored) == 0 {
		return report
	}

	equalShare := 100.0 / float64(len(scored))

	var sum float64
	for _, p := range scored {
		card := scoreParticipant(p, totalSeconds, equalShare)
		report.ScoreCards = append(report.ScoreCards, card)
		report.Group.TotalContributions += card.Contributions
		sum += card.OverallScore
	}
	report.Group.AverageScore = round1(sum / float64(len(report.ScoreCards)))

	// Ties resolve to the first participant in registry (join) order.
	best, worst := report.ScoreCards[0], report.ScoreCards[0]
	for _, card := range report.ScoreCards[1:] {
		if card.OverallScore > best.OverallScore {
			best = card
		}
		if card.OverallScore < worst.OverallScore {
			worst = card
		}
	}
	report.Group.BestPerformer = best.ParticipantID
	report.Group.NeedsImprovement = worst.ParticipantID

	return report
}

func scoreParticipant(p domain.Participant, totalSeconds int, equalShare float64) domain.ScoreCard {
	var speakingPct, perMinute float64
	if totalSeconds > 0 {
		speakingPct = 100 * float64(p.SpeakingTime) / float64(totalSeconds)
		perMinute = float64(p.Contributions) / (float64(totalSeconds) / 60)
	}

	participation := clamp(speakingPct * 2)
	engagement := clamp(perMinute * 20)
	balance := clamp(100 - 2*math.Abs(speakingPct-equalShare))
	communication := clamp(50 + 10*p.SentimentProxy)

	overall := round1(participation*participationWeight +
		engagement*engagementWeight +
		balance*balanceWeight +
		communication*communicationWeight)

	return domain.ScoreCard{
		ParticipantID:          p.ID,
		Name:                   p.Name,
		SpeakingTime:           p.SpeakingTime,
		SpeakingPercentage:     round1(speakingPct),
		Contributions:          p.Contributions,
		ContributionsPerMinute: round1(perMinute),
		ParticipationScore:     round1(participation),
		EngagementScore:        round1(engagement),
		BalanceScore:           round1(balance),
		CommunicationScore:     round1(communication),
		OverallScore:           overall,
		Grade:                  gradeFor(overall),
		Feedback:               feedbackFor(participation, engagement, balance, communication, speakingPct, equalShare),
	}
}

// gradeFor maps an overall score to a letter grade. Comparison is numeric;
// the formatted score string is presentation-only.
func gradeFor(score float64) string {
	switch {
	case score >= 85:
		return "A+"
	case score >= 75:
		return "A"
	case score >= 65:
		return "B+"
	case score >= 55:
		return "B"
	case score >= 45:
		return "C"
	default:
		return "D"
	}
}

// feedbackFor emits feedback lines in fixed checking order: participation,
// engagement, balance, communication.
func feedbackFor(participation, engagement, balance, communication, speakingPct, equalShare float64) []string {
	var feedback []string

	switch {
	case participation < 40:
		feedback = append(feedback, "Low participation - try to speak more and share your ideas")
	case participation > 70:
		feedback = append(feedback, "Excellent participation - you actively engaged in the discussion")
	default:
		feedback = append(feedback, "Good participation - maintain this level of engagement")
	}

	if engagement < 30 {
		feedback = append(feedback, "Make more contributions - break down your points into smaller segments")
	} else if engagement > 60 {
		feedback = append(feedback, "Great engagement - you contributed frequently to the discussion")
	}

	if balance < 40 {
		if speakingPct > equalShare {
			feedback = append(feedback, "Allow others more speaking time - practice active listening")
		} else {
			feedback = append(feedback, "Speak up more - your voice is valuable to the discussion")
		}
	} else {
		feedback = append(feedback, "Well-balanced participation - great teamwork")
	}

	if communication > 60 {
		feedback = append(feedback, "Positive communication style - maintained constructive tone")
	} else if communication < 40 {
		feedback = append(feedback, "Work on maintaining positive and constructive communication")
	}

	return feedback
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
