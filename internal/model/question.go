package model

import "time"

// InterviewType identifies one of the supported interview formats.
type InterviewType string

const (
	TypeBehavioral    InterviewType = "behavioral"
	TypeProductSense  InterviewType = "product_sense"
	TypeProductDesign InterviewType = "product_design"
	TypeRCA           InterviewType = "rca"
	TypeStrategy      InterviewType = "strategy"
	TypeMetrics       InterviewType = "metrics"
	TypeEstimation    InterviewType = "estimation"
	TypeExecution     InterviewType = "execution"
	TypeTechnical     InterviewType = "technical"
)

// AllInterviewTypes lists every interview type in stable order.
func AllInterviewTypes() []InterviewType {
	return []InterviewType{
		TypeBehavioral, TypeProductSense, TypeProductDesign,
		TypeRCA, TypeStrategy, TypeMetrics,
		TypeEstimation, TypeExecution, TypeTechnical,
	}
}

// Valid reports whether t is a member of the closed interview-type set.
func (t InterviewType) Valid() bool {
	for _, known := range AllInterviewTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// AllDifficulties lists every difficulty in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyMedium, DifficultyHard, DifficultyExpert}
}

// Valid reports whether d is a member of the closed difficulty set.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// Question is one pre-generated interview question grounded in a single
// episode's Intelligence. Immutable once created; the
// (episode_id, type, difficulty) triple is unique in the bank.
type Question struct {
	ID                   string         `json:"id"`
	EpisodeID            string         `json:"episode_id"`
	Type                 InterviewType  `json:"type"`
	Company              string         `json:"company"`
	Difficulty           Difficulty     `json:"difficulty"`
	SuggestedTimeMinutes int            `json:"suggested_time_minutes"`
	SituationBrief       string         `json:"situation_brief"`
	Question             string         `json:"question"`
	FollowUps            []string       `json:"follow_ups"`
	ModelAnswer          ModelAnswer    `json:"model_answer"`
	Source               QuestionSource `json:"source"`
	CreatedAt            time.Time      `json:"created_at"`
}

// ModelAnswer is the reference answer attached to a question.
type ModelAnswer struct {
	WhatHappened        string   `json:"what_happened"`
	KeyReasoning        string   `json:"key_reasoning"`
	KeyQuote            string   `json:"key_quote"`
	FrameworksMentioned []string `json:"frameworks_mentioned"`
	FullAnswer          string   `json:"full_answer"`
}

// QuestionSource links a question back to the episode it was drawn from.
type QuestionSource struct {
	EpisodeTitle string `json:"episode_title"`
	GuestName    string `json:"guest_name"`
}

// Triple is the natural key of a bank entry.
type Triple struct {
	EpisodeID  string        `json:"episode_id"`
	Type       InterviewType `json:"type"`
	Difficulty Difficulty    `json:"difficulty"`
}
