package translation

import "horse.fit/voxlate/internal/events"

// RequestedEvent asks the orchestrator to translate on behalf of a publisher.
type RequestedEvent struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	UserID     string `json:"userId,omitempty"`
}

// CompletedEvent is published after every successful translation.
type CompletedEvent struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	TextLength int    `json:"textLength"`
	UserID     string `json:"userId,omitempty"`
	Result     Result `json:"result"`
}

// ErrorEvent is published when a translation fails.
type ErrorEvent struct {
	Error      string `json:"error"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	UserID     string `json:"userId,omitempty"`
}

var (
	TopicTranslationRequested = events.NewTopic[RequestedEvent]("translationRequest")
	TopicTranslationCompleted = events.NewTopic[CompletedEvent]("translationCompleted")
	TopicTranslationResult    = events.NewTopic[Result]("translationResult")
	TopicTranslationError     = events.NewTopic[ErrorEvent]("translationError")
)
