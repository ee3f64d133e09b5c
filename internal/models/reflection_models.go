package models

// Reflection is a structured annotation on a headline. Never mutated once stored.
type Reflection struct {
	ReflectionID   string `json:"reflection_id"`
	Headline       string `json:"headline"`
	Emotions       string `json:"emotions"`
	TrustLevel     int    `json:"trust_level"`
	ReflectionText string `json:"reflection"`
	Timestamp      string `json:"timestamp"`
}

type Reply struct {
	ReflectionID string `json:"reflection_id"`
	Reply        string `json:"reply"`
	Timestamp    string `json:"timestamp"`
}

// ReflectionThread is a reflection with the replies attached to it.
type ReflectionThread struct {
	Reflection
	Replies []Reply `json:"replies"`
}

type CommentReaction struct {
	Headline       string `json:"headline"`
	CommentSnippet string `json:"comment_snippet"`
	Reaction       string `json:"reaction"`
	Timestamp      string `json:"timestamp"`
}

type CommentReflection struct {
	FieldName      string `json:"field_name,omitempty"`
	Headline       string `json:"headline"`
	CommentSnippet string `json:"comment_snippet"`
	Reflection     string `json:"reflection"`
	Emotion        string `json:"emotion,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// CachedSummary is keyed by the exact, case-sensitive headline string.
type CachedSummary struct {
	Headline    string `json:"headline"`
	SummaryText string `json:"summary_text"`
	GeneratedAt string `json:"timestamp"`
}
