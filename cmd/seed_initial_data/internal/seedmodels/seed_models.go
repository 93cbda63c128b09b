package seedmodels

// SeedQuestion defines the structure for a quiz question in the JSON seed file.
type SeedQuestion struct {
	Type         string   `json:"type"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices,omitempty"`
	AnswerIndex  int      `json:"answer_index,omitempty"`
	AnswerText   string   `json:"answer_text,omitempty"`
	AnswerBlanks []string `json:"answer_blanks,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
}

// SeedLesson defines the structure for a lesson in the JSON seed file.
type SeedLesson struct {
	Level     string         `json:"level"`
	EnText    string         `json:"en_text"`
	LaText    string         `json:"la_text"`
	Questions []SeedQuestion `json:"questions,omitempty"`
}

// SeedTopic defines the structure for a topic in the JSON seed file.
type SeedTopic struct {
	Topic   string       `json:"topic"`
	Lessons []SeedLesson `json:"lessons"`
}
