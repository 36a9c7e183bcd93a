package model

// OptionsPerQuestion is the fixed number of choices every question carries.
const OptionsPerQuestion = 4

// NoAnswer is the sentinel recorded when a player's countdown expires.
const NoAnswer = "No Answer"

// Question is a single multiple-choice question. Immutable once generated;
// CorrectAnswer is always one of Options.
type Question struct {
	ID            string   `json:"id" bson:"id"`
	Text          string   `json:"text" bson:"text"`
	Options       []string `json:"options" bson:"options"`
	CorrectAnswer string   `json:"correctAnswer" bson:"correctAnswer"`
}

// HasOption reports whether s is one of the question's choices.
func (q *Question) HasOption(s string) bool {
	for _, opt := range q.Options {
		if opt == s {
			return true
		}
	}
	return false
}

// Answer records one player's response to one question. Appended, never
// mutated; Answer may be the NoAnswer sentinel for timeouts.
type Answer struct {
	QuestionID string `json:"questionId" bson:"questionId"`
	Answer     string `json:"answer" bson:"answer"`
}
