package model

import "time"

// MatchStatus is the lifecycle phase of a match.
type MatchStatus string

const (
	StatusLobby          MatchStatus = "lobby"
	StatusCategorySelect MatchStatus = "category-select"
	StatusInProgress     MatchStatus = "in-progress"
	StatusRoundResults   MatchStatus = "round-results"
	StatusComplete       MatchStatus = "complete"
)

// statusRank orders statuses for the forward-only invariant. The one legal
// step backwards is round-results -> category-select for the next round.
var statusRank = map[MatchStatus]int{
	StatusLobby:          0,
	StatusCategorySelect: 1,
	StatusInProgress:     2,
	StatusRoundResults:   3,
	StatusComplete:       4,
}

// CanTransition reports whether a status write from -> to is legal.
func CanTransition(from, to MatchStatus) bool {
	if from == StatusRoundResults && to == StatusCategorySelect {
		return true
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr >= fr
}

// Destination is the view a client should be routed to for a given match state.
type Destination string

const (
	DestHome           Destination = "home"
	DestLobby          Destination = "lobby"
	DestCategorySelect Destination = "category-select"
	DestRound          Destination = "round"
	DestRoundResults   Destination = "round-results"
	DestFinalResults   Destination = "final-results"
)

// PlayerSlot identifies which of the two per-player fields a user owns.
type PlayerSlot int

const (
	SlotPlayer1 PlayerSlot = 1
	SlotPlayer2 PlayerSlot = 2
)

// AnswersField returns the bson field name of the slot's answer array within a round.
func (s PlayerSlot) AnswersField() string {
	if s == SlotPlayer1 {
		return "player1Answers"
	}
	return "player2Answers"
}

// Round is one category plus its questions and both players' answers.
// Questions are set at most once (first writer wins); each player contributes
// at most one answer per question; ScoresCalculated flips false -> true exactly
// once when the round is scored.
type Round struct {
	Number           int        `json:"number" bson:"number"`
	Category         string     `json:"category" bson:"category"`
	Questions        []Question `json:"questions" bson:"questions"`
	Player1Answers   []Answer   `json:"player1Answers" bson:"player1Answers"`
	Player2Answers   []Answer   `json:"player2Answers" bson:"player2Answers"`
	Player1Score     *int       `json:"player1Score,omitempty" bson:"player1Score,omitempty"`
	Player2Score     *int       `json:"player2Score,omitempty" bson:"player2Score,omitempty"`
	ScoresCalculated bool       `json:"scoresCalculated" bson:"scoresCalculated"`
}

// NewRoundShell returns an empty round placeholder for the given 1-indexed number.
func NewRoundShell(number int) Round {
	return Round{
		Number:         number,
		Category:       "",
		Questions:      []Question{},
		Player1Answers: []Answer{},
		Player2Answers: []Answer{},
	}
}

// Answers returns the answer set owned by the given slot.
func (r *Round) Answers(slot PlayerSlot) []Answer {
	if slot == SlotPlayer1 {
		return r.Player1Answers
	}
	return r.Player2Answers
}

// AnswerTo returns the slot's recorded answer for a question, if any.
func (r *Round) AnswerTo(slot PlayerSlot, questionID string) (Answer, bool) {
	for _, a := range r.Answers(slot) {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return Answer{}, false
}

// PlayerDone reports whether the slot has answered every question in the round.
// Completeness is derived from the answer count, never from a separate flag.
func (r *Round) PlayerDone(slot PlayerSlot) bool {
	return len(r.Questions) > 0 && len(r.Answers(slot)) >= len(r.Questions)
}

// BothAnswered reports whether both players have answered every question.
func (r *Round) BothAnswered() bool {
	return r.PlayerDone(SlotPlayer1) && r.PlayerDone(SlotPlayer2)
}

// Score tallies correct answers for both players. A missing answer or the
// NoAnswer sentinel never matches.
func (r *Round) Score() (player1, player2 int) {
	for i := range r.Questions {
		q := &r.Questions[i]
		if a, ok := r.AnswerTo(SlotPlayer1, q.ID); ok && a.Answer == q.CorrectAnswer {
			player1++
		}
		if a, ok := r.AnswerTo(SlotPlayer2, q.ID); ok && a.Answer == q.CorrectAnswer {
			player2++
		}
	}
	return player1, player2
}

// Match is the shared document both players' sessions observe and mutate.
type Match struct {
	ID                string          `json:"id" bson:"_id"`
	CreatorID         string          `json:"creatorId" bson:"creatorId"`
	OpponentID        string          `json:"opponentId,omitempty" bson:"opponentId,omitempty"`
	Player1ID         string          `json:"player1Id" bson:"player1Id"`
	Player2ID         string          `json:"player2Id,omitempty" bson:"player2Id,omitempty"`
	Players           map[string]User `json:"players" bson:"players"`
	Status            MatchStatus     `json:"status" bson:"status"`
	NumberOfRounds    int             `json:"numberOfRounds" bson:"numberOfRounds"`
	Rounds            []Round         `json:"rounds" bson:"rounds"`
	CurrentRound      int             `json:"currentRound" bson:"currentRound"`
	Turn              string          `json:"turn" bson:"turn"`
	WinnerID          *string         `json:"winnerId,omitempty" bson:"winnerId,omitempty"`
	Player1FinalScore *int            `json:"player1FinalScore,omitempty" bson:"player1FinalScore,omitempty"`
	Player2FinalScore *int            `json:"player2FinalScore,omitempty" bson:"player2FinalScore,omitempty"`
	CreatedAt         time.Time       `json:"createdAt" bson:"createdAt"`
}

// SlotOf returns which per-player slot the user occupies.
func (m *Match) SlotOf(userID string) (PlayerSlot, bool) {
	switch userID {
	case m.Player1ID:
		return SlotPlayer1, true
	case m.Player2ID:
		if m.Player2ID != "" {
			return SlotPlayer2, true
		}
	}
	return 0, false
}

// OpponentOf returns the other player's id, or "" if there is none yet.
func (m *Match) OpponentOf(userID string) string {
	switch userID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// IsCreator reports whether the user holds single-writer authority for
// question generation and score resolution.
func (m *Match) IsCreator(userID string) bool {
	return userID != "" && m.CreatorID == userID
}

// MyTurn reports whether the user is privileged to pick the next category.
func (m *Match) MyTurn(userID string) bool {
	return userID != "" && m.Turn == userID
}

// RoundIndex returns the slice index of the round with the given 1-indexed
// number, or -1 when absent.
func (m *Match) RoundIndex(number int) int {
	for i := range m.Rounds {
		if m.Rounds[i].Number == number {
			return i
		}
	}
	return -1
}

// CurrentRoundEntry returns the round the match is currently on, or nil when
// the shell has not been written yet.
func (m *Match) CurrentRoundEntry() *Round {
	if i := m.RoundIndex(m.CurrentRound); i >= 0 {
		return &m.Rounds[i]
	}
	return nil
}

// IsFinalRound reports whether the current round is the last of the match.
func (m *Match) IsFinalRound() bool {
	return m.CurrentRound >= m.NumberOfRounds
}

// FinalScores sums every round's stored scores. Rounds that were never scored
// contribute nothing.
func (m *Match) FinalScores() (player1, player2 int) {
	for i := range m.Rounds {
		r := &m.Rounds[i]
		if r.Player1Score != nil {
			player1 += *r.Player1Score
		}
		if r.Player2Score != nil {
			player2 += *r.Player2Score
		}
	}
	return player1, player2
}
