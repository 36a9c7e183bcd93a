package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to MatchStatus
		want     bool
	}{
		{StatusLobby, StatusCategorySelect, true},
		{StatusCategorySelect, StatusInProgress, true},
		{StatusInProgress, StatusRoundResults, true},
		{StatusRoundResults, StatusComplete, true},
		{StatusLobby, StatusLobby, true},
		{StatusRoundResults, StatusCategorySelect, true}, // next round
		{StatusInProgress, StatusLobby, false},
		{StatusComplete, StatusRoundResults, false},
		{StatusCategorySelect, StatusLobby, false},
		{MatchStatus("bogus"), StatusLobby, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func sampleRound() Round {
	return Round{
		Number:   1,
		Category: "Geography",
		Questions: []Question{
			{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "London", "Rome", "Berlin"}, CorrectAnswer: "Paris"},
			{ID: "q2", Text: "The Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, CorrectAnswer: "Mars"},
		},
	}
}

func TestPlayerDoneAndBothAnswered(t *testing.T) {
	round := sampleRound()
	assert.False(t, round.PlayerDone(SlotPlayer1))
	assert.False(t, round.BothAnswered())

	round.Player1Answers = []Answer{
		{QuestionID: "q1", Answer: "Paris"},
		{QuestionID: "q2", Answer: NoAnswer},
	}
	assert.True(t, round.PlayerDone(SlotPlayer1), "the timeout sentinel counts as an answer")
	assert.False(t, round.PlayerDone(SlotPlayer2))
	assert.False(t, round.BothAnswered())

	round.Player2Answers = []Answer{
		{QuestionID: "q1", Answer: "London"},
		{QuestionID: "q2", Answer: "Mars"},
	}
	assert.True(t, round.BothAnswered())

	// A questionless shell is never done.
	empty := NewRoundShell(2)
	assert.False(t, empty.PlayerDone(SlotPlayer1))
}

func TestRoundScore(t *testing.T) {
	round := sampleRound()
	round.Player1Answers = []Answer{
		{QuestionID: "q1", Answer: "Paris"},
		{QuestionID: "q2", Answer: "Venus"},
	}
	round.Player2Answers = []Answer{
		{QuestionID: "q1", Answer: "Paris"},
		{QuestionID: "q2", Answer: "Mars"},
	}

	p1, p2 := round.Score()
	assert.Equal(t, 1, p1)
	assert.Equal(t, 2, p2)

	// A missing answer or the timeout sentinel never matches.
	round.Player1Answers = []Answer{{QuestionID: "q1", Answer: NoAnswer}}
	p1, _ = round.Score()
	assert.Zero(t, p1)
}

func TestMatchSlotHelpers(t *testing.T) {
	m := &Match{CreatorID: "alice", Player1ID: "alice", Player2ID: "bob", Turn: "bob"}

	slot, ok := m.SlotOf("alice")
	assert.True(t, ok)
	assert.Equal(t, SlotPlayer1, slot)
	slot, ok = m.SlotOf("bob")
	assert.True(t, ok)
	assert.Equal(t, SlotPlayer2, slot)
	_, ok = m.SlotOf("carol")
	assert.False(t, ok)

	assert.Equal(t, "bob", m.OpponentOf("alice"))
	assert.Equal(t, "alice", m.OpponentOf("bob"))
	assert.Equal(t, "", m.OpponentOf("carol"))

	assert.True(t, m.IsCreator("alice"))
	assert.False(t, m.IsCreator("bob"))
	assert.False(t, m.IsCreator(""))
	assert.True(t, m.MyTurn("bob"))
	assert.False(t, m.MyTurn("alice"))

	// An open match has no player-two slot yet.
	open := &Match{Player1ID: "alice"}
	_, ok = open.SlotOf("")
	assert.False(t, ok)
}

func TestFinalScoresSkipUnscoredRounds(t *testing.T) {
	one, two, three := 1, 2, 3
	m := &Match{
		NumberOfRounds: 3,
		CurrentRound:   3,
		Rounds: []Round{
			{Number: 1, ScoresCalculated: true, Player1Score: &one, Player2Score: &three},
			{Number: 2}, // never scored
			{Number: 3, ScoresCalculated: true, Player1Score: &two, Player2Score: &three},
		},
	}

	p1, p2 := m.FinalScores()
	assert.Equal(t, 3, p1)
	assert.Equal(t, 6, p2)
	assert.True(t, m.IsFinalRound())
}

func TestRoundIndexAndCurrentEntry(t *testing.T) {
	m := &Match{
		CurrentRound: 2,
		Rounds:       []Round{NewRoundShell(1), NewRoundShell(2)},
	}
	assert.Equal(t, 1, m.RoundIndex(2))
	assert.Equal(t, -1, m.RoundIndex(9))
	if entry := m.CurrentRoundEntry(); assert.NotNil(t, entry) {
		assert.Equal(t, 2, entry.Number)
	}

	m.CurrentRound = 3
	assert.Nil(t, m.CurrentRoundEntry())
}
