package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"brainduel/internal/cache"
	"brainduel/internal/config"
	"brainduel/internal/model"
)

// fakeMatchRepo is an in-memory MatchRepo that mirrors the store's conditional
// write semantics, including the first-writer-wins and compare-and-set guards.
type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[string]*model.Match
	wins    map[string]int
	losses  map[string]int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{
		matches: make(map[string]*model.Match),
		wins:    make(map[string]int),
		losses:  make(map[string]int),
	}
}

func cloneMatch(m *model.Match) *model.Match {
	if m == nil {
		return nil
	}
	out := *m
	out.Players = make(map[string]model.User, len(m.Players))
	for k, v := range m.Players {
		out.Players[k] = v
	}
	out.Rounds = make([]model.Round, len(m.Rounds))
	for i, r := range m.Rounds {
		r.Questions = append([]model.Question(nil), r.Questions...)
		r.Player1Answers = append([]model.Answer(nil), r.Player1Answers...)
		r.Player2Answers = append([]model.Answer(nil), r.Player2Answers...)
		out.Rounds[i] = r
	}
	return &out
}

func (f *fakeMatchRepo) Create(ctx context.Context, match *model.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[match.ID] = cloneMatch(match)
	return nil
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, id string) (*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneMatch(f.matches[id]), nil
}

func (f *fakeMatchRepo) ApplyUpdate(ctx context.Context, id string, fields bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil {
		return nil
	}
	for key, val := range fields {
		switch {
		case key == "status":
			m.Status = val.(model.MatchStatus)
		case key == "numberOfRounds":
			m.NumberOfRounds = val.(int)
		case key == "player2Id":
			m.Player2ID = val.(string)
		case key == "rounds":
			rounds := val.([]model.Round)
			m.Rounds = append([]model.Round(nil), rounds...)
		case strings.HasPrefix(key, "players."):
			if m.Players == nil {
				m.Players = make(map[string]model.User)
			}
			m.Players[strings.TrimPrefix(key, "players.")] = val.(model.User)
		case strings.HasPrefix(key, "rounds."):
			parts := strings.Split(key, ".")
			idx, err := strconv.Atoi(parts[1])
			if err != nil {
				return fmt.Errorf("bad field path %q", key)
			}
			for len(m.Rounds) <= idx {
				m.Rounds = append(m.Rounds, model.Round{})
			}
			if len(parts) == 2 {
				m.Rounds[idx] = val.(model.Round)
			} else if parts[2] == "category" {
				m.Rounds[idx].Category = val.(string)
			} else {
				return fmt.Errorf("unhandled field path %q", key)
			}
		default:
			return fmt.Errorf("unhandled field %q", key)
		}
	}
	return nil
}

func (f *fakeMatchRepo) AppendAnswer(ctx context.Context, id string, roundIdx int, slot model.PlayerSlot, answer model.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil || roundIdx < 0 || roundIdx >= len(m.Rounds) {
		return nil
	}
	round := &m.Rounds[roundIdx]
	// $addToSet: a structurally identical answer is a no-op.
	for _, a := range round.Answers(slot) {
		if a == answer {
			return nil
		}
	}
	if slot == model.SlotPlayer1 {
		round.Player1Answers = append(round.Player1Answers, answer)
	} else {
		round.Player2Answers = append(round.Player2Answers, answer)
	}
	return nil
}

func (f *fakeMatchRepo) SetQuestions(ctx context.Context, id string, roundIdx int, questions []model.Question) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil || roundIdx < 0 || roundIdx >= len(m.Rounds) {
		return false, nil
	}
	if len(m.Rounds[roundIdx].Questions) > 0 {
		return false, nil
	}
	m.Rounds[roundIdx].Questions = append([]model.Question(nil), questions...)
	return true, nil
}

func (f *fakeMatchRepo) ClaimRoundScoring(ctx context.Context, id string, roundIdx, player1Score, player2Score int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil || roundIdx < 0 || roundIdx >= len(m.Rounds) {
		return false, nil
	}
	round := &m.Rounds[roundIdx]
	if round.ScoresCalculated {
		return false, nil
	}
	round.ScoresCalculated = true
	p1, p2 := player1Score, player2Score
	round.Player1Score = &p1
	round.Player2Score = &p2
	m.Status = model.StatusRoundResults
	return true, nil
}

func (f *fakeMatchRepo) AdvanceRound(ctx context.Context, id string, fromRound int, nextTurn string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil || m.Status != model.StatusRoundResults || m.CurrentRound != fromRound {
		return false, nil
	}
	m.Status = model.StatusCategorySelect
	m.CurrentRound = fromRound + 1
	m.Turn = nextTurn
	return true, nil
}

func (f *fakeMatchRepo) CompleteMatch(ctx context.Context, id string, player1Final, player2Final int, winnerID, loserID *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m == nil || m.Status != model.StatusRoundResults {
		return false, nil
	}
	m.Status = model.StatusComplete
	p1, p2 := player1Final, player2Final
	m.Player1FinalScore = &p1
	m.Player2FinalScore = &p2
	m.WinnerID = winnerID
	if winnerID != nil && loserID != nil {
		f.wins[*winnerID]++
		f.losses[*loserID]++
	}
	return true, nil
}

func (f *fakeMatchRepo) ListOpenFor(ctx context.Context, userID string) ([]*model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Match
	for _, m := range f.matches {
		if m.Status == model.StatusLobby && m.OpponentID == userID && m.Player2ID == "" {
			out = append(out, cloneMatch(m))
		}
	}
	return out, nil
}

// fakeUserRepo stores profiles in a map.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		copied := *u
		f.users[u.ID] = &copied
	}
	return f
}

func (f *fakeUserRepo) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.users[user.ID]
	if !ok {
		copied := *user
		copied.Online = true
		f.users[user.ID] = &copied
		out := copied
		return &out, nil
	}
	existing.Name = user.Name
	existing.AvatarURL = user.AvatarURL
	existing.Online = true
	out := *existing
	return &out, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) SetOnline(ctx context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Online = online
	}
	return nil
}

func (f *fakeUserRepo) ListOnline(ctx context.Context, excludeID string) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.User
	for _, u := range f.users {
		if u.Online && u.ID != excludeID {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeBus counts publishes and feeds subscribers from a test-controlled channel.
type fakeBus struct {
	mu        sync.Mutex
	published map[string]int
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string]int)}
}

func (b *fakeBus) Publish(ctx context.Context, matchID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[matchID]++
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, matchID string) cache.Subscription {
	return &fakeSubscription{changes: make(chan struct{}, 8)}
}

type fakeSubscription struct {
	changes   chan struct{}
	closeOnce sync.Once
}

func (s *fakeSubscription) Changes() <-chan struct{} { return s.changes }

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.changes) })
	return nil
}

// mockBroadcaster records events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	playerEvents map[string][]string // matchID|userID -> message types
	matchEvents  map[string][]string // matchID -> message types
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[string][]string),
		matchEvents:  make(map[string][]string),
	}
}

func (b *mockBroadcaster) ToPlayer(matchID, userID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := matchID + "|" + userID
	b.playerEvents[key] = append(b.playerEvents[key], msgType)
}

func (b *mockBroadcaster) ToMatch(matchID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matchEvents[matchID] = append(b.matchEvents[matchID], msgType)
}

func (b *mockBroadcaster) matchSaw(matchID, msgType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, mt := range b.matchEvents[matchID] {
		if mt == msgType {
			return true
		}
	}
	return false
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		QuestionsPerRound: 3,
		QuestionTimerSec:  15,
		FeedbackDelaySec:  1,
		DefaultRounds:     3,
		MaxRounds:         9,
	}
}

func makeQuestions(n int) []model.Question {
	questions := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, model.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Text:          fmt.Sprintf("Question %d?", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
		})
	}
	return questions
}
