package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"brainduel/internal/cache"
	"brainduel/internal/config"
	"brainduel/internal/model"
	"brainduel/internal/repository"
)

var (
	ErrRoundNotReady    = errors.New("round has no questions yet")
	ErrRoundComplete    = errors.New("you have already answered every question in this round")
	ErrUnknownQuestion  = errors.New("that is not the question you are on")
	ErrInvalidAnswer    = errors.New("answer is not one of the question's options")
	ErrQuestionsPresent = errors.New("round already has questions")
)

// RoundService runs one round per connected player: it has the creator fetch
// the questions exactly once, owns the per-question countdown, records
// answers, and advances the player through the round. Each player's session
// reacts only to fresh snapshots of the shared document; the local state here
// is never treated as authoritative.
type RoundService struct {
	matches     repository.MatchRepo
	bus         cache.MatchBus
	generator   *GeneratorService
	scores      *ScoreService
	broadcaster Broadcaster
	cfg         config.GameConfig
	log         *logrus.Logger

	mu         sync.Mutex
	attached   map[string]bool
	sessions   map[string]*roundSession
	generating map[string]bool
}

// roundSession is one player's position within the current round. States:
// counting down on a question, or holding for the feedback delay after an
// answer before the next question starts.
type roundSession struct {
	matchID     string
	userID      string
	roundNumber int
	questionIdx int
	questionID  string
	remaining   int
	holding     bool
	stop        chan struct{}
}

// NewRoundService creates a new round service.
func NewRoundService(matches repository.MatchRepo, bus cache.MatchBus, generator *GeneratorService, scores *ScoreService, cfg config.GameConfig, log *logrus.Logger) *RoundService {
	return &RoundService{
		matches:    matches,
		bus:        bus,
		generator:  generator,
		scores:     scores,
		cfg:        cfg,
		log:        log,
		attached:   make(map[string]bool),
		sessions:   make(map[string]*roundSession),
		generating: make(map[string]bool),
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *RoundService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func sessionKey(matchID, userID string) string {
	return matchID + "|" + userID
}

// HandleSnapshot is the per-player reaction to a new match snapshot. It is
// called for every change pushed by the subscription, so everything in here
// must be idempotent.
func (s *RoundService) HandleSnapshot(ctx context.Context, match *model.Match, userID string) {
	if err := s.scores.Resolve(ctx, match, userID); err != nil {
		s.log.WithError(err).Warn("score resolution failed")
	}

	if match == nil {
		s.clearAllFor(userID)
		return
	}
	if match.Status != model.StatusInProgress {
		s.clearSession(match.ID, userID)
		return
	}
	slot, ok := match.SlotOf(userID)
	if !ok {
		return
	}
	round := match.CurrentRoundEntry()
	if round == nil {
		return
	}

	if len(round.Questions) == 0 {
		s.clearSession(match.ID, userID)
		if match.IsCreator(userID) && round.Category != "" {
			s.ensureQuestions(match.ID, match.CurrentRound, round.Category)
		}
		return
	}

	if round.PlayerDone(slot) {
		// Re-entry guard: nothing left to answer, routing sends the player
		// to the round results.
		s.clearSession(match.ID, userID)
		return
	}

	idx := len(round.Answers(slot))
	s.ensureCountdown(match, userID, round, idx)
}

// ensureQuestions has the creator generate the round's questions exactly once.
// The in-process flag stops concurrent attempts from this instance; the
// conditional write in the repository makes the store itself first-writer-wins
// in case another instance raced us.
func (s *RoundService) ensureQuestions(matchID string, roundNumber int, category string) {
	genKey := fmt.Sprintf("%s|%d", matchID, roundNumber)
	s.mu.Lock()
	if s.generating[genKey] {
		s.mu.Unlock()
		return
	}
	s.generating[genKey] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.generating, genKey)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		questions, err := s.generator.Generate(ctx, category, s.cfg.QuestionsPerRound)
		if err != nil {
			// The round stays empty; the creator gets a manual retry.
			s.log.WithError(err).WithFields(logrus.Fields{
				"matchId":  matchID,
				"round":    roundNumber,
				"category": category,
			}).Warn("question generation failed")
			return
		}

		match, err := s.matches.GetByID(ctx, matchID)
		if err != nil || match == nil {
			return
		}
		idx := match.RoundIndex(roundNumber)
		if idx < 0 {
			return
		}

		wrote, err := s.matches.SetQuestions(ctx, matchID, idx, questions)
		if err != nil {
			s.log.WithError(err).WithField("matchId", matchID).Warn("failed to store questions")
			return
		}
		if wrote {
			s.log.WithFields(logrus.Fields{
				"matchId":  matchID,
				"round":    roundNumber,
				"category": category,
			}).Info("questions generated")
			if s.broadcaster != nil {
				s.broadcaster.ToMatch(matchID, "questions_ready", map[string]interface{}{
					"round":    roundNumber,
					"category": category,
				})
			}
			s.publish(ctx, matchID)
		}
	}()
}

// RetryQuestions re-attempts a failed generation. Creator only, and only
// while the round is still questionless.
func (s *RoundService) RetryQuestions(ctx context.Context, matchID, userID string) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return ErrMatchNotFound
	}
	if !match.IsCreator(userID) {
		return ErrNotCreator
	}
	if match.Status != model.StatusInProgress {
		return ErrWrongStatus
	}
	round := match.CurrentRoundEntry()
	if round == nil || round.Category == "" {
		return ErrWrongStatus
	}
	if len(round.Questions) > 0 {
		return ErrQuestionsPresent
	}
	s.ensureQuestions(match.ID, match.CurrentRound, round.Category)
	return nil
}

// SubmitAnswer records one answer for the player's current question. It is
// double-fire safe: the countdown expiring alongside a manual click, or the
// same click landing twice, leaves a single recorded answer.
func (s *RoundService) SubmitAnswer(ctx context.Context, matchID, userID, questionID, answer string) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return ErrMatchNotFound
	}
	if match.Status != model.StatusInProgress {
		return ErrWrongStatus
	}
	slot, ok := match.SlotOf(userID)
	if !ok {
		return ErrNotAPlayer
	}
	round := match.CurrentRoundEntry()
	if round == nil || len(round.Questions) == 0 {
		return ErrRoundNotReady
	}
	if _, already := round.AnswerTo(slot, questionID); already {
		return nil // duplicate submission of an answer that already landed
	}
	idx := len(round.Answers(slot))
	if idx >= len(round.Questions) {
		return ErrRoundComplete
	}
	question := &round.Questions[idx]
	if question.ID != questionID {
		return ErrUnknownQuestion
	}
	if answer != model.NoAnswer && !question.HasOption(answer) {
		return ErrInvalidAnswer
	}

	// Serialize against the countdown so a timeout and a click cannot both
	// get past the guard.
	s.mu.Lock()
	sess := s.sessions[sessionKey(matchID, userID)]
	if sess != nil && sess.roundNumber == match.CurrentRound && sess.questionIdx == idx {
		if sess.holding {
			s.mu.Unlock()
			return nil
		}
		sess.holding = true
		close(sess.stop)
		sess.stop = make(chan struct{})
	}
	s.mu.Unlock()

	err = s.matches.AppendAnswer(ctx, matchID, match.RoundIndex(match.CurrentRound), slot, model.Answer{
		QuestionID: questionID,
		Answer:     answer,
	})
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ToPlayer(matchID, userID, "answer_recorded", map[string]interface{}{
			"questionId":    questionID,
			"answer":        answer,
			"correctAnswer": question.CorrectAnswer,
			"correct":       answer == question.CorrectAnswer,
		})
	}
	s.publish(ctx, matchID)

	// Advance after the visible-feedback pause. The next snapshot restarts
	// the countdown for the following question.
	time.AfterFunc(time.Duration(s.cfg.FeedbackDelaySec)*time.Second, func() {
		s.mu.Lock()
		if sess := s.sessions[sessionKey(matchID, userID)]; sess != nil {
			sess.holding = false
		}
		attached := s.attached[sessionKey(matchID, userID)]
		s.mu.Unlock()
		if !attached {
			// The player disconnected during the pause; their session stays
			// torn down until they reattach.
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fresh, err := s.matches.GetByID(ctx, matchID)
		if err != nil {
			return
		}
		s.HandleSnapshot(ctx, fresh, userID)
	})

	return nil
}

// ensureCountdown starts the ticking countdown for the given question index if
// it is not already running. Snapshots for unrelated changes leave a running
// countdown untouched.
func (s *RoundService) ensureCountdown(match *model.Match, userID string, round *model.Round, idx int) {
	key := sessionKey(match.ID, userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached[key] {
		return
	}

	sess := s.sessions[key]
	if sess != nil {
		if sess.roundNumber == match.CurrentRound && (sess.questionIdx == idx || sess.holding) {
			return
		}
		close(sess.stop)
	}

	sess = &roundSession{
		matchID:     match.ID,
		userID:      userID,
		roundNumber: match.CurrentRound,
		questionIdx: idx,
		questionID:  round.Questions[idx].ID,
		remaining:   s.cfg.QuestionTimerSec,
		stop:        make(chan struct{}),
	}
	s.sessions[key] = sess
	go s.runCountdown(sess, sess.stop)
}

// runCountdown ticks once per second until the question is answered, the
// session is torn down, or the timer reaches zero and the sentinel answer is
// auto-submitted.
func (s *RoundService) runCountdown(sess *roundSession, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			sess.remaining--
			remaining := sess.remaining
			s.mu.Unlock()

			if s.broadcaster != nil {
				s.broadcaster.ToPlayer(sess.matchID, sess.userID, "countdown", map[string]interface{}{
					"round":       sess.roundNumber,
					"questionIdx": sess.questionIdx,
					"remaining":   remaining,
				})
			}

			if remaining <= 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				err := s.SubmitAnswer(ctx, sess.matchID, sess.userID, sess.questionID, model.NoAnswer)
				cancel()
				if err != nil {
					s.log.WithError(err).WithFields(logrus.Fields{
						"matchId": sess.matchID,
						"userId":  sess.userID,
					}).Warn("timeout auto-submit failed")
				}
				return
			}
		}
	}
}

// AttachPlayer marks the player's connection live. Countdowns only run for
// attached players; snapshots for anyone else never start timers.
func (s *RoundService) AttachPlayer(matchID, userID string) {
	s.mu.Lock()
	s.attached[sessionKey(matchID, userID)] = true
	s.mu.Unlock()
}

// DetachPlayer tears down the player's countdown when their connection goes
// away and pins it down: a pending feedback-delay continuation must not
// resurrect it. In-flight generation is not cancelled; its result is still
// written for whoever reconnects.
func (s *RoundService) DetachPlayer(matchID, userID string) {
	s.mu.Lock()
	delete(s.attached, sessionKey(matchID, userID))
	s.mu.Unlock()
	s.clearSession(matchID, userID)
}

func (s *RoundService) clearSession(matchID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(matchID, userID)
	if sess := s.sessions[key]; sess != nil {
		close(sess.stop)
		delete(s.sessions, key)
	}
}

// clearAllFor sweeps every session the player holds, for when their match
// document disappears entirely.
func (s *RoundService) clearAllFor(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sess := range s.sessions {
		if sess.userID == userID {
			close(sess.stop)
			delete(s.sessions, key)
		}
	}
}

func (s *RoundService) publish(ctx context.Context, matchID string) {
	if err := s.bus.Publish(ctx, matchID); err != nil {
		s.log.WithError(err).WithField("matchId", matchID).Warn("failed to publish match change")
	}
}
