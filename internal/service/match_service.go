package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"brainduel/internal/cache"
	"brainduel/internal/config"
	"brainduel/internal/model"
	"brainduel/internal/repository"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchFull       = errors.New("match already has two players")
	ErrNotCreator      = errors.New("only the match creator may do this")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrNotAPlayer      = errors.New("you are not a player in this match")
	ErrWrongStatus     = errors.New("match is not in the right state for this action")
	ErrRoundsLocked    = errors.New("rounds cannot be changed after a player has joined")
	ErrMissingCategory = errors.New("category is required")
)

// MatchService owns the match lifecycle: creation, joining, starting, the
// turn-guarded category selection, and the status -> view routing table.
type MatchService struct {
	matches repository.MatchRepo
	users   repository.UserRepo
	bus     cache.MatchBus
	cfg     config.GameConfig
	log     *logrus.Logger
}

// NewMatchService creates a new match service.
func NewMatchService(matches repository.MatchRepo, users repository.UserRepo, bus cache.MatchBus, cfg config.GameConfig, log *logrus.Logger) *MatchService {
	return &MatchService{
		matches: matches,
		users:   users,
		bus:     bus,
		cfg:     cfg,
		log:     log,
	}
}

// Create opens a new lobby match with the creator as player one. opponentID
// optionally addresses the challenge to a specific player for their open-games
// list.
func (s *MatchService) Create(ctx context.Context, creatorID, opponentID string, numberOfRounds int) (*model.Match, error) {
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}
	if creator == nil {
		return nil, fmt.Errorf("creator profile missing")
	}

	if numberOfRounds <= 0 {
		numberOfRounds = s.cfg.DefaultRounds
	}
	if numberOfRounds > s.cfg.MaxRounds {
		numberOfRounds = s.cfg.MaxRounds
	}

	match := &model.Match{
		ID:             uuid.New().String(),
		CreatorID:      creatorID,
		OpponentID:     opponentID,
		Player1ID:      creatorID,
		Players:        map[string]model.User{creatorID: *creator},
		Status:         model.StatusLobby,
		NumberOfRounds: numberOfRounds,
		Rounds:         []model.Round{},
		CurrentRound:   1,
		Turn:           creatorID,
	}

	if err := s.matches.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"matchId": match.ID,
		"creator": creatorID,
		"rounds":  numberOfRounds,
	}).Info("match created")

	return match, nil
}

// Get returns the match, or ErrMatchNotFound.
func (s *MatchService) Get(ctx context.Context, matchID string) (*model.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// ListOpenFor returns lobby matches addressed to the user.
func (s *MatchService) ListOpenFor(ctx context.Context, userID string) ([]*model.Match, error) {
	return s.matches.ListOpenFor(ctx, userID)
}

// Join sets the joiner as player two with their profile snapshot. Joining a
// match you are already in is a no-op.
func (s *MatchService) Join(ctx context.Context, matchID, userID string) (*model.Match, error) {
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Player1ID == userID || match.Player2ID == userID {
		return match, nil
	}
	if match.Player2ID != "" {
		return nil, ErrMatchFull
	}
	if match.Status != model.StatusLobby {
		return nil, ErrWrongStatus
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load joiner: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("joiner profile missing")
	}

	err = s.matches.ApplyUpdate(ctx, matchID, bson.M{
		"player2Id":          userID,
		"players." + userID: *user,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join match: %w", err)
	}

	s.publish(ctx, matchID)
	return s.Get(ctx, matchID)
}

// SetRounds changes the match length. Creator only, lobby only, and locked
// once an opponent has joined.
func (s *MatchService) SetRounds(ctx context.Context, matchID, userID string, numberOfRounds int) error {
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.IsCreator(userID) {
		return ErrNotCreator
	}
	if match.Status != model.StatusLobby {
		return ErrWrongStatus
	}
	if match.Player2ID != "" {
		return ErrRoundsLocked
	}
	if numberOfRounds < 1 || numberOfRounds > s.cfg.MaxRounds {
		return fmt.Errorf("rounds must be between 1 and %d", s.cfg.MaxRounds)
	}

	if err := s.matches.ApplyUpdate(ctx, matchID, bson.M{"numberOfRounds": numberOfRounds}); err != nil {
		return err
	}
	s.publish(ctx, matchID)
	return nil
}

// Start moves the lobby into category selection, pre-populating one empty
// round shell per scheduled round.
func (s *MatchService) Start(ctx context.Context, matchID, userID string) error {
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.IsCreator(userID) {
		return ErrNotCreator
	}
	if match.Status != model.StatusLobby {
		return ErrWrongStatus
	}
	if match.Player2ID == "" {
		return fmt.Errorf("waiting for a second player")
	}
	if err := ensureTransition(match, model.StatusCategorySelect); err != nil {
		return err
	}

	rounds := make([]model.Round, match.NumberOfRounds)
	for i := range rounds {
		rounds[i] = model.NewRoundShell(i + 1)
	}

	err = s.matches.ApplyUpdate(ctx, matchID, bson.M{
		"status": model.StatusCategorySelect,
		"rounds": rounds,
	})
	if err != nil {
		return fmt.Errorf("failed to start match: %w", err)
	}

	s.log.WithField("matchId", matchID).Info("match started")
	s.publish(ctx, matchID)
	return nil
}

// SelectCategory is the turn-holder's single write of a round's category. The
// turn is re-checked against the freshly read document at write time, never
// against what the caller believed when rendering. A duplicate submit of the
// same category after the first one landed is a no-op.
func (s *MatchService) SelectCategory(ctx context.Context, matchID, userID, category string) error {
	if category == "" {
		return ErrMissingCategory
	}
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if !match.MyTurn(userID) {
		return ErrNotYourTurn
	}

	if match.Status == model.StatusInProgress {
		if round := match.CurrentRoundEntry(); round != nil && round.Category == category {
			return nil // slow duplicate of a write that already landed
		}
		return ErrWrongStatus
	}
	if match.Status != model.StatusCategorySelect {
		return ErrWrongStatus
	}
	if err := ensureTransition(match, model.StatusInProgress); err != nil {
		return err
	}

	idx := match.RoundIndex(match.CurrentRound)
	fields := bson.M{"status": model.StatusInProgress}
	if idx < 0 {
		// Round shell was never written; synthesize it rather than fail.
		shell := model.NewRoundShell(match.CurrentRound)
		shell.Category = category
		fields[fmt.Sprintf("rounds.%d", match.CurrentRound-1)] = shell
	} else {
		fields[fmt.Sprintf("rounds.%d.category", idx)] = category
	}

	if err := s.matches.ApplyUpdate(ctx, matchID, fields); err != nil {
		return fmt.Errorf("failed to select category: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"matchId":  matchID,
		"round":    match.CurrentRound,
		"category": category,
	}).Info("category selected")
	s.publish(ctx, matchID)
	return nil
}

// NextRound pushes the round-results -> category-select transition for the
// next round and flips the turn. Either player may push it once the round has
// been scored; the conditional write makes a repeated push harmless. On the
// final round there is nothing to push: scoring already completed the match.
func (s *MatchService) NextRound(ctx context.Context, matchID, userID string) error {
	match, err := s.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if _, ok := match.SlotOf(userID); !ok {
		return ErrNotAPlayer
	}
	if match.Status == model.StatusComplete {
		return nil
	}
	if match.Status == model.StatusCategorySelect {
		if prev := match.RoundIndex(match.CurrentRound - 1); prev >= 0 && match.Rounds[prev].ScoresCalculated {
			return nil // slow duplicate of an advance that already landed
		}
		return ErrWrongStatus
	}
	if match.Status != model.StatusRoundResults {
		return ErrWrongStatus
	}
	round := match.CurrentRoundEntry()
	if round == nil || !round.ScoresCalculated {
		return ErrWrongStatus
	}
	if match.IsFinalRound() {
		return nil // completion lands via the score resolver
	}
	if err := ensureTransition(match, model.StatusCategorySelect); err != nil {
		return err
	}

	nextTurn := match.OpponentOf(match.Turn)
	moved, err := s.matches.AdvanceRound(ctx, matchID, match.CurrentRound, nextTurn)
	if err != nil {
		return fmt.Errorf("failed to advance round: %w", err)
	}
	if moved {
		s.log.WithFields(logrus.Fields{
			"matchId": matchID,
			"round":   match.CurrentRound + 1,
			"turn":    nextTurn,
		}).Info("advanced to next round")
		s.publish(ctx, matchID)
	}
	return nil
}

// ensureTransition enforces the forward-only status invariant on every status
// write this service performs.
func ensureTransition(match *model.Match, to model.MatchStatus) error {
	if !model.CanTransition(match.Status, to) {
		return ErrWrongStatus
	}
	return nil
}

// Route maps match status to the view a client should display. A missing
// match routes home.
func (s *MatchService) Route(match *model.Match) model.Destination {
	if match == nil {
		return model.DestHome
	}
	switch match.Status {
	case model.StatusLobby:
		return model.DestLobby
	case model.StatusCategorySelect:
		return model.DestCategorySelect
	case model.StatusInProgress:
		return model.DestRound
	case model.StatusRoundResults:
		return model.DestRoundResults
	case model.StatusComplete:
		return model.DestFinalResults
	default:
		return model.DestHome
	}
}

// RouteFor is Route with the one per-player refinement: a player who has
// finished answering waits on the round-results view while the opponent is
// still in the round.
func (s *MatchService) RouteFor(match *model.Match, userID string) model.Destination {
	dest := s.Route(match)
	if match == nil || dest != model.DestRound {
		return dest
	}
	if slot, ok := match.SlotOf(userID); ok {
		if round := match.CurrentRoundEntry(); round != nil && round.PlayerDone(slot) {
			return model.DestRoundResults
		}
	}
	return dest
}

func (s *MatchService) publish(ctx context.Context, matchID string) {
	if err := s.bus.Publish(ctx, matchID); err != nil {
		s.log.WithError(err).WithField("matchId", matchID).Warn("failed to publish match change")
	}
}
