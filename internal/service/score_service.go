package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"brainduel/internal/cache"
	"brainduel/internal/model"
	"brainduel/internal/repository"
)

// ScoreService finalizes rounds once both players have answered everything.
// Only the creator's session performs the scoring write, and the
// scoresCalculated compare-and-set guarantees the round is tallied exactly
// once no matter how many times both clients observe "both answered"
// simultaneously.
type ScoreService struct {
	matches repository.MatchRepo
	bus     cache.MatchBus
	log     *logrus.Logger
}

// NewScoreService creates a new score service.
func NewScoreService(matches repository.MatchRepo, bus cache.MatchBus, log *logrus.Logger) *ScoreService {
	return &ScoreService{
		matches: matches,
		bus:     bus,
		log:     log,
	}
}

// Resolve scores the current round if it is ready. It is safe to call on every
// snapshot from any session: non-creators, unfinished rounds, and
// already-scored rounds all fall through without writing.
func (s *ScoreService) Resolve(ctx context.Context, match *model.Match, actorID string) error {
	if match == nil {
		return nil
	}
	if match.Status != model.StatusInProgress && match.Status != model.StatusRoundResults {
		return nil
	}
	// Authority is re-checked here against the fresh document, not against
	// whatever the caller rendered from.
	if !match.IsCreator(actorID) {
		return nil
	}
	round := match.CurrentRoundEntry()
	if round == nil || !round.BothAnswered() {
		return nil
	}

	if !round.ScoresCalculated {
		player1Score, player2Score := round.Score()
		claimed, err := s.matches.ClaimRoundScoring(ctx, match.ID, match.RoundIndex(match.CurrentRound), player1Score, player2Score)
		if err != nil {
			return fmt.Errorf("failed to score round: %w", err)
		}
		if !claimed {
			// The other writer won the guard; nothing left to do here.
			return nil
		}
		s.log.WithFields(logrus.Fields{
			"matchId":      match.ID,
			"round":        match.CurrentRound,
			"player1Score": player1Score,
			"player2Score": player2Score,
		}).Info("round scored")
		s.publish(ctx, match.ID)
	}

	if match.IsFinalRound() {
		return s.complete(ctx, match.ID)
	}
	return nil
}

// complete re-reads the match so the just-claimed round scores are included,
// sums the finals, and lands match completion together with the win/loss
// counters in one transaction.
func (s *ScoreService) complete(ctx context.Context, matchID string) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil || match.Status == model.StatusComplete {
		return nil
	}

	player1Final, player2Final := match.FinalScores()

	var winnerID, loserID *string
	switch {
	case player1Final > player2Final:
		winnerID, loserID = &match.Player1ID, &match.Player2ID
	case player2Final > player1Final:
		winnerID, loserID = &match.Player2ID, &match.Player1ID
	}
	// Equal finals leave winnerID nil: a tie.

	completed, err := s.matches.CompleteMatch(ctx, matchID, player1Final, player2Final, winnerID, loserID)
	if err != nil {
		return fmt.Errorf("failed to complete match: %w", err)
	}
	if completed {
		fields := logrus.Fields{
			"matchId":           matchID,
			"player1FinalScore": player1Final,
			"player2FinalScore": player2Final,
		}
		if winnerID != nil {
			fields["winner"] = *winnerID
		}
		s.log.WithFields(fields).Info("match complete")
		s.publish(ctx, matchID)
	}
	return nil
}

func (s *ScoreService) publish(ctx context.Context, matchID string) {
	if err := s.bus.Publish(ctx, matchID); err != nil {
		s.log.WithError(err).WithField("matchId", matchID).Warn("failed to publish match change")
	}
}
