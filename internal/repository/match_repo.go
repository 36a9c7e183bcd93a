package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"brainduel/internal/model"
)

// MatchRepo is the data-access contract for the shared match document.
// Writes are field-level partial updates with last-write-wins semantics; there
// is no optimistic concurrency control, so every write below is designed to be
// idempotent or guarded by a conditional filter.
type MatchRepo interface {
	Create(ctx context.Context, match *model.Match) error
	GetByID(ctx context.Context, id string) (*model.Match, error)
	ApplyUpdate(ctx context.Context, id string, fields bson.M) error
	AppendAnswer(ctx context.Context, id string, roundIdx int, slot model.PlayerSlot, answer model.Answer) error
	SetQuestions(ctx context.Context, id string, roundIdx int, questions []model.Question) (bool, error)
	ClaimRoundScoring(ctx context.Context, id string, roundIdx, player1Score, player2Score int) (bool, error)
	AdvanceRound(ctx context.Context, id string, fromRound int, nextTurn string) (bool, error)
	CompleteMatch(ctx context.Context, id string, player1Final, player2Final int, winnerID, loserID *string) (bool, error)
	ListOpenFor(ctx context.Context, userID string) ([]*model.Match, error)
}

type matchRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	users      *mongo.Collection
}

// NewMatchRepo creates a match repository backed by the given database.
func NewMatchRepo(client *mongo.Client, db *mongo.Database) MatchRepo {
	return &matchRepo{
		client:     client,
		collection: db.Collection("matches"),
		users:      db.Collection("users"),
	}
}

func (r *matchRepo) Create(ctx context.Context, match *model.Match) error {
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, match)
	return err
}

func (r *matchRepo) GetByID(ctx context.Context, id string) (*model.Match, error) {
	var match model.Match
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&match)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Match not found
		}
		return nil, err
	}
	return &match, nil
}

// ApplyUpdate sets the given dot-path fields on the match document.
func (r *matchRepo) ApplyUpdate(ctx context.Context, id string, fields bson.M) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	return err
}

// AppendAnswer appends one answer to the slot's answer array via $addToSet.
// Appending a structurally identical answer is a no-op, which makes double
// submission (timeout firing alongside a manual click) harmless.
func (r *matchRepo) AppendAnswer(ctx context.Context, id string, roundIdx int, slot model.PlayerSlot, answer model.Answer) error {
	field := fmt.Sprintf("rounds.%d.%s", roundIdx, slot.AnswersField())
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet": bson.M{field: answer},
	})
	return err
}

// SetQuestions writes the generated questions into the round, but only while
// the round's question list is still empty: the first writer wins and every
// later attempt reports false without modifying the document.
func (r *matchRepo) SetQuestions(ctx context.Context, id string, roundIdx int, questions []model.Question) (bool, error) {
	field := fmt.Sprintf("rounds.%d.questions", roundIdx)
	res, err := r.collection.UpdateOne(ctx, bson.M{
		"_id": id,
		field: bson.M{"$size": 0},
	}, bson.M{
		"$set": bson.M{field: questions},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// ClaimRoundScoring flips the round's scoresCalculated guard false -> true and
// writes both round scores in the same conditional update. Exactly one caller
// can win the claim; everyone else observes false.
func (r *matchRepo) ClaimRoundScoring(ctx context.Context, id string, roundIdx, player1Score, player2Score int) (bool, error) {
	prefix := fmt.Sprintf("rounds.%d.", roundIdx)
	res, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":                       id,
		prefix + "scoresCalculated": bson.M{"$ne": true},
	}, bson.M{
		"$set": bson.M{
			prefix + "scoresCalculated": true,
			prefix + "player1Score":     player1Score,
			prefix + "player2Score":     player2Score,
			"status":                    model.StatusRoundResults,
		},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// AdvanceRound moves the match from round-results of fromRound into category
// selection for the next round and flips the turn. The filter pins the
// transition to the round number, so a repeated push from the second client is
// a no-op.
func (r *matchRepo) AdvanceRound(ctx context.Context, id string, fromRound int, nextTurn string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx, bson.M{
		"_id":          id,
		"status":       model.StatusRoundResults,
		"currentRound": fromRound,
	}, bson.M{
		"$set": bson.M{
			"status":       model.StatusCategorySelect,
			"currentRound": fromRound + 1,
			"turn":         nextTurn,
		},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// CompleteMatch finalizes the match and applies the winner/loser counters in a
// single multi-document transaction, so the completion and the win/loss
// increments land together or not at all. A nil winnerID records a tie and
// leaves both users' counters untouched.
func (r *matchRepo) CompleteMatch(ctx context.Context, id string, player1Final, player2Final int, winnerID, loserID *string) (bool, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return false, err
	}
	defer session.EndSession(ctx)

	completed, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		set := bson.M{
			"status":            model.StatusComplete,
			"player1FinalScore": player1Final,
			"player2FinalScore": player2Final,
			"winnerId":          winnerID,
		}
		res, err := r.collection.UpdateOne(sc, bson.M{
			"_id":    id,
			"status": model.StatusRoundResults,
		}, bson.M{"$set": set})
		if err != nil {
			return false, err
		}
		if res.ModifiedCount == 0 {
			// Someone already completed the match; don't touch the counters.
			return false, nil
		}
		if winnerID != nil && loserID != nil {
			if _, err := r.users.UpdateOne(sc, bson.M{"_id": *winnerID}, bson.M{"$inc": bson.M{"wins": 1}}); err != nil {
				return false, err
			}
			if _, err := r.users.UpdateOne(sc, bson.M{"_id": *loserID}, bson.M{"$inc": bson.M{"losses": 1}}); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return completed.(bool), nil
}

// ListOpenFor returns lobby matches where the user is the challenged opponent
// and has not joined yet.
func (r *matchRepo) ListOpenFor(ctx context.Context, userID string) ([]*model.Match, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":     model.StatusLobby,
		"opponentId": userID,
		"player2Id":  bson.M{"$in": bson.A{nil, ""}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var matches []*model.Match
	if err = cursor.All(ctx, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}
