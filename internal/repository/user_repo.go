package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brainduel/internal/model"
)

// UserRepo stores player profiles. Win/loss counters are only ever incremented
// by the match-completion transaction in MatchRepo.
type UserRepo interface {
	Ensure(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	ListOnline(ctx context.Context, excludeID string) ([]*model.User, error)
}

type userRepo struct {
	collection *mongo.Collection
}

// NewUserRepo creates a user repository backed by the given database.
func NewUserRepo(db *mongo.Database) UserRepo {
	return &userRepo{
		collection: db.Collection("users"),
	}
}

// Ensure creates the user on first sign-in and returns the stored profile.
// An existing user keeps their counters; only name and avatar are refreshed.
func (r *userRepo) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	after := options.After
	var stored model.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": user.ID},
		bson.M{
			"$set": bson.M{
				"name":      user.Name,
				"avatarUrl": user.AvatarURL,
				"online":    true,
			},
			"$setOnInsert": bson.M{
				"wins":   0,
				"losses": 0,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(after),
	).Decode(&stored)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // User not found
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"online": online},
	})
	return err
}

// ListOnline returns every online user except the caller, for the dashboard's
// challenge list.
func (r *userRepo) ListOnline(ctx context.Context, excludeID string) ([]*model.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"online": true,
		"_id":    bson.M{"$ne": excludeID},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*model.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
