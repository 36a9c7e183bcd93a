package model

// User is a player profile. Wins and losses are only mutated by the
// match-completion transaction.
type User struct {
	ID        string `json:"id" bson:"_id"`
	Name      string `json:"name" bson:"name"`
	AvatarURL string `json:"avatarUrl" bson:"avatarUrl"`
	Wins      int    `json:"wins" bson:"wins"`
	Losses    int    `json:"losses" bson:"losses"`
	Online    bool   `json:"online" bson:"online"`
}

// GuestRequest is the request body for guest sign-in
type GuestRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// GuestResponse is returned on guest sign-in
type GuestResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
