package room

type SpaceDetails struct {
	Name      string `redis:"name" json:"name"`
	CreatorID string `redis:"creator_id" json:"creatorId"`
	CreatedAt int64  `redis:"created_at" json:"createdAt"`
}

type UserInfo struct {
	UserID   string `redis:"user_id" json:"userId"`
	Name     string `redis:"name" json:"name"`
	Username string `redis:"username" json:"username"`
	Email    string `redis:"email" json:"email,omitempty"`
	ImageURL string `redis:"image_url" json:"imageUrl,omitempty"`
}
