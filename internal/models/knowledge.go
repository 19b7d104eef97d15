package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KBArticle lives in MongoDB and is searched through a $text index over
// title + body. Score is populated from the textScore projection on reads.
type KBArticle struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Body      string             `bson:"body" json:"body"`
	Locale    string             `bson:"locale" json:"locale"` // "ar" | "en"
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Score float64 `bson:"score,omitempty" json:"score,omitempty"`
}
