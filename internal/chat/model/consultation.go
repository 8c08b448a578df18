package model

import (
	"time"
)

// Consultation is one answered question, kept by the optional history store
type Consultation struct {
	ID         string    `bson:"_id" json:"id"`
	Persona    string    `bson:"persona" json:"persona"`
	Question   string    `bson:"question" json:"question"`
	Answer     string    `bson:"answer" json:"answer"`
	Model      string    `bson:"model" json:"model"`
	Cached     bool      `bson:"cached" json:"cached"`
	DurationMs int64     `bson:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
