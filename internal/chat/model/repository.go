package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const consultationsCollection = "consultations"

// Repository stores answered consultations in MongoDB
type Repository struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Repository {
	return &Repository{db: db}
}

// RecordConsultation inserts a consultation, assigning an id and timestamp when unset
func (r *Repository) RecordConsultation(ctx context.Context, c *Consultation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.Collection(consultationsCollection).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}
	return nil
}

// RecentConsultations returns up to limit consultations, newest first
func (r *Repository) RecentConsultations(ctx context.Context, limit int64) ([]*Consultation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.db.Collection(consultationsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query consultations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*Consultation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode consultations: %w", err)
	}
	return out, nil
}

// Ping checks the underlying client, used by the health endpoints
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}
