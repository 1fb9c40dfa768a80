package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"geoguesser-backend/internal/models"
)

const (
	listCacheKey = "cache:logs"
	listCacheTTL = 30 * time.Second

	// EventsChannel carries LogEvent payloads for the admin live feed.
	EventsChannel = "log_events"
)

// ErrLogNotFound is returned when a patch targets an unknown entry.
var ErrLogNotFound = fmt.Errorf("log entry not found")

// LogRepo owns the logs collection. Listing results are cached briefly in
// Redis and every write invalidates the cache and publishes a LogEvent.
type LogRepo struct {
	col    *mongo.Collection
	redis  *redis.Client
	logger *zap.Logger
}

func NewLogRepo(db *mongo.Database, redisClient *redis.Client, logger *zap.Logger) *LogRepo {
	return &LogRepo{
		col:    db.Collection("logs"),
		redis:  redisClient,
		logger: logger,
	}
}

// NormalizeGuess fills missing or empty guess fields with the "No data"
// placeholder and the unknown-radius sentinel, matching what the store has
// always persisted for partially filled guesses.
func NormalizeGuess(g models.LocationGuess) models.LocationGuess {
	fill := func(s string) string {
		if s == "" {
			return models.NoData
		}
		return s
	}
	g.Country = fill(g.Country)
	g.CountryCode = fill(g.CountryCode)
	g.State = fill(g.State)
	g.City = fill(g.City)
	g.Direction = fill(g.Direction)
	g.NearestCity = fill(g.NearestCity)
	g.Reasoning = fill(g.Reasoning)
	g.Confidence = fill(g.Confidence)
	if g.AccuracyRadiusKm == 0 {
		g.AccuracyRadiusKm = models.UnknownRadiusKm
	}
	return g
}

// Create assigns identity and timestamps and inserts the entry. The entry is
// mutated in place with the generated id.
func (r *LogRepo) Create(ctx context.Context, entry *models.LogEntry) error {
	entry.ID = primitive.NewObjectID()
	entry.Guess = NormalizeGuess(entry.Guess)
	if entry.Feedback == "" {
		entry.Feedback = models.FeedbackNotProvided
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}

	r.invalidateListCache(ctx)
	r.publish(ctx, models.LogEvent{Type: "created", Entry: entry})
	return nil
}

// Update applies a merge-patch: only fields set on the patch change. Returns
// the updated document.
func (r *LogRepo) Update(ctx context.Context, id string, patch models.LogUpdate) (*models.LogEntry, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid log id %q: %w", id, err)
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Guess != nil {
		set["guess"] = NormalizeGuess(*patch.Guess)
	}
	if patch.Feedback != nil {
		set["feedback"] = *patch.Feedback
	}
	if patch.CorrectedCountry != nil {
		set["correctedCountry"] = *patch.CorrectedCountry
	}
	if patch.CorrectedState != nil {
		set["correctedState"] = *patch.CorrectedState
	}
	if patch.CorrectedCity != nil {
		set["correctedCity"] = *patch.CorrectedCity
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.LogEntry
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return nil, ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update log entry: %w", err)
	}

	r.invalidateListCache(ctx)
	r.publish(ctx, models.LogEvent{Type: "updated", Entry: &updated})
	return &updated, nil
}

// ListAll returns every entry, newest first.
func (r *LogRepo) ListAll(ctx context.Context) ([]models.LogEntry, error) {
	if cached, err := r.redis.Get(ctx, listCacheKey).Result(); err == nil {
		var entries []models.LogEntry
		if json.Unmarshal([]byte(cached), &entries) == nil {
			return entries, nil
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}

	entries := []models.LogEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode log entries: %w", err)
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := r.redis.Set(ctx, listCacheKey, data, listCacheTTL).Err(); err != nil {
			r.logger.Warn("failed to cache log listing", zap.Error(err))
		}
	}
	return entries, nil
}

// DeleteAll removes every entry in the collection.
func (r *LogRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("delete all log entries: %w", err)
	}
	r.invalidateListCache(ctx)
	r.publish(ctx, models.LogEvent{Type: "cleared"})
	return nil
}

func (r *LogRepo) invalidateListCache(ctx context.Context) {
	if err := r.redis.Del(ctx, listCacheKey).Err(); err != nil {
		r.logger.Warn("failed to invalidate log listing cache", zap.Error(err))
	}
}

func (r *LogRepo) publish(ctx context.Context, event models.LogEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := r.redis.Publish(ctx, EventsChannel, string(data)).Err(); err != nil {
		r.logger.Warn("failed to publish log event", zap.Error(err))
	}
}
