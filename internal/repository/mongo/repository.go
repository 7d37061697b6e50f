package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// VideoRepository keeps fetched video metadata so that restarts do not repeat
// platform lookups.
type VideoRepository struct {
	collection *mongo.Collection
}

type formatDoc struct {
	ID        string `bson:"id"`
	Quality   string `bson:"quality"`
	Container string `bson:"container"`
	MimeType  string `bson:"mimeType,omitempty"`
	Height    int    `bson:"height,omitempty"`
	Bitrate   int64  `bson:"bitrate,omitempty"`
	HasVideo  bool   `bson:"hasVideo"`
	HasAudio  bool   `bson:"hasAudio"`
	FileSize  int64  `bson:"filesize,omitempty"`
	ExactSize bool   `bson:"exactSize,omitempty"`
}

type videoDoc struct {
	ID              string      `bson:"_id"`
	Title           string      `bson:"title"`
	Description     string      `bson:"description,omitempty"`
	ChannelName     string      `bson:"channelName"`
	Thumbnail       string      `bson:"thumbnail,omitempty"`
	DurationSeconds int64       `bson:"durationSeconds,omitempty"`
	Views           int64       `bson:"views"`
	UploadDate      string      `bson:"uploadDate,omitempty"`
	Formats         []formatDoc `bson:"formats,omitempty"`
	FetchedAt       int64       `bson:"fetchedAt"`
}

func NewVideoRepository(client *mongo.Client, dbName, collectionName string) *VideoRepository {
	return &VideoRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *VideoRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "fetchedAt", Value: -1}}},
		{Keys: bson.D{{Key: "channelName", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *VideoRepository) Get(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error) {
	var doc videoDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.VideoMetadata{}, domain.ErrNotFound
		}
		return domain.VideoMetadata{}, err
	}
	return fromDoc(doc), nil
}

// Upsert replaces the stored metadata for meta.ID. A known duration is kept
// when meta carries none.
func (r *VideoRepository) Upsert(ctx context.Context, meta domain.VideoMetadata) error {
	doc := toDoc(meta)
	set := bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"channelName": doc.ChannelName,
		"thumbnail":   doc.Thumbnail,
		"views":       doc.Views,
		"uploadDate":  doc.UploadDate,
		"formats":     doc.Formats,
		"fetchedAt":   doc.FetchedAt,
	}
	if doc.DurationSeconds > 0 {
		set["durationSeconds"] = doc.DurationSeconds
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	return err
}

// DurationStore exposes the stored durations as a shared duration cache.
func (r *VideoRepository) DurationStore() *DurationStore {
	return &DurationStore{collection: r.collection}
}

// DurationStore reads and writes only the durationSeconds field. Put never
// replaces a positive value.
type DurationStore struct {
	collection *mongo.Collection
}

func (s *DurationStore) Get(ctx context.Context, id domain.VideoID) (int64, bool, error) {
	var doc struct {
		DurationSeconds int64 `bson:"durationSeconds"`
	}
	opts := options.FindOne().SetProjection(bson.M{"durationSeconds": 1})
	err := s.collection.FindOne(ctx, bson.M{"_id": string(id)}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return doc.DurationSeconds, doc.DurationSeconds > 0, nil
}

func (s *DurationStore) Put(ctx context.Context, id domain.VideoID, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$setOnInsert": bson.M{"durationSeconds": seconds}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return nil
	}
	_, err = s.collection.UpdateOne(ctx,
		bson.M{"_id": string(id), "$or": bson.A{
			bson.M{"durationSeconds": bson.M{"$exists": false}},
			bson.M{"durationSeconds": bson.M{"$lte": 0}},
		}},
		bson.M{"$set": bson.M{"durationSeconds": seconds}},
	)
	return err
}

func toDoc(meta domain.VideoMetadata) videoDoc {
	formats := make([]formatDoc, 0, len(meta.Formats))
	for _, f := range meta.Formats {
		formats = append(formats, formatDoc{
			ID:        f.ID,
			Quality:   f.Quality,
			Container: f.Container,
			MimeType:  f.MimeType,
			Height:    f.Height,
			Bitrate:   f.Bitrate,
			HasVideo:  f.HasVideo,
			HasAudio:  f.HasAudio,
			FileSize:  f.FileSize,
			ExactSize: f.ExactSize,
		})
	}
	fetchedAt := meta.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	return videoDoc{
		ID:              string(meta.ID),
		Title:           meta.Title,
		Description:     meta.Description,
		ChannelName:     meta.ChannelName,
		Thumbnail:       meta.Thumbnail,
		DurationSeconds: meta.DurationSeconds,
		Views:           meta.Views,
		UploadDate:      meta.UploadDate,
		Formats:         formats,
		FetchedAt:       fetchedAt.Unix(),
	}
}

// fromDoc restores stored metadata. Format URLs are signed and short-lived,
// so they are never persisted.
func fromDoc(doc videoDoc) domain.VideoMetadata {
	formats := make([]domain.Format, 0, len(doc.Formats))
	for _, f := range doc.Formats {
		formats = append(formats, domain.Format{
			ID:        f.ID,
			Quality:   f.Quality,
			Container: f.Container,
			MimeType:  f.MimeType,
			Height:    f.Height,
			Bitrate:   f.Bitrate,
			HasVideo:  f.HasVideo,
			HasAudio:  f.HasAudio,
			FileSize:  f.FileSize,
			ExactSize: f.ExactSize,
		})
	}
	return domain.VideoMetadata{
		ID:              domain.VideoID(doc.ID),
		Title:           doc.Title,
		Description:     doc.Description,
		ChannelName:     doc.ChannelName,
		Thumbnail:       doc.Thumbnail,
		DurationSeconds: doc.DurationSeconds,
		Views:           doc.Views,
		UploadDate:      doc.UploadDate,
		Formats:         formats,
		FetchedAt:       time.Unix(doc.FetchedAt, 0).UTC(),
	}
}
