package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veloclub/sortie/internal/domain/model"
)

const mongoConnectTimeout = 10 * time.Second

// MongoStore implements Store on MongoDB, the document backend the club's
// CMS already runs on. One collection per record type, _id carrying the
// record id.
type MongoStore struct {
	client     *mongo.Client
	members    *mongo.Collection
	events     *mongo.Collection
	attendance *mongo.Collection
}

// NewMongoStore connects to the given URI and prepares collections and
// indexes in the named database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		members:    db.Collection("members"),
		events:     db.Collection("events"),
		attendance: db.Collection("attendance"),
	}

	// One event per calendar date.
	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "iso_date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create event index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ListMembers(ctx context.Context) ([]model.Member, error) {
	cur, err := s.members.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []model.Member
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetMember(ctx context.Context, id string) (model.Member, error) {
	var m model.Member
	err := s.members.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Member{}, ErrNotFound
	}
	return m, err
}

func (s *MongoStore) CreateMember(ctx context.Context, m *model.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.ParticipationCount = len(m.AttendedDates)
	if m.AttendedDates == nil {
		m.AttendedDates = []string{}
	}
	_, err := s.members.InsertOne(ctx, m)
	return err
}

func (s *MongoStore) UpdateMember(ctx context.Context, m *model.Member) error {
	res, err := s.members.ReplaceOne(ctx, bson.D{{Key: "_id", Value: m.ID}}, m)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteMember(ctx context.Context, id string) error {
	res, err := s.members.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	cur, err := s.events.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "iso_date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []model.Event
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var e model.Event
	err := s.events.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Event{}, ErrNotFound
	}
	return e, err
}

func (s *MongoStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.events.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateDate
	}
	return err
}

func (s *MongoStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	res, err := s.events.ReplaceOne(ctx, bson.D{{Key: "_id", Value: e.ID}}, e)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.events.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.attendance.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

func (s *MongoStore) GetAttendance(ctx context.Context, eventID string) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := s.attendance.FindOne(ctx, bson.D{{Key: "_id", Value: eventID}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.AttendanceRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *MongoStore) PutAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	_, err := s.attendance.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: rec.EventID}},
		rec,
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) DeleteAttendance(ctx context.Context, eventID string) error {
	_, err := s.attendance.DeleteOne(ctx, bson.D{{Key: "_id", Value: eventID}})
	return err
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
