package patient

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/docstore"
)

type patientRepoMongo struct {
	store *docstore.Store
}

// NewPatientRepoMongo returns a PatientRepository on the patients collection.
func NewPatientRepoMongo(store *docstore.Store) PatientRepository {
	return &patientRepoMongo{store: store}
}

func (r *patientRepoMongo) col() *mongo.Collection {
	return r.store.Collection(docstore.ColPatients)
}

var byID = bson.D{{Key: "id", Value: 1}}

func idFilter(id int64) bson.D {
	return bson.D{{Key: "id", Value: id}}
}

func (r *patientRepoMongo) Insert(ctx context.Context, p *Patient) error {
	_, err := r.col().InsertOne(ctx, p)
	return wrapError("patient insert", err)
}

func (r *patientRepoMongo) InsertMany(ctx context.Context, patients []*Patient) error {
	if len(patients) == 0 {
		return nil
	}
	docs := make([]interface{}, len(patients))
	for i, p := range patients {
		docs[i] = p
	}
	_, err := r.col().InsertMany(ctx, docs)
	return wrapError("patient insert many", err)
}

func (r *patientRepoMongo) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	if err := r.col().FindOne(ctx, idFilter(id)).Decode(&p); err != nil {
		return nil, wrapError("patient get", err)
	}
	return &p, nil
}

func (r *patientRepoMongo) Update(ctx context.Context, p *Patient) error {
	res, err := r.col().UpdateOne(ctx, idFilter(p.ID), bson.D{{Key: "$set", Value: updateFields(p)}})
	if err != nil {
		return wrapError("patient update", err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// updateFields is every stored attribute except id and created_at.
func updateFields(p *Patient) bson.D {
	return bson.D{
		{Key: "gender", Value: p.Gender},
		{Key: "age", Value: p.Age},
		{Key: "hypertension", Value: p.Hypertension},
		{Key: "heart_disease", Value: p.HeartDisease},
		{Key: "ever_married", Value: p.EverMarried},
		{Key: "work_type", Value: p.WorkType},
		{Key: "Residence_type", Value: p.ResidenceType},
		{Key: "avg_glucose_level", Value: p.AvgGlucoseLevel},
		{Key: "bmi", Value: p.BMI},
		{Key: "smoking_status", Value: p.SmokingStatus},
		{Key: "stroke", Value: p.Stroke},
		{Key: "updated_at", Value: p.UpdatedAt},
	}
}

func (r *patientRepoMongo) Delete(ctx context.Context, id int64) error {
	res, err := r.col().DeleteOne(ctx, idFilter(id))
	if err != nil {
		return wrapError("patient delete", err)
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *patientRepoMongo) List(ctx context.Context, offset, limit int) ([]*Patient, error) {
	opts := options.Find().SetSort(byID).SetSkip(int64(offset)).SetLimit(int64(limit))
	return r.findMany(ctx, "patient list", bson.D{}, opts)
}

func (r *patientRepoMongo) Count(ctx context.Context) (int64, error) {
	n, err := r.col().CountDocuments(ctx, bson.D{})
	return n, wrapError("patient count", err)
}

func (r *patientRepoMongo) CountStroke(ctx context.Context) (int64, error) {
	n, err := r.col().CountDocuments(ctx, bson.D{{Key: "stroke", Value: 1}})
	return n, wrapError("patient count stroke", err)
}

func (r *patientRepoMongo) MaxID(ctx context.Context) (int64, error) {
	var p Patient
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}}).SetProjection(bson.D{{Key: "id", Value: 1}})
	err := r.col().FindOne(ctx, bson.D{}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapError("patient max id", err)
	}
	return p.ID, nil
}

func (r *patientRepoMongo) Search(ctx context.Context, q Query, limit int) ([]*Patient, error) {
	opts := options.Find().SetSort(byID).SetLimit(int64(limit))
	return r.findMany(ctx, "patient search", searchFilter(q), opts)
}

func (r *patientRepoMongo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// searchFilter is the document filter equivalent of Query.Matches.
func searchFilter(q Query) bson.D {
	switch q.Field {
	case SearchByID:
		return idFilter(q.ID)
	case SearchByGender:
		return bson.D{{Key: string(q.Field), Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(q.Term) + "$", Options: "i"}}}
	default:
		return bson.D{{Key: string(q.Field), Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(q.Term), Options: "i"}}}
	}
}

func (r *patientRepoMongo) findMany(ctx context.Context, op string, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*Patient, error) {
	cursor, err := r.col().Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(op, err)
	}
	defer cursor.Close(ctx)

	results := []*Patient{}
	for cursor.Next(ctx) {
		var p Patient
		if err := cursor.Decode(&p); err != nil {
			return nil, apperr.Store(op, err)
		}
		results = append(results, &p)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Store(op, err)
	}
	return results, nil
}

// wrapError maps driver errors onto the apperr taxonomy.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrDuplicate
	}
	return apperr.Store(op, err)
}
