package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// ApplicationStore implements ports.ApplicationStore. The internship title
// and employer are read from the internships collection.
type ApplicationStore struct {
	applications *mongo.Collection
	internships  *mongo.Collection
}

func NewApplicationStore(db *mongo.Database) *ApplicationStore {
	return &ApplicationStore{
		applications: db.Collection(collectionApplications),
		internships:  db.Collection(collectionInternships),
	}
}

type applicationDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	StudentID       string             `bson:"student_id"`
	InternshipID    string             `bson:"internship_id"`
	Status          string             `bson:"status"`
	StatusChangedAt *time.Time         `bson:"status_changed_at,omitempty"`
}

type internshipDoc struct {
	Title      string `bson:"title"`
	EmployerID string `bson:"employer_id"`
}

func (r *ApplicationStore) FindByID(ctx context.Context, id string) (*domain.Application, error) {
	oid, err := objectID(id, domain.ErrApplicationNotFound)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc applicationDoc
	if err := r.applications.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return r.withInternship(ctx, doc)
}

// UpdateStatus sets the status in a single FindOneAndUpdate and returns the
// post-update document.
func (r *ApplicationStore) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) (*domain.Application, error) {
	oid, err := objectID(id, domain.ErrApplicationNotFound)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":            string(status),
		"status_changed_at": at.UTC(),
		"updated_at":        at.UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc applicationDoc
	if err := r.applications.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("update application status: %w", err)
	}
	return r.withInternship(ctx, doc)
}

func (r *ApplicationStore) withInternship(ctx context.Context, doc applicationDoc) (*domain.Application, error) {
	app := &domain.Application{
		ID:              doc.ID.Hex(),
		StudentID:       doc.StudentID,
		InternshipID:    doc.InternshipID,
		Status:          domain.ApplicationStatus(doc.Status),
		StatusChangedAt: doc.StatusChangedAt,
	}

	iid, err := primitive.ObjectIDFromHex(doc.InternshipID)
	if err != nil {
		return app, nil
	}

	var in internshipDoc
	err = r.internships.FindOne(ctx, bson.M{"_id": iid}).Decode(&in)
	switch {
	case err == nil:
		app.InternshipTitle = in.Title
		app.EmployerID = in.EmployerID
	case !isNoDocuments(err):
		return nil, fmt.Errorf("find internship: %w", err)
	}
	return app, nil
}
