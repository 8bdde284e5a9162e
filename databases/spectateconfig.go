package databases

// go generate: mockery --name SpectateConfigDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/landviz/collab-api/models"
)

const spectateConfigName = "spectateConfigs"

// SpectateConfigDatabase contains the methods to use with the spectate config database
type SpectateConfigDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.SpectateConfig, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.SpectateConfig, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	SoftDeleteByID(ctx context.Context, id primitive.ObjectID) error
	PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error)
}

type spectateConfigDatabase struct {
	db DatabaseHelper
}

// NewSpectateConfigDatabase initializes a new instance of spectate config database with the provided db connection
func NewSpectateConfigDatabase(db DatabaseHelper) SpectateConfigDatabase {
	return &spectateConfigDatabase{
		db: db,
	}
}

func (c *spectateConfigDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.SpectateConfig, error) {
	conf := &models.SpectateConfig{}
	err := c.db.Collection(spectateConfigName).FindOne(ctx, filter).Decode(&conf)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *spectateConfigDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.SpectateConfig, error) {
	var configs []models.SpectateConfig
	curr := c.db.Collection(spectateConfigName).Find(ctx, filter, opts...)
	err := curr.Decode(&configs)
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (c *spectateConfigDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res := c.db.Collection(spectateConfigName).InsertOne(ctx, document, opts...)
	return res, nil
}

func (c *spectateConfigDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return c.db.Collection(spectateConfigName).UpdateOne(ctx, filter, update, opts...)
}

// SoftDeleteByID flags a config deleted so a scheduled sweep can purge it later
func (c *spectateConfigDatabase) SoftDeleteByID(ctx context.Context, id primitive.ObjectID) error {
	now := primitive.NewDateTimeFromTime(time.Now())
	_, err := c.db.Collection(spectateConfigName).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deleted": true, "updatedAt": now}},
	)
	return err
}

// PurgeDeleted permanently removes soft-deleted configs not touched since olderThan
func (c *spectateConfigDatabase) PurgeDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	return c.db.Collection(spectateConfigName).DeleteMany(ctx, bson.M{
		"deleted":   true,
		"updatedAt": bson.M{"$lt": primitive.NewDateTimeFromTime(olderThan)},
	})
}
