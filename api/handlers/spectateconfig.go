package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/api"
	"github.com/landviz/collab-api/config"
	"github.com/landviz/collab-api/databases"
	"github.com/landviz/collab-api/models"
)

// SpectateConfig exported for testing purposes
type SpectateConfig struct {
	DB databases.SpectateConfigDatabase
}

// SpectateConfigsByOwnerHandler returns all live configs owned by the given user
func (s SpectateConfig) SpectateConfigsByOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		config.ErrorStatus("ownerId is required", http.StatusBadRequest, w, fmt.Errorf("missing ownerId query parameter"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := s.DB.Find(ctx, bson.M{"ownerId": ownerID, "deleted": false})
	if err != nil {
		config.ErrorStatus("failed to get spectate configs", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.SpectateConfig{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// SpectateConfigByIDHandler returns a config by ID
func (s SpectateConfig) SpectateConfigByIDHandler(w http.ResponseWriter, r *http.Request) {
	configID := mux.Vars(r)["spectate_config_id"]

	zap.S().Debugf("spectate_config_id: %v", configID)

	cID, err := primitive.ObjectIDFromHex(configID)
	if err != nil {
		config.ErrorStatus("invalid spectate config id", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := s.DB.FindOne(ctx, bson.M{"_id": cID, "deleted": false})
	if err != nil {
		config.ErrorStatus("failed to get spectate config by ID", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateSpectateConfigHandler creates a new projection preset
func (s SpectateConfig) CreateSpectateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var conf models.SpectateConfig
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validateSpectateConfig(conf); err != nil {
		config.ErrorStatus("invalid spectate config", http.StatusBadRequest, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	conf.ID = primitive.NewObjectID()
	conf.Deleted = false
	conf.CreatedAt = now
	conf.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := s.DB.InsertOne(ctx, conf); err != nil {
		config.ErrorStatus("failed to create spectate config", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(conf)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UpdateSpectateConfigHandler replaces the name and device list of an owned config
func (s SpectateConfig) UpdateSpectateConfigHandler(w http.ResponseWriter, r *http.Request) {
	configID := mux.Vars(r)["spectate_config_id"]
	cID, err := primitive.ObjectIDFromHex(configID)
	if err != nil {
		config.ErrorStatus("invalid spectate config id", http.StatusBadRequest, w, err)
		return
	}

	var conf models.SpectateConfig
	if err := json.NewDecoder(r.Body).Decode(&conf); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validateSpectateConfig(conf); err != nil {
		config.ErrorStatus("invalid spectate config", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := s.DB.FindOne(ctx, bson.M{"_id": cID, "deleted": false})
	if err != nil {
		config.ErrorStatus("failed to get spectate config by ID", http.StatusNotFound, w, err)
		return
	}
	if existing.OwnerID != conf.OwnerID {
		config.ErrorStatus("cannot edit a spectate config you do not own", http.StatusForbidden, w,
			fmt.Errorf("owner %s attempted to edit config of %s", conf.OwnerID, existing.OwnerID))
		return
	}

	update := bson.M{"$set": bson.M{
		"name":      conf.Name,
		"devices":   conf.Devices,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}}
	if _, err := s.DB.UpdateOne(ctx, bson.M{"_id": cID}, update); err != nil {
		config.ErrorStatus("failed to update spectate config", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "updated"}`))
}

// DeleteSpectateConfigHandler soft-deletes an owned config; a scheduled sweep
// purges it permanently later
func (s SpectateConfig) DeleteSpectateConfigHandler(w http.ResponseWriter, r *http.Request) {
	configID := mux.Vars(r)["spectate_config_id"]
	cID, err := primitive.ObjectIDFromHex(configID)
	if err != nil {
		config.ErrorStatus("invalid spectate config id", http.StatusBadRequest, w, err)
		return
	}
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		config.ErrorStatus("ownerId is required", http.StatusBadRequest, w, fmt.Errorf("missing ownerId query parameter"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	existing, err := s.DB.FindOne(ctx, bson.M{"_id": cID, "deleted": false})
	if err != nil {
		config.ErrorStatus("failed to get spectate config by ID", http.StatusNotFound, w, err)
		return
	}
	if existing.OwnerID != ownerID {
		config.ErrorStatus("cannot delete a spectate config you do not own", http.StatusForbidden, w,
			fmt.Errorf("owner %s attempted to delete config of %s", ownerID, existing.OwnerID))
		return
	}

	if err := s.DB.SoftDeleteByID(ctx, cID); err != nil {
		config.ErrorStatus("failed to delete spectate config", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "deleted"}`))
}

func validateSpectateConfig(conf models.SpectateConfig) error {
	if conf.Name == "" {
		return fmt.Errorf("name is required")
	}
	if conf.OwnerID == "" {
		return fmt.Errorf("ownerId is required")
	}
	for i, d := range conf.Devices {
		if d.DeviceID == "" {
			return fmt.Errorf("devices[%d] is missing a deviceId", i)
		}
	}
	return nil
}
