//go:build !js && !wasm
// +build !js,!wasm

// Package storage persists classification history and registered model
// artifacts in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/CrySense/pkg/models"
	"github.com/himanishpuri/CrySense/pkg/utils"
)

const DefaultDBFile = "crysense.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Classification rows are ordered by Seq; ID is the public identifier.
type Classification struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"type:varchar(36);uniqueIndex:idx_classification_id"`
	AudioPath     string `gorm:"index:idx_classification_audio"`
	Class         string `gorm:"index:idx_classification_class"`
	Confidence    float64
	Probabilities map[string]float64 `gorm:"serializer:json"`
	ModelID       string             `gorm:"type:varchar(64);index:idx_classification_model"`
	FeatureCount  int
	Reconciled    string
	DurationMs    int
	CreatedAt     time.Time
}

type Model struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Name          string `gorm:"index:idx_model_name"`
	Path          string
	Kind          string
	Checksum      string   `gorm:"type:varchar(64);uniqueIndex:idx_model_checksum"`
	ClassNames    []string `gorm:"serializer:json"`
	FeatureCount  int
	ParamsVersion string
	CreatedAt     time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("CRYSENSE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Classification{}, &Model{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveClassification stores rec and returns its ID. A missing ID or
// timestamp is filled in.
func (c *DBClient) SaveClassification(rec models.Classification) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if rec.ID == "" {
		rec.ID = utils.GenerateUUID()
	}
	row := Classification{
		ID:            rec.ID,
		AudioPath:     rec.AudioPath,
		Class:         rec.Class,
		Confidence:    rec.Confidence,
		Probabilities: rec.Probabilities,
		ModelID:       rec.ModelID,
		FeatureCount:  rec.FeatureCount,
		Reconciled:    rec.Reconciled,
		DurationMs:    rec.DurationMs,
		CreatedAt:     rec.CreatedAt,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return "", fmt.Errorf("creating classification: %w", err)
	}
	return row.ID, nil
}

// ListClassifications returns the most recent records first. limit <= 0
// returns all of them.
func (c *DBClient) ListClassifications(limit int) ([]models.Classification, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Classification
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying classifications: %w", err)
	}
	out := make([]models.Classification, len(rows))
	for i, r := range rows {
		out[i] = models.Classification{
			ID:            r.ID,
			AudioPath:     r.AudioPath,
			Class:         r.Class,
			Confidence:    r.Confidence,
			Probabilities: r.Probabilities,
			ModelID:       r.ModelID,
			FeatureCount:  r.FeatureCount,
			Reconciled:    r.Reconciled,
			DurationMs:    r.DurationMs,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}

// RegisterModel records an artifact. Artifacts are unique by checksum:
// registering the same file again returns the existing ID and refreshes
// its name and path.
func (c *DBClient) RegisterModel(m models.RegisteredModel) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if m.Checksum == "" {
		return "", errors.New("model checksum is required")
	}

	var existing Model
	err := c.DB.Where("checksum = ?", m.Checksum).First(&existing).Error
	if err == nil {
		updates := map[string]any{}
		if m.Name != "" && m.Name != existing.Name {
			updates["name"] = m.Name
		}
		if m.Path != "" && m.Path != existing.Path {
			updates["path"] = m.Path
		}
		if len(updates) > 0 {
			if err := c.DB.Model(&existing).Updates(updates).Error; err != nil {
				return "", fmt.Errorf("updating model: %w", err)
			}
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing model: %w", err)
	}

	row := Model{
		ID:            utils.GenerateUUID(),
		Name:          m.Name,
		Path:          m.Path,
		Kind:          m.Kind,
		Checksum:      m.Checksum,
		ClassNames:    m.ClassNames,
		FeatureCount:  m.FeatureCount,
		ParamsVersion: m.ParamsVersion,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			if fetchErr := c.DB.Where("checksum = ?", m.Checksum).First(&existing).Error; fetchErr != nil {
				return "", fmt.Errorf("fetching model after constraint violation: %w", fetchErr)
			}
			return existing.ID, nil
		}
		return "", fmt.Errorf("creating model: %w", err)
	}
	return row.ID, nil
}

// GetModel looks a registered model up by ID or checksum.
func (c *DBClient) GetModel(idOrChecksum string) (*models.RegisteredModel, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Model
	err := c.DB.Where("id = ? OR checksum = ?", idOrChecksum, idOrChecksum).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: model %s", ErrNotFound, idOrChecksum)
	}
	if err != nil {
		return nil, fmt.Errorf("querying model: %w", err)
	}
	m := toRegisteredModel(row)
	return &m, nil
}

// ListModels returns every registered model, oldest first.
func (c *DBClient) ListModels() ([]models.RegisteredModel, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Model
	if err := c.DB.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	out := make([]models.RegisteredModel, len(rows))
	for i, r := range rows {
		out[i] = toRegisteredModel(r)
	}
	return out, nil
}

// CountClassifications returns the number of stored records.
func (c *DBClient) CountClassifications() (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Classification{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting classifications: %w", err)
	}
	return int(n), nil
}

func toRegisteredModel(r Model) models.RegisteredModel {
	return models.RegisteredModel{
		ID:            r.ID,
		Name:          r.Name,
		Path:          r.Path,
		Kind:          r.Kind,
		Checksum:      r.Checksum,
		ClassNames:    r.ClassNames,
		FeatureCount:  r.FeatureCount,
		ParamsVersion: r.ParamsVersion,
		CreatedAt:     r.CreatedAt,
	}
}
