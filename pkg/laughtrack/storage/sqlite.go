package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "laughtrack.sqlite3"
const errDBClientNil = "db client is nil"

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Run is one finished analysis.
type Run struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AudioPath     string    `gorm:"index:idx_run_audio" json:"audio_path"`
	WindowSeconds float64   `json:"window_seconds"`
	Timescale     int32     `json:"timescale"`
	Threshold     float64   `json:"threshold"`
	Overlap       float64   `json:"overlap"`
	Label         string    `json:"label"`
	Engine        string    `json:"engine"`
	Windows       int       `json:"windows"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	Output        string    `json:"output"`
	CreatedAt     time.Time `gorm:"index:idx_run_created" json:"created_at"`
	Events        []Event   `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

// Event is one detection belonging to a run.
type Event struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	RunID      string  `gorm:"type:varchar(36);index:idx_event_run" json:"run_id"`
	TimeKey    string  `json:"time_key"`
	Seconds    float64 `json:"seconds"`
	Confidence float64 `json:"confidence"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("LAUGH_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &Event{}); err != nil {
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

// SaveRun stores run and its events in one transaction. An empty ID is
// replaced with a fresh uuid, which is returned.
func (c *DBClient) SaveRun(run *Run) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	for i := range run.Events {
		run.Events[i].RunID = run.ID
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Events").Create(run).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		if len(run.Events) > 0 {
			if err := tx.CreateInBatches(run.Events, 500).Error; err != nil {
				return fmt.Errorf("batch insert events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// GetRun loads a run with its events in time order.
func (c *DBClient) GetRun(id string) (*Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var run Run
	err := c.DB.Preload("Events", func(db *gorm.DB) *gorm.DB {
		return db.Order("seconds ASC, id ASC")
	}).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first, without their events.
func (c *DBClient) ListRuns() ([]Run, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var runs []Run
	if err := c.DB.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// CountEvents returns how many events a run has.
func (c *DBClient) CountEvents(id string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Event{}).Where("run_id = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return int(n), nil
}

// DeleteRun removes a run and its events.
func (c *DBClient) DeleteRun(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Event{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}
