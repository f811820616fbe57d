package laughtrack

import (
	"strconv"
	"time"

	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/detect"
	"github.com/himanishpuri/LaughTrack/pkg/laughtrack/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens (or creates) a run history at dbPath. An empty path
// falls back to LAUGH_DB_PATH and then to storage.DefaultDBFile.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	var (
		db  *storage.DBClient
		err error
	)
	if dbPath == "" {
		db, err = storage.NewDBClient()
	} else {
		db, err = storage.NewDBClientWithPath(dbPath)
	}
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveRun(run *Run) (string, error) {
	row := &storage.Run{
		ID:            run.ID,
		AudioPath:     run.AudioPath,
		WindowSeconds: run.Params.WindowSeconds,
		Timescale:     run.Params.Timescale,
		Threshold:     run.Params.Threshold,
		Overlap:       run.Params.Overlap,
		Label:         run.Label,
		Engine:        run.Engine,
		Windows:       run.Windows,
		ElapsedMs:     run.Elapsed.Milliseconds(),
		Output:        run.JSON,
		Events:        make([]storage.Event, len(run.Events)),
	}
	for i, ev := range run.Events {
		seconds, _ := strconv.ParseFloat(ev.TimeKey, 64)
		row.Events[i] = storage.Event{
			TimeKey:    ev.TimeKey,
			Seconds:    seconds,
			Confidence: ev.Confidence,
		}
	}
	return s.db.SaveRun(row)
}

func (s *storageAdapter) GetRun(id string) (*Run, error) {
	row, err := s.db.GetRun(id)
	if err != nil {
		return nil, err
	}
	run := fromRow(row)
	run.Events = make([]detect.Event, len(row.Events))
	for i, ev := range row.Events {
		run.Events[i] = detect.Event{TimeKey: ev.TimeKey, Confidence: ev.Confidence}
	}
	run.EventCount = len(run.Events)
	return run, nil
}

func (s *storageAdapter) ListRuns() ([]Run, error) {
	rows, err := s.db.ListRuns()
	if err != nil {
		return nil, err
	}

	runs := make([]Run, len(rows))
	for i := range rows {
		runs[i] = *fromRow(&rows[i])
		if n, err := s.db.CountEvents(rows[i].ID); err == nil {
			runs[i].EventCount = n
		}
	}
	return runs, nil
}

func (s *storageAdapter) DeleteRun(id string) error {
	return s.db.DeleteRun(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func fromRow(row *storage.Run) *Run {
	return &Run{
		ID:        row.ID,
		AudioPath: row.AudioPath,
		Params: Params{
			WindowSeconds: row.WindowSeconds,
			Timescale:     row.Timescale,
			Threshold:     row.Threshold,
			Overlap:       row.Overlap,
		},
		Label:     row.Label,
		Engine:    row.Engine,
		Windows:   row.Windows,
		Elapsed:   time.Duration(row.ElapsedMs) * time.Millisecond,
		JSON:      row.Output,
		CreatedAt: row.CreatedAt,
	}
}
