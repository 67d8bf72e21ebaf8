package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/XI0X-Dev/wan-animate-airtable/internal/infra"
)

// Runner executes one animation run for a record. Satisfied by
// orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context, recordID string) error
}

// App carries the handler dependencies.
type App struct {
	Runner         Runner
	Logger         infra.Logger
	Table          string
	SettingsSource string

	runs sync.WaitGroup
}

func NewApp(runner Runner, logger infra.Logger, table, settingsSource string) *App {
	return &App{
		Runner:         runner,
		Logger:         logger,
		Table:          table,
		SettingsSource: settingsSource,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"success": false, "error": message})
}

// startRun launches one detached background run. The run has no handle back
// to the request; its outcome lands on the record and in the process logs.
func (a *App) startRun(recordID string) {
	runID := uuid.NewString()
	log := a.Logger.With().Str("run_id", runID).Str("record_id", recordID).Logger()

	a.runs.Add(1)
	go func() {
		defer a.runs.Done()
		log.Info().Msg("animate: run started")
		if err := a.Runner.Run(context.Background(), recordID); err != nil {
			log.Error().Err(err).Msg("animate: run ended with failure")
			return
		}
		log.Info().Msg("animate: run finished")
	}()
}

// DrainRuns waits for in-flight runs to finish or for ctx to expire. Runs
// are never cancelled; this only delays process exit during shutdown.
func (a *App) DrainRuns(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
