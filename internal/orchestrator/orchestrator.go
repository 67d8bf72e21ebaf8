// Package orchestrator runs one animation job end to end: fetch the record,
// validate inputs, submit the generation job, poll until terminal state or
// timeout, and write the outcome back to the record. Outcomes are observable
// only through the record; the trigger has no return channel.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/XI0X-Dev/wan-animate-airtable/internal/airtable"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/infra"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/wavespeed"
)

// Record cell names in the Airtable table.
const (
	fieldInputImage  = "Input Image"
	fieldInputVideo  = "Input Video"
	fieldPrompt      = "Prompt"
	fieldMode        = "Mode"
	fieldResolution  = "Resolution"
	fieldSeed        = "Seed"
	fieldStatus      = "Status"
	fieldJobID       = "Job ID"
	fieldErrorLog    = "Error Log"
	fieldOutputVideo = "Output Video"
)

const (
	statusGenerating = "Generating..."
	statusProcessing = "Processing..."
	statusCompleted  = "Completed"
	statusFailed     = "Failed"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultPollMaxAttempts = 120
	defaultMode            = "animate"
	defaultResolution      = "720p"
)

// seedSentinel is submitted when the record carries no seed; the API picks
// its own seed for negative values.
const seedSentinel = -1

// RecordStore is the record-store collaborator. Update applies a partial
// field map as a merge.
type RecordStore interface {
	Find(ctx context.Context, recordID string) (*airtable.Record, error)
	Update(ctx context.Context, recordID string, fields map[string]any) error
}

// Generator is the generation-API collaborator.
type Generator interface {
	Submit(ctx context.Context, req wavespeed.SubmitRequest) (string, error)
	Result(ctx context.Context, jobID string) (wavespeed.JobResult, error)
}

// Options configures an Orchestrator.
type Options struct {
	Store     RecordStore
	Generator Generator
	Logger    *infra.Logger

	// Mode and Resolution are the fixed defaults. When SettingsFromRecord is
	// set, non-empty Mode/Resolution cells on the record take precedence.
	Mode               string
	Resolution         string
	SettingsFromRecord bool

	// OutputAsAttachment writes the output as an attachment-by-URL cell
	// instead of a plain URL value.
	OutputAsAttachment bool

	PollInterval    time.Duration
	PollMaxAttempts int
}

// Orchestrator drives animation runs. It is safe for concurrent use; each
// run owns its record and there is no shared mutable state.
type Orchestrator struct {
	store     RecordStore
	generator Generator
	logger    *infra.Logger

	mode               string
	resolution         string
	settingsFromRecord bool
	outputAsAttachment bool

	pollInterval    time.Duration
	pollMaxAttempts int
}

// New constructs an Orchestrator with sane defaults.
func New(opts Options) *Orchestrator {
	mode := strings.TrimSpace(opts.Mode)
	if mode == "" {
		mode = defaultMode
	}
	resolution := strings.TrimSpace(opts.Resolution)
	if resolution == "" {
		resolution = defaultResolution
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollMaxAttempts
	if attempts <= 0 {
		attempts = defaultPollMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		store:              opts.Store,
		generator:          opts.Generator,
		logger:             logger,
		mode:               mode,
		resolution:         resolution,
		settingsFromRecord: opts.SettingsFromRecord,
		outputAsAttachment: opts.OutputAsAttachment,
		pollInterval:       interval,
		pollMaxAttempts:    attempts,
	}
}

// Run executes one animation run for the given record. Any failure is
// converted into a best-effort Status="Failed" write on the record; the
// returned error reports the same failure for the caller's logs.
func (o *Orchestrator) Run(ctx context.Context, recordID string) error {
	log := o.logger.With().Str("record_id", recordID).Logger()
	if err := o.run(ctx, recordID, &log); err != nil {
		log.Error().Err(err).Msg("orchestrator: run failed")
		o.markFailed(ctx, recordID, err, &log)
		return err
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, recordID string, log *infra.Logger) error {
	record, err := o.store.Find(ctx, recordID)
	if err != nil {
		return fmt.Errorf("fetch record: %w", err)
	}

	image := record.FirstAttachmentURL(fieldInputImage)
	if image == "" {
		return fmt.Errorf("%w: record has no input image", ErrValidation)
	}
	video := record.FirstAttachmentURL(fieldInputVideo)
	if video == "" {
		return fmt.Errorf("%w: record has no input video", ErrValidation)
	}

	mode, resolution := o.mode, o.resolution
	if o.settingsFromRecord {
		if v := strings.TrimSpace(record.String(fieldMode)); v != "" {
			mode = v
		}
		if v := strings.TrimSpace(record.String(fieldResolution)); v != "" {
			resolution = v
		}
	}
	seed := record.Int(fieldSeed, seedSentinel)
	prompt := strings.TrimSpace(record.String(fieldPrompt))

	// Progress marker only; the run does not depend on this write.
	o.progress(ctx, recordID, log, map[string]any{
		fieldStatus: statusGenerating,
		fieldErrorLog: fmt.Sprintf("%s generation started (mode=%s resolution=%s)",
			time.Now().UTC().Format(time.RFC3339), mode, resolution),
	})

	jobID, err := o.generator.Submit(ctx, wavespeed.SubmitRequest{
		Image:      image,
		Video:      video,
		Mode:       mode,
		Resolution: resolution,
		Seed:       seed,
		Prompt:     prompt,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	log.Info().Str("job_id", jobID).Msg("orchestrator: job submitted")

	// The job id must land on the record before the first poll so the
	// external job stays traceable if this process dies mid-poll.
	if err := o.store.Update(ctx, recordID, map[string]any{
		fieldJobID:  jobID,
		fieldStatus: statusProcessing,
	}); err != nil {
		return fmt.Errorf("persist job id: %w", err)
	}

	return o.poll(ctx, recordID, jobID, log)
}

func (o *Orchestrator) poll(ctx context.Context, recordID, jobID string, log *infra.Logger) error {
	start := time.Now()
	for attempt := 1; attempt <= o.pollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}

		elapsed := int(time.Since(start).Seconds())
		o.progress(ctx, recordID, log, map[string]any{
			fieldStatus:   fmt.Sprintf("Generating... %ds elapsed", elapsed),
			fieldErrorLog: fmt.Sprintf("polling attempt %d/%d", attempt, o.pollMaxAttempts),
		})

		result, err := o.generator.Result(ctx, jobID)
		if err != nil {
			// A transport failure mid-poll is fatal to the run; re-triggering
			// is the recovery path and the job id is already on the record.
			return fmt.Errorf("poll job %s: %w", jobID, err)
		}

		switch result.Status {
		case wavespeed.StatusCompleted:
			return o.complete(ctx, recordID, jobID, result, elapsed, log)
		case wavespeed.StatusFailed:
			msg := strings.TrimSpace(result.Error)
			if msg == "" {
				msg = "remote job failed without a reported cause"
			}
			return fmt.Errorf("%w: %s", ErrGenerationFailed, msg)
		default:
			log.Debug().Str("job_id", jobID).Str("status", result.Status).Int("attempt", attempt).
				Msg("orchestrator: job still in progress")
		}
	}
	return fmt.Errorf("%w: job %s not finished after %d checks", ErrTimeout, jobID, o.pollMaxAttempts)
}

func (o *Orchestrator) complete(ctx context.Context, recordID, jobID string, result wavespeed.JobResult, elapsed int, log *infra.Logger) error {
	if len(result.Outputs) == 0 || strings.TrimSpace(result.Outputs[0]) == "" {
		return fmt.Errorf("%w: job %s completed without outputs", ErrResult, jobID)
	}
	output := strings.TrimSpace(result.Outputs[0])

	fields := map[string]any{
		fieldStatus:   statusCompleted,
		fieldErrorLog: fmt.Sprintf("completed in %ds, output %s", elapsed, output),
	}
	if o.outputAsAttachment {
		fields[fieldOutputVideo] = airtable.AttachmentByURL(output)
	} else {
		fields[fieldOutputVideo] = output
	}
	if err := o.store.Update(ctx, recordID, fields); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	log.Info().Str("job_id", jobID).Str("output", output).Int("elapsed_s", elapsed).
		Msg("orchestrator: run completed")
	return nil
}

// progress writes a lossy observability update; a failed write never aborts
// the run.
func (o *Orchestrator) progress(ctx context.Context, recordID string, log *infra.Logger, fields map[string]any) {
	if err := o.store.Update(ctx, recordID, fields); err != nil {
		log.Warn().Err(err).Msg("orchestrator: progress update failed")
	}
}

// markFailed records the terminal failure on the record. This write is
// best-effort: when it also fails, the failure remains visible only in the
// process logs.
func (o *Orchestrator) markFailed(ctx context.Context, recordID string, cause error, log *infra.Logger) {
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	err := o.store.Update(ctx, recordID, map[string]any{
		fieldStatus:   statusFailed,
		fieldErrorLog: fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), msg),
	})
	if err != nil {
		log.Error().Err(err).Msg("orchestrator: failed to record failure")
	}
}
