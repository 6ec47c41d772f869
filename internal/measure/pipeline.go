// Package measure turns a batch of ultrasonic time-of-flight samples into a
// temperature-compensated distance with a confidence score.
//
// The flow for one batch is:
//
//	raw samples -> FilterSamples -> SpeedOfSound(temperature) -> ConvertDistances
//	            -> Confidence -> Median -> NewMeasurement -> MeasurementStore
//
// Everything except the temperature lookup and the store write is pure
// computation on request-local slices.
package measure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/banshee-data/snowdepth/internal/measure"

// TemperatureSource supplies the most recent ambient temperature in °C.
// Implementations return an error when no sufficiently recent reading exists.
type TemperatureSource interface {
	LatestTemperature(ctx context.Context) (float64, error)
}

// MeasurementStore persists validated measurements.
type MeasurementStore interface {
	RecordMeasurement(ctx context.Context, m Measurement) error
}

// Tuning holds the adjustable parameters of the pipeline.
type Tuning struct {
	ResolutionCM        float64
	Bounds              Bounds
	DefaultTemperatureC float64
	// TemperatureTimeout and StoreTimeout bound the two I/O calls. Zero
	// disables the bound.
	TemperatureTimeout time.Duration
	StoreTimeout       time.Duration
}

// DefaultTuning returns the sensor's factory parameters.
func DefaultTuning() Tuning {
	return Tuning{
		ResolutionCM:        DefaultResolutionCM,
		Bounds:              Bounds{MinCM: DefaultMinDistanceCM, MaxCM: DefaultMaxDistanceCM},
		DefaultTemperatureC: DefaultTemperatureC,
		TemperatureTimeout:  2 * time.Second,
		StoreTimeout:        5 * time.Second,
	}
}

// Result is the outcome of a successfully computed batch.
type Result struct {
	Measurement         Measurement
	TemperatureC        float64
	TemperatureFallback bool
	// StoreErr is set when the measurement was computed but could not be
	// persisted. The measurement itself is still valid.
	StoreErr error
}

// Stored reports whether the measurement reached the store.
func (r *Result) Stored() bool {
	return r.StoreErr == nil
}

// Pipeline runs batches through filtering, conversion, scoring, validation
// and persistence. It is safe for concurrent use; tuning may be swapped at
// runtime with SetTuning.
type Pipeline struct {
	temps  TemperatureSource
	store  MeasurementStore
	tuning atomic.Pointer[Tuning]
	logger *slog.Logger
	tracer trace.Tracer
}

// NewPipeline creates a pipeline. temps may be nil, in which case every
// batch uses the degraded-mode default temperature.
func NewPipeline(temps TemperatureSource, store MeasurementStore, tuning Tuning, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		temps:  temps,
		store:  store,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	p.tuning.Store(&tuning)
	return p
}

// Tuning returns the tuning currently in effect.
func (p *Pipeline) Tuning() Tuning {
	return *p.tuning.Load()
}

// SetTuning replaces the tuning for subsequent batches. Batches already in
// flight keep the tuning they started with.
func (p *Pipeline) SetTuning(t Tuning) {
	p.tuning.Store(&t)
}

// IngestPayload parses a JSON payload and runs it through Ingest.
func (p *Pipeline) IngestPayload(ctx context.Context, body []byte) (*Result, error) {
	samples, err := ParseBatch(body)
	if err != nil {
		err = withStage(err, StageReceived)
		p.logRejection(ctx, err)
		return nil, err
	}
	return p.Ingest(ctx, samples)
}

// Ingest computes, validates and stores one measurement. A returned error is
// always an *Error. A store failure is not an error: the Result is returned
// with StoreErr set.
func (p *Pipeline) Ingest(ctx context.Context, samples []float64) (*Result, error) {
	tuning := p.Tuning()

	ctx, span := p.tracer.Start(ctx, "measure.ingest", trace.WithAttributes(
		attribute.Int("measure.samples", len(samples)),
	))
	defer span.End()

	res, err := p.run(ctx, samples, tuning)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("measure.code", string(CodeOf(err))))
		p.logRejection(ctx, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("measure.distance_cm", res.Measurement.Distance),
		attribute.Float64("measure.confidence", res.Measurement.Confidence),
		attribute.Bool("measure.temperature_fallback", res.TemperatureFallback),
		attribute.Bool("measure.stored", res.Stored()),
	)
	p.logger.InfoContext(ctx, "measurement computed",
		"distance_cm", res.Measurement.Distance,
		"confidence", res.Measurement.Confidence,
		"temperature_c", res.TemperatureC,
		"temperature_fallback", res.TemperatureFallback,
		"stored", res.Stored(),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, samples []float64, tuning Tuning) (*Result, error) {
	filtered, err := FilterSamples(samples)
	if err != nil {
		return nil, withStage(err, StageParsed)
	}
	if err := validateSamples(samples); err != nil {
		return nil, withStage(err, StageSizeValidated)
	}

	tempC, fallback := p.resolveTemperature(ctx, tuning)
	speed, err := SpeedOfSound(tempC)
	if err != nil {
		return nil, withStage(err, StageTemperatureResolved)
	}

	distances := ConvertDistances(filtered, speed, tuning.ResolutionCM)
	confidence := Confidence(distances)
	m, err := NewMeasurement(Median(distances), confidence, tuning.Bounds)
	if err != nil {
		return nil, withStage(err, StageScoreComputed)
	}

	res := &Result{
		Measurement:         m,
		TemperatureC:        tempC,
		TemperatureFallback: fallback,
	}
	if err := p.persist(ctx, m, tuning); err != nil {
		res.StoreErr = withStage(err, StageBoundsValidated)
		p.logger.ErrorContext(ctx, "measurement not stored",
			"code", CodeStoreFailure,
			"distance_cm", m.Distance,
			"confidence", m.Confidence,
			"err", err,
		)
	}
	return res, nil
}

func (p *Pipeline) resolveTemperature(ctx context.Context, tuning Tuning) (float64, bool) {
	if p.temps == nil {
		return tuning.DefaultTemperatureC, true
	}

	ctx, span := p.tracer.Start(ctx, "measure.temperature")
	defer span.End()

	lookupCtx, cancel := withOptionalTimeout(ctx, tuning.TemperatureTimeout)
	defer cancel()

	t, err := p.temps.LatestTemperature(lookupCtx)
	if err == nil && (math.IsNaN(t) || math.IsInf(t, 0)) {
		err = fmt.Errorf("non-finite reading %v", t)
	}
	if err != nil {
		err = wrapError(CodeTemperatureUnavailable, "temperature lookup failed", err)
		span.SetAttributes(attribute.Bool("measure.temperature_fallback", true))
		p.logger.DebugContext(ctx, "error reading temperature, using default",
			"default_c", tuning.DefaultTemperatureC,
			"err", err,
		)
		return tuning.DefaultTemperatureC, true
	}
	span.SetAttributes(attribute.Float64("measure.temperature_c", t))
	return t, false
}

func (p *Pipeline) persist(ctx context.Context, m Measurement, tuning Tuning) error {
	if p.store == nil {
		return newError(CodeStoreFailure, "no measurement store configured")
	}

	ctx, span := p.tracer.Start(ctx, "measure.store")
	defer span.End()

	storeCtx, cancel := withOptionalTimeout(ctx, tuning.StoreTimeout)
	defer cancel()

	if err := p.store.RecordMeasurement(storeCtx, m); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return wrapError(CodeStoreFailure, "database insert failed", err)
	}
	return nil
}

func (p *Pipeline) logRejection(ctx context.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		p.logger.ErrorContext(ctx, "measurement rejected", "err", err)
		return
	}
	level := slog.LevelWarn
	if e.Code.Internal() {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, "measurement rejected",
		"code", e.Code,
		"stage", e.Stage,
		"internal", e.Code.Internal(),
		"err", e,
	)
}

func withStage(err error, stage Stage) error {
	var e *Error
	if errors.As(err, &e) {
		e.Stage = stage
	}
	return err
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
