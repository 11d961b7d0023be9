package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

// Loader writes one manifest's datasets into the registry and catalog and
// queues every loaded trial for indexing.
type Loader struct {
	registry ports.PatientRegistry
	catalog  ports.TrialCatalog
	queue    ports.MessageQueue
	logger   *slog.Logger
}

// NewLoader builds a loader. queue may be nil when indexing is requested out
// of band.
func NewLoader(registry ports.PatientRegistry, catalog ports.TrialCatalog, queue ports.MessageQueue, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		registry: registry,
		catalog:  catalog,
		queue:    queue,
		logger:   logger,
	}
}

type LoadStats struct {
	Patients         int
	Conditions       int
	OrphanConditions int
	Trials           int
	Published        int
}

func (l *Loader) Run(ctx context.Context, manifest Manifest) (LoadStats, error) {
	var stats LoadStats
	loaded := make(map[string]bool)

	if manifest.Patients != "" {
		patients, err := ReadPatients(manifest.Patients)
		if err != nil {
			return stats, err
		}
		for i := range patients {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			now := time.Now().UTC()
			patients[i].CreatedAt = now
			patients[i].UpdatedAt = now
			if err := l.registry.UpsertPatient(ctx, &patients[i]); err != nil {
				return stats, err
			}
			loaded[patients[i].ID] = true
			stats.Patients++
		}
	}

	if manifest.Conditions != "" {
		conditions, err := ReadConditions(manifest.Conditions)
		if err != nil {
			return stats, err
		}
		for i := range conditions {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			known, err := l.patientKnown(ctx, loaded, conditions[i].PatientID)
			if err != nil {
				return stats, err
			}
			if !known {
				stats.OrphanConditions++
				continue
			}
			conditions[i].ID = uuid.NewString()
			conditions[i].CreatedAt = time.Now().UTC()
			if err := l.registry.AddCondition(ctx, &conditions[i]); err != nil {
				return stats, err
			}
			stats.Conditions++
		}
	}

	if manifest.Trials != "" {
		trials, err := ReadTrials(manifest.Trials)
		if err != nil {
			return stats, err
		}
		for i := range trials {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			now := time.Now().UTC()
			if trials[i].CreatedAt.IsZero() {
				trials[i].CreatedAt = now
			}
			trials[i].UpdatedAt = now
			if err := l.catalog.UpsertTrial(ctx, &trials[i]); err != nil {
				return stats, err
			}
			stats.Trials++

			if l.queue == nil {
				continue
			}
			if err := l.queue.PublishTrialIndexRequested(ctx, trials[i].ID); err != nil {
				l.logger.Warn("index publish failed", "trial_id", trials[i].ID, "error", err)
				continue
			}
			stats.Published++
		}
	}

	l.logger.Info("dataset load complete",
		"patients", stats.Patients,
		"conditions", stats.Conditions,
		"orphan_conditions", stats.OrphanConditions,
		"trials", stats.Trials,
		"published", stats.Published,
	)
	return stats, nil
}

// patientKnown checks this load's patients first, then earlier loads through
// the registry. Lookup results are memoized in the same map.
func (l *Loader) patientKnown(ctx context.Context, loaded map[string]bool, patientID string) (bool, error) {
	known, seen := loaded[patientID]
	if seen {
		return known, nil
	}

	_, err := l.registry.GetPatient(ctx, patientID)
	switch {
	case err == nil:
		loaded[patientID] = true
		return true, nil
	case domain.IsKind(err, domain.ErrPatientNotFound):
		loaded[patientID] = false
		return false, nil
	default:
		return false, err
	}
}
