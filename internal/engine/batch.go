package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dcm "dicom-deident/internal/dicom"
	"dicom-deident/internal/evidence"
	"dicom-deident/internal/identity"
	"dicom-deident/internal/pixel"
	"dicom-deident/internal/trace"
)

// BatchConfig drives a folder-level run.
type BatchConfig struct {
	Config

	InputFolder  string
	OutputFolder string
	Recursive    bool
	DryRun       bool
	Workers      int

	// Store persists each group's ledger; nil skips persistence (dry runs).
	Store *trace.Store
	// Evidence writes one bundle per group; nil skips it.
	Evidence *evidence.Writer
}

// Stats holds batch processing statistics.
type Stats struct {
	Success       int
	Failed        int
	Skipped       int
	TotalPatients int
	Violations    int
}

// PatientGroup represents files grouped by patient.
type PatientGroup struct {
	Key   string
	PID   string
	Files []string
}

// ProcessBatch de-identifies every DICOM file under the input folder.
// Files are grouped by patient identity; each group gets its own engine
// instance (own remapper, own ledger, own run reference) and groups run in
// parallel across workers. Pixel invariant violations fail the record and
// are counted; the batch continues.
func ProcessBatch(ctx context.Context, cfg BatchConfig, log *zap.Logger) (*Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	files, err := dcm.FindDicomFiles(cfg.InputFolder, cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("could not find DICOM files: %w", err)
	}
	if len(files) == 0 {
		log.Info("no DICOM files found", zap.String("input", cfg.InputFolder))
		return &Stats{}, nil
	}

	groups := groupFilesByPatient(files, cfg.Salt)
	log.Info("batch starting",
		zap.Int("files", len(files)),
		zap.Int("patients", len(groups)),
		zap.String("profile", cfg.Profile.String()),
	)

	if cfg.DryRun {
		return &Stats{Skipped: len(files), TotalPatients: len(groups)}, nil
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	stats := &Stats{TotalPatients: len(groups)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	groupCh := make(chan *PatientGroup)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range groupCh {
				gs := processGroup(ctx, cfg, g, log)
				mu.Lock()
				stats.Success += gs.Success
				stats.Failed += gs.Failed
				stats.Skipped += gs.Skipped
				stats.Violations += gs.Violations
				mu.Unlock()
			}
		}()
	}

	for _, g := range groups {
		select {
		case groupCh <- g:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(groupCh)
	wg.Wait()

	log.Info("batch complete",
		zap.Int("succeeded", stats.Success),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("violations", stats.Violations),
	)
	return stats, ctx.Err()
}

// processGroup runs one patient group on its own engine instance and
// commits its ledger once, all-or-nothing.
func processGroup(ctx context.Context, cfg BatchConfig, g *PatientGroup, log *zap.Logger) Stats {
	runRef := uuid.NewString()
	glog := log.With(zap.String("run_ref", runRef))
	eng := New(cfg.Config, runRef, glog)

	var stats Stats
	var inputs, outputs []evidence.RecordHash
	var linkages []evidence.Linkage

	for _, filePath := range g.Files {
		if ctx.Err() != nil {
			// Canceled mid-group: nothing was committed for this group, so
			// no partial ledger can surface.
			return stats
		}

		rec, err := dcm.ReadDicom(filePath)
		if err != nil {
			stats.Failed++
			glog.Warn("could not read record", zap.String("file", filepath.Base(filePath)), zap.Error(err))
			continue
		}

		res, err := eng.ProcessRecord(ctx, rec, nil)
		if err != nil {
			var violation *pixel.ViolationError
			switch {
			case errors.Is(err, ErrUnsupportedFile):
				stats.Skipped++
			case errors.As(err, &violation):
				stats.Failed++
				stats.Violations++
				glog.Error("pixel invariant violation", zap.String("file", filepath.Base(filePath)), zap.Error(err))
			default:
				stats.Failed++
				glog.Warn("record failed", zap.String("file", filepath.Base(filePath)), zap.Error(err))
			}
			continue
		}

		relPath, err := filepath.Rel(cfg.InputFolder, filePath)
		if err != nil {
			relPath = filepath.Base(filePath)
		}
		outputPath := filepath.Join(cfg.OutputFolder, res.ScopeRef[:minInt(len(res.ScopeRef), 24)], relPath)
		if err := res.Output.Save(outputPath); err != nil {
			stats.Failed++
			glog.Warn("could not save record", zap.String("file", filepath.Base(filePath)), zap.Error(err))
			continue
		}

		stats.Success++
		if res.InputPixelHash != "" {
			inputs = append(inputs, evidence.RecordHash{
				Ref: res.ScopeRef, SHA256: res.InputPixelHash,
			})
			outputs = append(outputs, evidence.RecordHash{
				Ref: res.ScopeRef, SHA256: res.OutputPixelHash,
			})
			linkages = append(linkages, evidence.Linkage{
				InputHash:  res.InputPixelHash[:16],
				OutputRef:  res.ScopeRef,
				OutputHash: res.OutputPixelHash[:16],
			})
		}
	}

	if ctx.Err() != nil {
		return stats
	}

	if cfg.Store != nil {
		if _, err := cfg.Store.Commit(ctx, runRef, cfg.Profile.String(), eng.Ledger()); err != nil {
			glog.Error("ledger commit failed", zap.Error(err))
			return stats
		}
	}

	if cfg.Evidence != nil {
		ledgerStats := eng.Ledger().GetStatistics()
		qa := evidence.QASummary{
			RecordsProcessed: stats.Success,
			RecordsFailed:    stats.Failed,
			DecisionCount:    eng.Ledger().Len(),
			ByAction:         map[string]int{},
			ByReason:         map[string]int{},
		}
		for k, v := range ledgerStats.ByAction {
			qa.ByAction[string(k)] = v
		}
		for k, v := range ledgerStats.ByReason {
			qa.ByReason[string(k)] = v
		}

		bundle := &evidence.Bundle{
			RunRef: runRef,
			Config: evidence.ConfigSnapshot{
				Profile:      cfg.Profile.String(),
				Strict:       cfg.Strict,
				ShiftMinDays: cfg.ShiftBounds.MinDays,
				ShiftMaxDays: cfg.ShiftBounds.MaxDays,
			},
			Inputs:    inputs,
			Outputs:   outputs,
			Linkages:  linkages,
			Decisions: eng.Ledger().Records(),
			QA:        qa,
		}
		if _, err := cfg.Evidence.Write(bundle); err != nil {
			glog.Error("evidence bundle write failed", zap.Error(err))
		}
	}

	return stats
}

// groupFilesByPatient groups DICOM files by patient identity (Name+DOB
// hash) or PatientID fallback, reading metadata only.
func groupFilesByPatient(files []string, salt []byte) []*PatientGroup {
	groups := make(map[string]*PatientGroup)
	var order []string

	add := func(key, pid, filePath string) {
		if groups[key] == nil {
			groups[key] = &PatientGroup{Key: key, PID: pid}
			order = append(order, key)
		}
		groups[key].Files = append(groups[key].Files, filePath)
	}

	for _, filePath := range files {
		ds, err := dcm.ReadDicomMetadataOnly(filePath)
		if err != nil {
			add("UNKNOWN", "", filePath)
			continue
		}

		name := ds.GetPatientName()
		dob := ds.GetPatientBirthDate()
		pid := ds.GetPatientID()
		if pid == "" {
			pid = "UNKNOWN"
		}

		var key string
		if identity.UsableIdentity(name, dob) {
			key = identity.GroupKey(name, dob, salt)
		} else {
			key = "PID:" + pid
		}
		add(key, pid, filePath)
	}

	result := make([]*PatientGroup, 0, len(groups))
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
