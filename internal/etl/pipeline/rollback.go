package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datakiln/retaildw/internal/domain"
	"github.com/datakiln/retaildw/internal/etl/etlerr"
	"github.com/datakiln/retaildw/internal/pkg/dbctx"
)

// Rollback removes every fact row a version loaded and marks the version
// ROLLED_BACK. Deletion and status flip share one transaction; a version is
// never left half rolled back. Dimension rows stay, they are shared across
// versions.
func (r *Runner) Rollback(ctx context.Context, versionID uuid.UUID) (int64, error) {
	version, err := r.versions.GetByID(dbctx.New(ctx), versionID)
	if err != nil {
		return 0, fmt.Errorf("pipeline: load version %s: %w", versionID, err)
	}
	if version == nil {
		return 0, &etlerr.ValidationError{Reason: "unknown version", Detail: versionID.String()}
	}
	if version.Status == types.VersionStatusRunning {
		return 0, &etlerr.ValidationError{Reason: "version still running", Detail: versionID.String()}
	}
	if version.Status == types.VersionStatusRolledBack {
		return 0, nil
	}

	var batchIDs []uuid.UUID
	if len(version.BatchIDs) > 0 {
		if err := json.Unmarshal(version.BatchIDs, &batchIDs); err != nil {
			return 0, fmt.Errorf("pipeline: decode batch ids for %s: %w", versionID, err)
		}
	}

	var removed int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)
		if len(batchIDs) > 0 {
			n, derr := r.facts.DeleteByBatchIDs(dbc, batchIDs)
			if derr != nil {
				return derr
			}
			removed = n
		}
		return r.versions.UpdateFields(dbc, versionID, map[string]interface{}{
			"status": types.VersionStatusRolledBack,
		})
	})
	if err != nil {
		return 0, etlerr.ClassifyStorage("rollback version", err)
	}

	r.log.Info("version rolled back",
		"version_id", versionID, "batches", len(batchIDs), "facts_removed", removed)
	return removed, nil
}
