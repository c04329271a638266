package app

import (
	"gorm.io/gorm"

	"github.com/datakiln/retaildw/internal/data/repos"
	"github.com/datakiln/retaildw/internal/platform/logger"
)

type Repos struct {
	Dates       repos.DimDateRepo
	Products    repos.DimProductRepo
	Customers   repos.DimCustomerRepo
	Facts       repos.FactSaleRepo
	Versions    repos.VersionRepo
	Checkpoints repos.CheckpointRepo
	Jobs        repos.PipelineJobRepo
	Metrics     repos.QualityMetricRepo
	Rejects     repos.RejectedRecordRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Dates:       repos.NewDimDateRepo(db, log),
		Products:    repos.NewDimProductRepo(db, log),
		Customers:   repos.NewDimCustomerRepo(db, log),
		Facts:       repos.NewFactSaleRepo(db, log),
		Versions:    repos.NewVersionRepo(db, log),
		Checkpoints: repos.NewCheckpointRepo(db, log),
		Jobs:        repos.NewPipelineJobRepo(db, log),
		Metrics:     repos.NewQualityMetricRepo(db, log),
		Rejects:     repos.NewRejectedRecordRepo(db, log),
	}
}
