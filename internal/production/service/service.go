package service

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/repository"
	"github.com/bitfantasy/nimo-mes/internal/production/sse"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Inventory  *InventoryService
	Production *ProductionService
	Report     *ReportService
	Events     *sse.Hub
}

// Options holds optional dependencies. Zero values disable the material cache
// and the export archive.
type Options struct {
	Redis    *redis.Client
	CacheTTL time.Duration
	Store    ObjectStore
	Bucket   string
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, opts Options, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	inventory := NewInventoryService(repos.Material, opts.Redis, opts.CacheTTL, logger)
	hub := sse.NewHub(logger)
	production := NewProductionService(db, repos, inventory, logger)
	production.events = hub
	return &Services{
		Inventory:  inventory,
		Production: production,
		Report:     NewReportService(production, opts.Store, opts.Bucket, logger),
		Events:     hub,
	}
}

// invalid builds a validation error whose text after the prefix is shown to the user.
func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}
