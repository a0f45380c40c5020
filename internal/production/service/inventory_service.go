package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/catalog"
	"github.com/bitfantasy/nimo-mes/internal/production/entity"
	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"github.com/bitfantasy/nimo-mes/internal/production/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	materialsCacheKey = "mes:materials:all"
	// bumped by every invalidation; a load that overlaps a bump is not cached
	materialsGenKey = "mes:materials:gen"
)

type InventoryService struct {
	repo   *repository.MaterialRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	afterLoad func()
}

func NewInventoryService(repo *repository.MaterialRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{repo: repo, rdb: rdb, ttl: ttl, logger: logger}
}

// ListMaterials returns every material, from redis when cached.
func (s *InventoryService) ListMaterials(ctx context.Context) ([]model.Material, error) {
	if materials, ok := s.cached(ctx); ok {
		return materials, nil
	}
	if s.rdb == nil {
		return s.load(ctx)
	}

	var (
		materials []model.Material
		loaded    bool
		loadErr   error
	)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		materials, loadErr = s.load(ctx)
		if loadErr != nil {
			return loadErr
		}
		loaded = true
		if s.afterLoad != nil {
			s.afterLoad()
		}
		raw, err := json.Marshal(materials)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, materialsCacheKey, raw, s.ttl)
			return nil
		})
		return err
	}, materialsGenKey)
	if loadErr != nil {
		return nil, loadErr
	}
	switch {
	case errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("Material list changed while loading, not cached")
	case err != nil:
		s.logger.Warn("Failed to cache materials", zap.Error(err))
	}
	if !loaded {
		return s.load(ctx)
	}
	return materials, nil
}

func (s *InventoryService) load(ctx context.Context) ([]model.Material, error) {
	rows, err := s.repo.List(ctx, model.MaterialTypeUnknown)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	materials := make([]model.Material, 0, len(rows))
	for _, m := range rows {
		materials = append(materials, m.ToModel())
	}
	return materials, nil
}

// RawMaterials 原材料列表
func (s *InventoryService) RawMaterials(ctx context.Context) ([]model.Material, error) {
	materials, err := s.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Partition(materials).RawMaterials, nil
}

// FinishedGoods 成品列表
func (s *InventoryService) FinishedGoods(ctx context.Context) ([]model.Material, error) {
	materials, err := s.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Partition(materials).FinishedGoods, nil
}

func (s *InventoryService) GetMaterial(ctx context.Context, id int64) (*model.Material, error) {
	m, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: material %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get material %d: %w", id, err)
	}
	out := m.ToModel()
	return &out, nil
}

// CreateMaterial 新增物料
func (s *InventoryService) CreateMaterial(ctx context.Context, m model.Material) (int64, error) {
	if strings.TrimSpace(m.Name) == "" {
		return 0, invalid("Material name is required")
	}
	if m.Type == model.MaterialTypeUnknown {
		return 0, invalid("Material type must be RawMaterial or FinishedGood")
	}
	if m.CurrentStockLevel.IsNegative() || m.MinimumStockLevel.IsNegative() || m.UnitPrice.IsNegative() {
		return 0, invalid("Stock levels and price cannot be negative")
	}
	unit := m.UnitOfMeasure
	if unit == "" {
		unit = "pcs"
	}
	row := &entity.Material{
		Code:              m.Code,
		Name:              strings.TrimSpace(m.Name),
		Type:              m.Type,
		UnitOfMeasure:     unit,
		UnitPrice:         m.UnitPrice,
		CurrentStockLevel: m.CurrentStockLevel,
		MinimumStockLevel: m.MinimumStockLevel,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return 0, fmt.Errorf("create material: %w", err)
	}
	s.Invalidate(ctx)
	s.logger.Info("Material created", zap.Int64("material_id", row.ID), zap.String("type", row.Type.String()))
	return row.ID, nil
}

// Invalidate drops the cached list after stock changes and bumps the
// generation so a load already in progress does not store its result.
func (s *InventoryService) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, materialsGenKey)
		pipe.Del(ctx, materialsCacheKey)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to invalidate material cache", zap.Error(err))
	}
}

func (s *InventoryService) cached(ctx context.Context) ([]model.Material, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, materialsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Material cache unavailable", zap.Error(err))
		}
		return nil, false
	}
	var materials []model.Material
	if err := json.Unmarshal(raw, &materials); err != nil {
		return nil, false
	}
	return materials, true
}
