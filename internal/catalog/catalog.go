// Package catalog is the read-only view of inventory used by the production workflow.
package catalog

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
	"go.uber.org/zap"
)

// Source fetches the full material list.
type Source interface {
	ListMaterials(ctx context.Context) ([]model.Material, error)
}

type Accessor struct {
	src    Source
	logger *zap.Logger
}

func NewAccessor(src Source, logger *zap.Logger) *Accessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{src: src, logger: logger}
}

// ListMaterials never returns a nil slice: on failure the caller gets an
// empty list to render along with the error. Retrying is calling it again.
func (a *Accessor) ListMaterials(ctx context.Context) ([]model.Material, error) {
	materials, err := a.src.ListMaterials(ctx)
	if err != nil {
		a.logger.Warn("Failed to load materials", zap.Error(err))
		return []model.Material{}, err
	}
	if materials == nil {
		materials = []model.Material{}
	}
	return materials, nil
}

// Partitioned splits a catalog by material type.
type Partitioned struct {
	RawMaterials  []model.Material
	FinishedGoods []model.Material
}

// Partition keeps input order. Materials of unknown type are in neither list.
func Partition(materials []model.Material) Partitioned {
	p := Partitioned{
		RawMaterials:  []model.Material{},
		FinishedGoods: []model.Material{},
	}
	for _, m := range materials {
		switch m.Type {
		case model.MaterialTypeRaw:
			p.RawMaterials = append(p.RawMaterials, m)
		case model.MaterialTypeFinished:
			p.FinishedGoods = append(p.FinishedGoods, m)
		}
	}
	return p
}

func IndexByID(materials []model.Material) map[int64]model.Material {
	idx := make(map[int64]model.Material, len(materials))
	for _, m := range materials {
		idx[m.ID] = m
	}
	return idx
}

// BelowMinimum lists materials under their reorder threshold.
func BelowMinimum(materials []model.Material) []model.Material {
	var out []model.Material
	for _, m := range materials {
		if m.BelowMinimum() {
			out = append(out, m)
		}
	}
	return out
}
