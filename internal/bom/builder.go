// Package bom collects an order-scoped bill of materials for one target product.
package bom

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrIncompleteBom = errors.New("incomplete bill of materials")
	ErrLineIndex     = errors.New("bom line index out of range")
)

// Line is one component and the quantity consumed per unit of product.
// ComponentID 0 means no component has been chosen yet.
type Line struct {
	ComponentID     int64
	QuantityPerUnit decimal.Decimal
}

type WarningKind int

const (
	WarnDuplicateComponent WarningKind = iota + 1
	WarnSelfReference
	WarnNotRawMaterial
)

// Warning is a rejected selection. The line has already been cleared.
type Warning struct {
	Kind        WarningKind
	Line        int
	ComponentID int64
}

func (w *Warning) String() string {
	switch w.Kind {
	case WarnDuplicateComponent:
		return "This component is already added."
	case WarnSelfReference:
		return "A product cannot be a component of itself."
	case WarnNotRawMaterial:
		return "Only raw materials can be used as components."
	}
	return "Selection rejected."
}

// Builder is not safe for concurrent use.
type Builder struct {
	productID int64
	lines     []Line
}

// NewBuilder starts an empty definition for productID.
func NewBuilder(productID int64) *Builder {
	return &Builder{productID: productID}
}

// Reset discards every line and starts over with n empty ones.
func (b *Builder) Reset(productID int64, n int) {
	b.productID = productID
	b.lines = b.lines[:0]
	for i := 0; i < n; i++ {
		b.AddLine()
	}
}

func (b *Builder) ProductID() int64 { return b.productID }

func (b *Builder) Len() int { return len(b.lines) }

// AddLine appends an empty line with a quantity of one.
func (b *Builder) AddLine() {
	b.lines = append(b.lines, Line{QuantityPerUnit: decimal.NewFromInt(1)})
}

func (b *Builder) RemoveLine(index int) error {
	if err := b.check(index); err != nil {
		return err
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

// SelectComponent sets the component of a line. Choosing the target product
// or a component used by another line clears the line and returns a warning.
func (b *Builder) SelectComponent(index int, componentID int64) (*Warning, error) {
	if err := b.check(index); err != nil {
		return nil, err
	}
	if componentID == 0 {
		b.lines[index].ComponentID = 0
		return nil, nil
	}
	if componentID == b.productID {
		b.lines[index].ComponentID = 0
		return &Warning{Kind: WarnSelfReference, Line: index, ComponentID: componentID}, nil
	}
	for i, l := range b.lines {
		if i != index && l.ComponentID == componentID {
			b.lines[index].ComponentID = 0
			return &Warning{Kind: WarnDuplicateComponent, Line: index, ComponentID: componentID}, nil
		}
	}
	b.lines[index].ComponentID = componentID
	return nil, nil
}

// ClearComponent unsets the component of a line.
func (b *Builder) ClearComponent(index int) error {
	if err := b.check(index); err != nil {
		return err
	}
	b.lines[index].ComponentID = 0
	return nil
}

func (b *Builder) SetQuantity(index int, qty decimal.Decimal) error {
	if err := b.check(index); err != nil {
		return err
	}
	b.lines[index].QuantityPerUnit = qty
	return nil
}

// Lines returns a copy of the current definition.
func (b *Builder) Lines() []Line {
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Validate requires at least one line, every line with a component and a positive quantity.
func (b *Builder) Validate() error {
	if len(b.lines) == 0 {
		return fmt.Errorf("%w: add at least one component", ErrIncompleteBom)
	}
	for i, l := range b.lines {
		if l.ComponentID == 0 {
			return fmt.Errorf("%w: line %d has no component", ErrIncompleteBom, i+1)
		}
		if !l.QuantityPerUnit.IsPositive() {
			return fmt.Errorf("%w: line %d quantity must be greater than zero", ErrIncompleteBom, i+1)
		}
	}
	return nil
}

func (b *Builder) check(index int) error {
	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: %d", ErrLineIndex, index)
	}
	return nil
}
