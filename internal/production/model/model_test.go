package model

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMaterialType(t *testing.T) {
	cases := []struct {
		in   interface{}
		want MaterialType
	}{
		{"RawMaterial", MaterialTypeRaw},
		{"FinishedGood", MaterialTypeFinished},
		{"0", MaterialTypeRaw},
		{"2", MaterialTypeFinished},
		{" 2 ", MaterialTypeFinished},
		{0, MaterialTypeRaw},
		{2, MaterialTypeFinished},
		{float64(2), MaterialTypeFinished},
		{json.Number("0"), MaterialTypeRaw},
		{[]byte("FinishedGood"), MaterialTypeFinished},
		{1, MaterialTypeUnknown},
		{"1", MaterialTypeUnknown},
		{"SemiFinished", MaterialTypeUnknown},
		{nil, MaterialTypeUnknown},
		{2.5, MaterialTypeUnknown},
	}
	for _, tc := range cases {
		if got := ParseMaterialType(tc.in); got != tc.want {
			t.Errorf("ParseMaterialType(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMaterialDecodeMixedDiscriminators(t *testing.T) {
	body := `[
		{"id":1,"materialName":"Steel","materialType":"RawMaterial","currentStockLevel":"8"},
		{"id":2,"materialName":"Bolt","materialType":0,"currentStockLevel":12.5},
		{"id":10,"materialName":"Chair","materialType":"2","currentStockLevel":"0"},
		{"id":11,"materialName":"Frame","materialType":1}
	]`
	var materials []Material
	if err := json.Unmarshal([]byte(body), &materials); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []MaterialType{MaterialTypeRaw, MaterialTypeRaw, MaterialTypeFinished, MaterialTypeUnknown}
	for i, m := range materials {
		if m.Type != want[i] {
			t.Errorf("material %d: expected %v, got %v", m.ID, want[i], m.Type)
		}
	}
	if !materials[1].CurrentStockLevel.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Expected stock 12.5, got %s", materials[1].CurrentStockLevel)
	}

	out, _ := json.Marshal(materials[2].Type)
	if string(out) != `"FinishedGood"` {
		t.Errorf("Expected token form, got %s", out)
	}
}

func TestTransition(t *testing.T) {
	if to, err := Transition(StatusPlanned, ActionStart); err != nil || to != StatusStarted {
		t.Fatalf("Planned+start: got %v, %v", to, err)
	}
	if to, err := Transition(StatusStarted, ActionComplete); err != nil || to != StatusCompleted {
		t.Fatalf("Started+complete: got %v, %v", to, err)
	}

	illegal := []struct {
		from OrderStatus
		a    Action
	}{
		{StatusPlanned, ActionComplete},
		{StatusStarted, ActionStart},
		{StatusCompleted, ActionStart},
		{StatusCompleted, ActionComplete},
	}
	for _, tc := range illegal {
		to, err := Transition(tc.from, tc.a)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s+%s: expected ErrInvalidTransition, got %v", tc.from, tc.a, err)
		}
		if to != tc.from {
			t.Errorf("%s+%s: status changed to %s", tc.from, tc.a, to)
		}
	}

	if _, ok := NextAction(StatusCompleted); ok {
		t.Error("Completed must be terminal")
	}
	if a, _ := NextAction(StatusPlanned); a != ActionStart {
		t.Errorf("Expected start after Planned, got %s", a)
	}
}

func TestErrorFromResponse(t *testing.T) {
	data, _ := json.Marshal(InsufficientStockError{
		MaterialID: 1, MaterialName: "Steel",
		Required: decimal.NewFromInt(10), Available: decimal.NewFromInt(5),
	})
	err := ErrorFromResponse(http.StatusUnprocessableEntity, ErrorResponse{
		Code: CodeInsufficientStock, Message: "short", Data: data,
	})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected InsufficientStockError, got %T", err)
	}
	if stockErr.MaterialID != 1 || !stockErr.Required.Equal(decimal.NewFromInt(10)) || !stockErr.Available.Equal(decimal.NewFromInt(5)) {
		t.Errorf("unexpected detail: %+v", stockErr)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Error("Expected errors.Is(ErrInsufficientStock)")
	}

	err = ErrorFromResponse(http.StatusUnprocessableEntity, ErrorResponse{Code: CodeBomNotDefined, Message: "no components"})
	if !errors.Is(err, ErrBomNotDefined) {
		t.Errorf("Expected ErrBomNotDefined, got %v", err)
	}

	err = ErrorFromResponse(http.StatusConflict, ErrorResponse{Code: CodeInvalidTransition, Message: "already started"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionFailedErrorMatchesAction(t *testing.T) {
	err := error(&TransitionFailedError{Action: ActionComplete, Message: "boom"})
	if !errors.Is(err, ErrProductionCompletionFailed) {
		t.Error("complete failure should match ErrProductionCompletionFailed")
	}
	if errors.Is(err, ErrProductionStartFailed) {
		t.Error("complete failure must not match ErrProductionStartFailed")
	}
}
