package ocr

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestMeanConfidence(t *testing.T) {
	cases := []struct {
		name   string
		tokens []int
		want   float64
	}{
		{"empty sequence yields zero", nil, 0.0},
		{"all non-positive yields zero", []int{0, -1, 0}, 0.0},
		{"simple mean", []int{80, 90}, 85.0},
		{"non-positive tokens excluded from mean", []int{0, 60, -1, 90}, 75.0},
		{"single token", []int{42}, 42.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Result{TokenConfidences: c.tokens}.MeanConfidence()
			if math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("MeanConfidence() = %f, want %f", got, c.want)
			}
		})
	}
}

func TestNewInput(t *testing.T) {
	meta := map[string]string{"tessedit_char_whitelist": "0123456789"}
	in := NewInput([]byte{1, 2, 3}, ModeEnhanced,
		WithLanguages("eng", "deu"),
		WithPageIndex(3),
		WithMetadata(meta),
	)
	if in.Mode != ModeEnhanced {
		t.Fatalf("mode = %q, want %q", in.Mode, ModeEnhanced)
	}
	if in.PageIndex != 3 {
		t.Fatalf("page index = %d, want 3", in.PageIndex)
	}
	if !reflect.DeepEqual(in.Languages, []string{"eng", "deu"}) {
		t.Fatalf("languages = %v", in.Languages)
	}
	meta["tessedit_char_whitelist"] = "abc"
	if in.Metadata["tessedit_char_whitelist"] != "0123456789" {
		t.Fatalf("metadata was not copied: %+v", in.Metadata)
	}
}

func TestDefaultEngineIsNoop(t *testing.T) {
	res, err := DefaultEngine().Recognize(context.Background(), Input{ID: "p1"})
	if err != nil {
		t.Fatalf("noop engine error = %v", err)
	}
	if res.InputID != "p1" || res.Text != "" || res.MeanConfidence() != 0 {
		t.Fatalf("unexpected noop result: %+v", res)
	}
}
