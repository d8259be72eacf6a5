package signtrack

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBoxCenter(t *testing.T) {

	tests := []struct {
		box  Box
		want Point
	}{
		{NewBox(10, 10, 50, 50), Point{30, 30}},
		{NewBox(0, 0, 3, 3), Point{1, 1}},
		{NewBox(75, 90, 125, 110), Point{100, 100}},
	}

	for _, tc := range tests {
		if got := tc.box.Center(); got != tc.want {
			t.Errorf("center of %s: expected %v, got %v", tc.box, tc.want, got)
		}
	}
}

func TestBoxClamp(t *testing.T) {

	tests := []struct {
		box       Box
		want      Box
		wantEmpty bool
	}{
		{NewBox(10, 10, 50, 50), NewBox(10, 10, 50, 50), false},
		{NewBox(-20, -5, 30, 40), NewBox(0, 0, 30, 40), false},
		{NewBox(600, 400, 700, 500), NewBox(600, 400, 640, 480), false},
		{NewBox(640, 100, 700, 150), NewBox(640, 100, 640, 150), true},
		{NewBox(-50, -50, -10, -10), NewBox(0, 0, 0, 0), true},
	}

	for _, tc := range tests {
		got := tc.box.Clamp(640, 480)

		if got != tc.want {
			t.Errorf("clamp %s: expected %s, got %s", tc.box, tc.want, got)
		}

		if got.Empty() != tc.wantEmpty {
			t.Errorf("clamp %s: expected empty=%v", tc.box, tc.wantEmpty)
		}
	}
}

func TestBoxScale(t *testing.T) {

	got := NewBox(100, 50, 200, 150).Scale(0.5, 2)
	want := NewBox(50, 100, 100, 300)

	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLoadLabels(t *testing.T) {

	file := filepath.Join(t.TempDir(), "labels.txt")
	content := "P.127\n\n  P.130 \nW.207a\n"

	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write labels: %v", err)
	}

	labels, err := LoadLabels(file)

	if err != nil {
		t.Fatalf("LoadLabels returned error: %v", err)
	}

	want := []string{"P.127", "P.130", "W.207a"}

	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d: %v", len(want), len(labels), labels)
	}

	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: expected %q, got %q", i, want[i], labels[i])
		}
	}

	if !ContainsLabel(labels, "P.130") {
		t.Errorf("expected P.130 to be found")
	}

	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Errorf("expected error for missing labels file")
	}
}
