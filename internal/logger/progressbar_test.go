package logger

import (
	"strings"
	"testing"
)

func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		width   int
		current int
		want    string
	}{
		{"empty", 100, 10, 0, "[          ] 0/100 (0%)"},
		{"half", 100, 10, 50, "[=====     ] 50/100 (50%)"},
		{"full", 100, 10, 100, "[==========] 100/100 (100%)"},
		{"overflow clamps", 10, 10, 15, "[==========] 15/10 (100%)"},
		{"zero total", 0, 4, 3, "[    ] 3/0 (0%)"},
		{"default width", 100, 0, 30, "[===       ] 30/100 (30%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, tt.width, false)
			pb.Update(tt.current)
			if got := pb.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressBarPrefixAndPercentage(t *testing.T) {
	pb := NewProgressBar(200, 10, false)
	pb.SetPrefix("exec ")
	pb.Update(50)

	if pb.Percentage() != 25 {
		t.Errorf("Percentage() = %d, want 25", pb.Percentage())
	}
	if pb.Current() != 50 {
		t.Errorf("Current() = %d, want 50", pb.Current())
	}
	if !strings.HasPrefix(pb.Render(), "exec [") {
		t.Errorf("prefix missing: %q", pb.Render())
	}
}

func TestProgressBarColor(t *testing.T) {
	pb := NewProgressBar(100, 10, true)
	pb.Update(100)
	if !strings.Contains(pb.Render(), "100/100") {
		t.Errorf("colored render lost its content: %q", pb.Render())
	}
}
