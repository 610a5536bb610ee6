package main

import (
	"strings"
	"testing"
	"time"

	"justapengu.in/actelemetry/internal/laplog"
)

func TestConsoleLapCompleted(t *testing.T) {
	testCases := []struct {
		name     string
		lap      laplog.LapSummary
		expected string
	}{
		{
			name:     "next lap",
			lap:      laplog.LapSummary{Lap: 2, NextLap: 3, LapTime: 95123 * time.Millisecond},
			expected: "lapCount: 3, lapTime: 95.123\n",
		},
		{
			name:     "counter reset",
			lap:      laplog.LapSummary{Lap: 4, NextLap: 0},
			expected: "lapCount: 0, lapTime: 0.000\n",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var out strings.Builder

			NewConsole(&out).LapCompleted(testCase.lap)

			if !strings.HasSuffix(out.String(), testCase.expected) {
				t.Errorf("expected %q, got %q", testCase.expected, out.String())
			}
		})
	}
}
