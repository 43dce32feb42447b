package audio

import "testing"

func TestDownmixInterleaved(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		channels int
		frames   int
		want     []float32
	}{
		{
			name:     "mono copy",
			input:    []float32{0.1, 0.2, 0.3},
			channels: 1,
			frames:   3,
			want:     []float32{0.1, 0.2, 0.3},
		},
		{
			name:     "radio stereo",
			input:    []float32{0, 1, 0.5, 0.5, 1, 0, -0.5, 0.5},
			channels: 2,
			frames:   4,
			want:     []float32{0.5, 0.5, 0.5, 0},
		},
		{
			name:     "short read",
			input:    []float32{1, 1, -1, -1, 9, 9},
			channels: 2,
			frames:   2,
			want:     []float32{1, -1},
		},
		{
			name:     "mono short read",
			input:    []float32{0.25, 0.75, 9},
			channels: 1,
			frames:   2,
			want:     []float32{0.25, 0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := downmixInterleaved(tt.input, tt.channels, tt.frames)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d frames, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("frame %d: expected %f, got %f", i, tt.want[i], got[i])
				}
			}
			if &got[0] == &tt.input[0] {
				t.Error("expected a new slice")
			}
		})
	}
}
