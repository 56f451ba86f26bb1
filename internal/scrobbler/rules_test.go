package scrobbler

import (
	"testing"
)

func TestScrobbleTime(t *testing.T) {
	base := Params{Duration: 200, Enabled: true, Percent: 50}

	tests := []struct {
		name   string
		modify func(p *Params)
		want   float64
	}{
		{
			name:   "half of the song",
			modify: func(p *Params) {},
			want:   100,
		},
		{
			name:   "thirty seconds at fifty percent",
			modify: func(p *Params) { p.Duration = 30 },
			want:   15,
		},
		{
			name:   "no song",
			modify: func(p *Params) { p.Duration = 0 },
			want:   Never,
		},
		{
			name:   "scrobbling disabled",
			modify: func(p *Params) { p.Enabled = false },
			want:   Never,
		},
		{
			name:   "capped by max time",
			modify: func(p *Params) { p.Duration = 600; p.MaxTime = 240 },
			want:   240,
		},
		{
			name:   "max time zero means no cap",
			modify: func(p *Params) { p.Duration = 600; p.MaxTime = 0 },
			want:   300,
		},
		{
			name:   "song longer than max duration",
			modify: func(p *Params) { p.Duration = 1200; p.MaxDuration = 900 },
			want:   Never,
		},
		{
			name:   "song exactly max duration",
			modify: func(p *Params) { p.MaxDuration = 200 },
			want:   100,
		},
		{
			name:   "fast forwarded with ff disabling",
			modify: func(p *Params) { p.FastForwarded = true; p.DisableOnFf = true },
			want:   Never,
		},
		{
			name:   "fast forwarded without ff disabling",
			modify: func(p *Params) { p.FastForwarded = true },
			want:   100,
		},
		{
			name:   "clamped to lower bound",
			modify: func(p *Params) { p.Duration = 20; p.Percent = 1 },
			want:   3,
		},
		{
			name:   "clamped to upper bound",
			modify: func(p *Params) { p.Duration = 20; p.Percent = 100 },
			want:   17,
		},
		{
			name:   "shortest scrobblable song",
			modify: func(p *Params) { p.Duration = 6 },
			want:   3,
		},
		{
			name:   "too short to scrobble",
			modify: func(p *Params) { p.Duration = 4; p.Percent = 100 },
			want:   Never,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			if got := ScrobbleTime(p); got != tt.want {
				t.Errorf("ScrobbleTime(%+v) = %v, want %v", p, got, tt.want)
			}
		})
	}
}

func TestScrobbleTime_NeverExceedsWindow(t *testing.T) {
	for duration := 1.0; duration <= 40; duration++ {
		for _, percent := range []float64{0, 1, 25, 50, 99, 100} {
			got := ScrobbleTime(Params{Duration: duration, Enabled: true, Percent: percent})
			if got == Never {
				continue
			}
			if got < MinimumScrobbleOffset || got > duration-MinimumScrobbleOffset {
				t.Errorf("duration %v percent %v: %v outside window", duration, percent, got)
			}
		}
	}
}

func BenchmarkScrobbleTime(b *testing.B) {
	p := Params{Duration: 245, Enabled: true, Percent: 50, MaxTime: 240}
	for i := 0; i < b.N; i++ {
		ScrobbleTime(p)
	}
}
