package costs

import "testing"

func TestCharge(t *testing.T) {
	cfg := &Config{
		CommissionRate: 0.001,
		SlippageRate:   0.002,
		MinCommission:  5.0,
	}

	tests := []struct {
		name     string
		notional float64
		cfg      *Config
		want     float64
	}{
		{
			name:     "commission above minimum",
			notional: 10000,
			cfg:      cfg,
			want:     10000*0.001 + 10000*0.002,
		},
		{
			name:     "minimum commission floor applies",
			notional: 1000,
			cfg:      cfg,
			want:     5.0 + 1000*0.002,
		},
		{
			name:     "nil config is zero cost",
			notional: 10000,
			cfg:      nil,
			want:     0,
		},
		{
			name:     "zero notional is zero cost",
			notional: 0,
			cfg:      cfg,
			want:     0,
		},
		{
			name:     "negative notional is zero cost",
			notional: -100,
			cfg:      cfg,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Charge(tt.notional, tt.cfg)
			if got != tt.want {
				t.Errorf("Charge(%f) = %f, want %f", tt.notional, got, tt.want)
			}
		})
	}
}
