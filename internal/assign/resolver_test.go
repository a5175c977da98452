package assign

import (
	"errors"
	"testing"
)

var directory = []User{
	{ID: "u1", DisplayName: "Sophie Martin", Role: "sales"},
	{ID: "u2", DisplayName: "Jérôme Dupont", Role: "sales"},
	{ID: "u3", DisplayName: "Sophie Bernard", Role: "sales"},
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"empty mode", Config{}, nil},
		{"none", Config{Mode: ModeNone}, nil},
		{"single ok", Config{Mode: ModeSingle, UserID: "u1"}, nil},
		{"single missing user", Config{Mode: ModeSingle}, ErrMissingUser},
		{"round robin ok", Config{Mode: ModeRoundRobin, Pool: []string{"u1"}}, nil},
		{"round robin empty pool", Config{Mode: ModeRoundRobin}, ErrEmptyPool},
		{"by column ok", Config{Mode: ModeByColumn, Column: "commercial"}, nil},
		{"by column missing column", Config{Mode: ModeByColumn}, ErrMissingColumn},
		{"unknown mode", Config{Mode: "weighted"}, ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateConfig(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("ValidateConfig(%+v) = %v, want %v", tt.cfg, err, tt.want)
			}
		})
	}
}

func TestResolveSingle(t *testing.T) {
	c, err := NewContext(Config{Mode: ModeSingle, UserID: "u2"}, directory)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if got := c.Resolve(""); got != "u2" {
			t.Fatalf("Resolve = %q, want u2", got)
		}
	}
}

func TestResolveRoundRobin(t *testing.T) {
	pool := []string{"u1", "u2", "u3"}
	c, err := NewContext(Config{Mode: ModeRoundRobin, Pool: pool}, directory)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"u1", "u2", "u3", "u1", "u2"}
	for i, w := range want {
		if got := c.Resolve(""); got != w {
			t.Errorf("assignment %d = %q, want %q", i, got, w)
		}
	}
	if c.RoundRobinIndex != len(want) {
		t.Errorf("index = %d, want %d", c.RoundRobinIndex, len(want))
	}
}

func TestResolveByColumn(t *testing.T) {
	c, err := NewContext(Config{Mode: ModeByColumn, Column: "commercial"}, directory)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		raw  string
		want string
	}{
		{"Sophie Martin", "u1"},
		{"sophie  martin", "u1"},   // case and spacing
		{"Jerome Dupont", "u2"},    // diacritics stripped both ways
		{"jérôme dupont", "u2"},
		{"u3", "u3"},               // raw user id
		{"Jérôme", "u2"},           // unambiguous first name
		{"Sophie", ""},             // ambiguous first name stays unassigned
		{"Inconnu Personne", ""},   // no match
		{"", ""},                   // blank cell
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := c.Resolve(tt.raw); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNewContextRejectsBadConfig(t *testing.T) {
	if _, err := NewContext(Config{Mode: ModeSingle}, directory); !errors.Is(err, ErrMissingUser) {
		t.Errorf("err = %v, want ErrMissingUser", err)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Sophie   Martin ", "sophie martin"},
		{"Jérôme", "jerome"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
