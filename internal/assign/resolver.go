package assign

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Mode selects how lead ownership is decided. The mode is fixed for the
// whole import run.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeSingle     Mode = "single"
	ModeRoundRobin Mode = "round_robin"
	ModeByColumn   Mode = "by_column"
)

var (
	ErrMissingUser   = errors.New("single assignment requires a user id")
	ErrEmptyPool     = errors.New("round-robin assignment requires a non-empty user pool")
	ErrMissingColumn = errors.New("by-column assignment requires a source column name")
	ErrUnknownMode   = errors.New("unknown assignment mode")
)

// Config is the per-import assignment configuration.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`
	// UserID is the owner for ModeSingle.
	UserID string `json:"user_id,omitempty" yaml:"user_id"`
	// Pool is the ordered user-id cycle for ModeRoundRobin.
	Pool []string `json:"pool,omitempty" yaml:"pool"`
	// Column is the source column whose raw value names the owner for
	// ModeByColumn.
	Column string `json:"column,omitempty" yaml:"column"`
}

// ValidateConfig is the precondition gate run before any row is processed.
// A config rejected here means zero rows processed, never a per-row failure.
func ValidateConfig(cfg Config) error {
	switch cfg.Mode {
	case "", ModeNone:
		return nil
	case ModeSingle:
		if cfg.UserID == "" {
			return ErrMissingUser
		}
	case ModeRoundRobin:
		if len(cfg.Pool) == 0 {
			return ErrEmptyPool
		}
	case ModeByColumn:
		if cfg.Column == "" {
			return ErrMissingColumn
		}
	default:
		return ErrUnknownMode
	}
	return nil
}

// User is one entry of the CRM user directory.
type User struct {
	ID          string
	DisplayName string
	Role        string
}

// Context carries the resolver state for one import run. RoundRobinIndex is
// the only mutable cross-row state; it must be owned by a single sequential
// caller. Build one Context per job, never share across jobs.
type Context struct {
	Config          Config
	RoundRobinIndex int

	userByKey map[string]string
}

// NewContext validates the config and builds the lookup directory once,
// before any row is processed. The directory keys each user by normalized
// full display name, by raw id, and, only when unambiguous across all
// users, by first name alone.
func NewContext(cfg Config, users []User) (*Context, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Context{Config: cfg, userByKey: make(map[string]string, len(users)*2)}
	firstNames := make(map[string][]string)
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		c.userByKey[u.ID] = u.ID
		full := normalizeKey(u.DisplayName)
		if full == "" {
			continue
		}
		c.userByKey[full] = u.ID
		if first, _, ok := strings.Cut(full, " "); ok || first != "" {
			firstNames[first] = append(firstNames[first], u.ID)
		}
	}
	for first, ids := range firstNames {
		if len(ids) == 1 {
			if _, taken := c.userByKey[first]; !taken {
				c.userByKey[first] = ids[0]
			}
		}
	}
	return c, nil
}

// Resolve returns the owner user id for one row, or "" for unassigned.
// rawValue is the row's raw (pre-normalization) value of the configured
// column; it is ignored outside ModeByColumn. An empty result is a normal
// outcome, never an error: an empty pool or an unmatched name leaves the
// lead unassigned.
func (c *Context) Resolve(rawValue string) string {
	switch c.Config.Mode {
	case ModeSingle:
		return c.Config.UserID
	case ModeRoundRobin:
		if len(c.Config.Pool) == 0 {
			return ""
		}
		id := c.Config.Pool[c.RoundRobinIndex%len(c.Config.Pool)]
		c.RoundRobinIndex++
		return id
	case ModeByColumn:
		key := normalizeKey(rawValue)
		if key == "" {
			return ""
		}
		if id, ok := c.userByKey[key]; ok {
			return id
		}
		// Raw ids are stored unnormalized; retry with the trimmed input.
		return c.userByKey[strings.TrimSpace(rawValue)]
	default:
		return ""
	}
}

// normalizeKey lowercases, strips diacritics and collapses whitespace so
// "Jérôme  Dupont" and "jerome dupont" resolve alike.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(strings.TrimSpace(s))) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
