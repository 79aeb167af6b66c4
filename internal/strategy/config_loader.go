package strategy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a strategy configuration entry in YAML.
type Config struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Parameters map[string]any `yaml:"parameters"`
}

// Params resolves the entry onto the defaults of its type.
func (c Config) Params() (Params, error) {
	p, err := DefaultParams(c.Type).Apply(c.Parameters)
	if err != nil {
		return p, fmt.Errorf("strategy %s: %w", c.ID, err)
	}
	p.Kind = c.Type
	return p, nil
}

// WindowConfig is an inclusive date range in YYYY-MM-DD form.
type WindowConfig struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Range parses the window bounds.
func (w WindowConfig) Range() (time.Time, time.Time, error) {
	from, err := time.Parse(time.DateOnly, w.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window %q from: %w", w.Name, err)
	}
	to, err := time.Parse(time.DateOnly, w.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window %q to: %w", w.Name, err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("window %q ends before it starts", w.Name)
	}
	return from, to, nil
}

// SweepConfig is a parameter grid applied to one strategy entry.
type SweepConfig struct {
	Strategy string               `yaml:"strategy"`
	Grid     map[string][]float64 `yaml:"grid"`
}

// ConfigFile represents the top-level YAML structure.
type ConfigFile struct {
	Strategies []Config       `yaml:"strategies"`
	Windows    []WindowConfig `yaml:"windows"`
	Sweeps     []SweepConfig  `yaml:"sweeps"`
}

// Strategy returns the entry with the given ID.
func (f *ConfigFile) Strategy(id string) (Config, bool) {
	for _, c := range f.Strategies {
		if c.ID == id {
			return c, true
		}
	}
	return Config{}, false
}

// LoadConfig reads strategies, windows and sweeps from a YAML file.
func LoadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document and checks every strategy resolves.
func ParseConfig(data []byte) (*ConfigFile, error) {
	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(file.Strategies))
	for _, c := range file.Strategies {
		if c.ID == "" {
			return nil, fmt.Errorf("strategy entry without id")
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate strategy id %q", c.ID)
		}
		seen[c.ID] = true
		if _, err := c.Params(); err != nil {
			return nil, err
		}
	}
	for _, w := range file.Windows {
		if _, _, err := w.Range(); err != nil {
			return nil, err
		}
	}
	for _, s := range file.Sweeps {
		if !seen[s.Strategy] {
			return nil, fmt.Errorf("sweep references unknown strategy %q", s.Strategy)
		}
	}
	return &file, nil
}

// SyncConfigToDB upserts strategies from config into the database.
func SyncConfigToDB(db *sql.DB, configs []Config) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO strategies (id, name, strategy_type, parameters, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy_type = excluded.strategy_type,
			parameters = excluded.parameters,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cfg := range configs {
		p, err := cfg.Params()
		if err != nil {
			return err
		}
		paramsJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal parameters for strategy %s: %w", cfg.Name, err)
		}

		if _, err := stmt.Exec(cfg.ID, cfg.Name, cfg.Type, string(paramsJSON)); err != nil {
			return fmt.Errorf("failed to upsert strategy %s: %w", cfg.Name, err)
		}
	}

	return tx.Commit()
}
