package gacha

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.yaml
var defaultTuning []byte

//go:embed tuning.schema.json
var tuningSchema []byte

const schemaURL = "https://github.com/fastprodman/duxbank/tuning.schema.json"

var ErrInvalidTuning = errors.New("invalid tuning")

// Tuning holds every number of the economy.
type Tuning struct {
	StartingBalance int          `yaml:"starting_balance"`
	PullCost        int          `yaml:"pull_cost"`
	PullMin         int          `yaml:"pull_min"`
	PullMax         int          `yaml:"pull_max"`
	RollMax         int          `yaml:"roll_max"`
	NukeRoll        int          `yaml:"nuke_roll"`
	LossBelow       int          `yaml:"loss_below"`
	Regen           RegenTuning  `yaml:"regen"`
	Tiers           []TierTuning `yaml:"tiers"`
}

type RegenTuning struct {
	Threshold int `yaml:"threshold"`
	Step      int `yaml:"step"`
	Ceiling   int `yaml:"ceiling"`
}

type TierTuning struct {
	Name   string `yaml:"name"`
	Lower  int    `yaml:"lower"`
	Upper  int    `yaml:"upper"`
	Supply int    `yaml:"supply"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()

		err := c.AddResource(schemaURL, bytes.NewReader(tuningSchema))
		if err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, schemaErr = c.Compile(schemaURL)
	})

	return schema, schemaErr
}

// Default returns the built-in tuning.
func Default() Tuning {
	t, err := Parse(defaultTuning)
	if err != nil {
		panic(fmt.Sprintf("embedded tuning: %v", err))
	}

	return t
}

// Load reads a tuning file. An empty path yields the built-in tuning.
func Load(path string) (Tuning, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning: %w", err)
	}

	t, err := Parse(raw)
	if err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Parse decodes YAML tuning, checks it against the tuning schema and then
// against the cross-field rules the schema cannot express.
func Parse(raw []byte) (Tuning, error) {
	var doc any

	err := yaml.Unmarshal(raw, &doc)
	if err != nil {
		return Tuning{}, fmt.Errorf("decode yaml: %w", err)
	}

	// jsonschema validates JSON-decoded values, so normalise through JSON.
	js, err := json.Marshal(doc)
	if err != nil {
		return Tuning{}, fmt.Errorf("normalise yaml: %w", err)
	}

	var inst any

	err = json.Unmarshal(js, &inst)
	if err != nil {
		return Tuning{}, fmt.Errorf("normalise yaml: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return Tuning{}, fmt.Errorf("compile schema: %w", err)
	}

	err = sch.Validate(inst)
	if err != nil {
		return Tuning{}, fmt.Errorf("%w: %w", ErrInvalidTuning, err)
	}

	var t Tuning

	err = yaml.Unmarshal(raw, &t)
	if err != nil {
		return Tuning{}, fmt.Errorf("decode tuning: %w", err)
	}

	err = t.Validate()
	if err != nil {
		return Tuning{}, err
	}

	return t, nil
}

// Validate checks the relations between fields.
func (t Tuning) Validate() error {
	switch {
	case t.PullMin > t.PullMax:
		return fmt.Errorf("%w: pull_min %d > pull_max %d", ErrInvalidTuning, t.PullMin, t.PullMax)
	case t.NukeRoll < 1 || t.NukeRoll >= t.LossBelow:
		return fmt.Errorf("%w: nuke_roll %d must be in [1, loss_below)", ErrInvalidTuning, t.NukeRoll)
	case t.Regen.Step <= 0:
		return fmt.Errorf("%w: regen step must be positive", ErrInvalidTuning)
	case t.Regen.Threshold >= t.Regen.Ceiling:
		return fmt.Errorf("%w: regen threshold %d >= ceiling %d", ErrInvalidTuning, t.Regen.Threshold, t.Regen.Ceiling)
	}

	table, err := NewTable(t.Tiers)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTuning, err)
	}

	if table.MinRoll() != t.LossBelow {
		return fmt.Errorf("%w: first band starts at %d, want loss_below %d", ErrInvalidTuning, table.MinRoll(), t.LossBelow)
	}

	if table.MaxRoll() != t.RollMax {
		return fmt.Errorf("%w: last band ends at %d, want roll_max %d", ErrInvalidTuning, table.MaxRoll(), t.RollMax)
	}

	return nil
}

// Table builds the tier table. The tuning must be valid.
func (t Tuning) Table() (*Table, error) {
	return NewTable(t.Tiers)
}
