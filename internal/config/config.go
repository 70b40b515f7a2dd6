// Package config loads the bot's runtime options: worker count and
// whether unknown-piece layers speculate over the full bag. It follows
// the teacher's struct-based configuration (dualnet.Config,
// mcts.Config) rather than a flags/env framework, with an optional YAML
// file loaded through viper the way tabular/reinforcement.FromYaml does.
package config

import (
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// BotOptions configures the worker pool and the Dag's speculative-root
// behavior (SPEC_FULL.md SUPPLEMENTED FEATURE 3, original_source's
// BotOptions.speculate).
type BotOptions struct {
	Workers   int  `yaml:"workers"`
	Speculate bool `yaml:"speculate"`
	Seed      uint64 `yaml:"seed"`
}

// DefaultBotOptions mirrors DefaultConf's role in dualnet: a sane
// starting point callers can override field-by-field.
func DefaultBotOptions() BotOptions {
	return BotOptions{
		Workers:   runtime.NumCPU(),
		Speculate: true,
		Seed:      1,
	}
}

// IsValid matches dualnet.Config.IsValid's contract: a pre-flight check
// callers run before handing the config to the worker pool.
func (o BotOptions) IsValid() bool {
	return o.Workers >= 1
}

// outerConfig mirrors tabular's OuterConfig/TrainingConfig split: the
// YAML file nests the bot settings under a top-level key so the same
// file can later grow sibling sections without a breaking rename.
type outerConfig struct {
	Bot map[string]interface{} `yaml:"bot"`
}

// FromYaml reads BotOptions from path, falling back to
// DefaultBotOptions for any field the file omits. There was no strong
// reason to prefer viper over plain yaml.Unmarshal here either, other
// than matching what the rest of this stack already reaches for.
func FromYaml(path string) (BotOptions, error) {
	opts := DefaultBotOptions()

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return opts, err
	}

	var outer outerConfig
	if err := vp.Unmarshal(&outer); err != nil {
		return opts, err
	}

	spec, err := yaml.Marshal(outer.Bot)
	if err != nil {
		return opts, err
	}
	if err := yaml.Unmarshal(spec, &opts); err != nil {
		return opts, err
	}
	return opts, nil
}
