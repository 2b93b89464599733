// Package config loads the wordpiece command line configuration from flags, environment
// variables (prefixed with WORDPIECE_) and an optional wordpiece.{yaml,toml,json} file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Vocab    VocabConfig    `mapstructure:"vocab"`
	Tokenize TokenizeConfig `mapstructure:"tokenize"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type VocabConfig struct {
	Path     string `mapstructure:"path"`
	CacheDir string `mapstructure:"cache_dir"`
	NoCache  bool   `mapstructure:"no_cache"`
}

type TokenizeConfig struct {
	Split              string `mapstructure:"split"`
	Unknown            string `mapstructure:"unknown"`
	ContinuationPrefix string `mapstructure:"continuation_prefix"`
	UnkToken           string `mapstructure:"unk_token"`
	MaxWordChars       int    `mapstructure:"max_word_chars"`
	SpecialTokens      bool   `mapstructure:"special_tokens"`
}

type BatchConfig struct {
	Workers   int `mapstructure:"workers"`
	ChunkSize int `mapstructure:"chunk_size"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// Unknown policy names.
const (
	UnknownRemainder = "remainder"
	UnknownWholeWord = "word"
)

func DefaultConfig() Config {
	return Config{
		Vocab: VocabConfig{
			Path:     "vocab.txt",
			CacheDir: "",
		},
		Tokenize: TokenizeConfig{
			Split:   "",
			Unknown: UnknownRemainder,
		},
		Batch: BatchConfig{
			Workers:   4,
			ChunkSize: 1024,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("vocab-path", defaults.Vocab.Path, "Path to vocab.txt or tokenizer.json")
	fs.String("vocab-cache-dir", defaults.Vocab.CacheDir, "Directory of compiled vocabularies (default: user cache dir)")
	fs.Bool("vocab-no-cache", defaults.Vocab.NoCache, "Compile the vocabulary in memory, without the cache")
	fs.String("tokenize-split", defaults.Tokenize.Split, "Word splitter: whitespace, bert, unicode or none (default: from the vocabulary file)")
	fs.String("tokenize-unknown", defaults.Tokenize.Unknown, "Unknown token policy: remainder or word")
	fs.String("tokenize-continuation-prefix", defaults.Tokenize.ContinuationPrefix, "Continuation prefix (default: from the vocabulary file)")
	fs.String("tokenize-unk-token", defaults.Tokenize.UnkToken, "Unknown token (default: from the vocabulary file)")
	fs.Int("tokenize-max-word-chars", defaults.Tokenize.MaxWordChars, "Longer words become one unknown token, 0 for no limit")
	fs.Bool("tokenize-special-tokens", defaults.Tokenize.SpecialTokens, "Enclose the tokens with [CLS] and [SEP]")
	fs.Int("batch-workers", defaults.Batch.Workers, "Number of concurrent tokenization workers")
	fs.Int("batch-chunk-size", defaults.Batch.ChunkSize, "Number of lines tokenized per work unit")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("WORDPIECE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
	} else {
		v.SetConfigName("wordpiece")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, errors.Wrap(err, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that can't be checked by type alone.
func (c Config) Validate() error {
	switch c.Tokenize.Unknown {
	case UnknownRemainder, UnknownWholeWord:
	default:
		return errors.Errorf("invalid unknown token policy %q, must be %q or %q",
			c.Tokenize.Unknown, UnknownRemainder, UnknownWholeWord)
	}
	if c.Tokenize.MaxWordChars < 0 {
		return errors.Errorf("invalid max word chars %d", c.Tokenize.MaxWordChars)
	}
	if c.Batch.Workers < 1 {
		return errors.Errorf("invalid number of batch workers %d", c.Batch.Workers)
	}
	if c.Batch.ChunkSize < 1 {
		return errors.Errorf("invalid batch chunk size %d", c.Batch.ChunkSize)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("vocab.path", c.Vocab.Path)
	v.SetDefault("vocab.cache_dir", c.Vocab.CacheDir)
	v.SetDefault("vocab.no_cache", c.Vocab.NoCache)
	v.SetDefault("tokenize.split", c.Tokenize.Split)
	v.SetDefault("tokenize.unknown", c.Tokenize.Unknown)
	v.SetDefault("tokenize.continuation_prefix", c.Tokenize.ContinuationPrefix)
	v.SetDefault("tokenize.unk_token", c.Tokenize.UnkToken)
	v.SetDefault("tokenize.max_word_chars", c.Tokenize.MaxWordChars)
	v.SetDefault("tokenize.special_tokens", c.Tokenize.SpecialTokens)
	v.SetDefault("batch.workers", c.Batch.Workers)
	v.SetDefault("batch.chunk_size", c.Batch.ChunkSize)
}

// flagKeys maps each flag of RegisterFlags to its config key.
var flagKeys = []struct{ flag, key string }{
	{"vocab-path", "vocab.path"},
	{"vocab-cache-dir", "vocab.cache_dir"},
	{"vocab-no-cache", "vocab.no_cache"},
	{"tokenize-split", "tokenize.split"},
	{"tokenize-unknown", "tokenize.unknown"},
	{"tokenize-continuation-prefix", "tokenize.continuation_prefix"},
	{"tokenize-unk-token", "tokenize.unk_token"},
	{"tokenize-max-word-chars", "tokenize.max_word_chars"},
	{"tokenize-special-tokens", "tokenize.special_tokens"},
	{"batch-workers", "batch.workers"},
	{"batch-chunk-size", "batch.chunk_size"},
}

// bindFlags binds the registered flags found in fs to their nested keys, so a flag only
// overrides the config file and environment when set.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return errors.Wrapf(err, "bind flag --%s", fk.flag)
		}
	}
	return nil
}
