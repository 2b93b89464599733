package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/gomlx/go-wordpiece/internal/config"
	"github.com/gomlx/go-wordpiece/tokenizers/api"
	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/gomlx/go-wordpiece/tokenizers/vocabfile"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/gomlx/go-wordpiece/tokenizers/wptokenizer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func newRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "wordpiece",
		Short:         "Wordpiece tokenizer command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	// klog flags: -v for verbosity, --logtostderr, etc.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(newTokenizeCmd())
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newBatchCmd())
	return cmd
}

// openVocabFile reads the configured vocabulary file and applies the configuration overrides.
func openVocabFile(cfg config.Config) (*vocabfile.File, error) {
	vf, err := wptokenizer.OpenFile(cfg.Vocab.Path)
	if err != nil {
		return nil, err
	}
	tc := cfg.Tokenize
	if tc.Split != "" {
		vf.Split = tc.Split
	}
	if tc.ContinuationPrefix != "" {
		vf.ContinuationPrefix = tc.ContinuationPrefix
	}
	if tc.MaxWordChars > 0 {
		vf.MaxWordChars = tc.MaxWordChars
	}
	if tc.UnkToken != "" {
		id, found := vf.ID(tc.UnkToken)
		if !found {
			return nil, errors.Errorf("unknown token %q not found in %q", tc.UnkToken, cfg.Vocab.Path)
		}
		vf.UnknownToken = tc.UnkToken
		vf.UnknownID = id
	}
	return vf, nil
}

// cacheDir returns the configured cache directory, or "wordpiece" under the user cache directory.
func cacheDir(cfg config.Config) (string, error) {
	if cfg.Vocab.CacheDir != "" {
		return cfg.Vocab.CacheDir, nil
	}
	userCache, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrapf(err, "failed to find user cache directory, use --vocab-cache-dir")
	}
	return filepath.Join(userCache, "wordpiece"), nil
}

// compileStore returns the automaton of vf, from the cache unless disabled.
func compileStore(ctx context.Context, cfg config.Config, vf *vocabfile.File) (*vocab.Store, error) {
	if cfg.Vocab.NoCache {
		return vocab.Build(vf.Entries())
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		return nil, err
	}
	return vocabfile.CompileCached(ctx, vf, dir)
}

// loadTokenizer builds the tokenizer described by cfg. The returned function releases it.
func loadTokenizer(ctx context.Context, cfg config.Config) (*wptokenizer.Tokenizer, func(), error) {
	vf, err := openVocabFile(cfg)
	if err != nil {
		return nil, nil, err
	}
	wpConfig, err := vf.Config()
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "in %q", cfg.Vocab.Path)
	}
	if cfg.Tokenize.Unknown == config.UnknownWholeWord {
		wpConfig.Unknown = wordpiece.UnknownWholeWord
	}

	store, err := compileStore(ctx, cfg, vf)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := store.Close(); err != nil {
			klog.Warningf("closing vocabulary: %+v", err)
		}
	}
	v, err := wordpiece.New(store, wpConfig)
	if err != nil {
		release()
		return nil, nil, err
	}
	tok, err := wptokenizer.New(&api.Config{UnkToken: vf.UnknownToken}, v, vf)
	if err != nil {
		release()
		return nil, nil, err
	}
	tok.WithSpecialTokens(cfg.Tokenize.SpecialTokens)
	klog.V(1).Infof("loaded %d tokens from %q", tok.VocabSize(), cfg.Vocab.Path)
	return tok, release, nil
}
