package main

import (
	"fmt"
	"os"

	"github.com/gomlx/go-wordpiece/internal/files"
	"github.com/gomlx/go-wordpiece/tokenizers/vocab"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the vocabulary automaton into the cache, or into --output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := activeCfg
			vf, err := openVocabFile(cfg)
			if err != nil {
				return err
			}
			if _, err := vf.Config(); err != nil {
				return errors.WithMessagef(err, "in %q", cfg.Vocab.Path)
			}

			if output != "" {
				store, err := vocab.Build(vf.Entries())
				if err != nil {
					return err
				}
				err = files.ReplaceAtomic(output, ".compiling", func(f *os.File) error {
					_, err := store.WriteTo(f)
					return err
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d keys\n", output, store.Len())
				return err
			}

			cfg.Vocab.NoCache = false
			store, err := compileStore(cmd.Context(), cfg, vf)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			dir, err := cacheDir(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d keys\n", vf.CachePath(dir), store.Len())
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the automaton to this file instead of the cache")
	return cmd
}
