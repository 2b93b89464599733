package main

import (
	"bufio"
	"context"
	"os"

	"github.com/gomlx/go-wordpiece/internal/files"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/gomlx/go-wordpiece/tokenizers/wptokenizer"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Row is one tokenized input line, as written to the parquet file.
// Starts and Ends are character offsets into Text.
type Row struct {
	Line   int64   `parquet:"line"`
	Text   string  `parquet:"text"`
	IDs    []int64 `parquet:"ids"`
	Starts []int64 `parquet:"starts"`
	Ends   []int64 `parquet:"ends"`
	Mask   []int64 `parquet:"attention_mask"`
}

func newBatchCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Tokenize each line of --input into a row of the --output parquet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" || output == "" {
				return errors.Errorf("batch requires --input and --output")
			}
			tok, release, err := loadTokenizer(cmd.Context(), activeCfg)
			if err != nil {
				return err
			}
			defer release()
			return runBatch(cmd.Context(), tok, input, output, activeCfg.Batch.Workers, activeCfg.Batch.ChunkSize)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Text file to tokenize, one input per line")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Parquet file to write")
	return cmd
}

// runBatch tokenizes the lines of inputPath in chunks of chunkSize lines, with up to workers
// chunks in flight, and writes the rows in line order to outputPath.
func runBatch(ctx context.Context, tok *wptokenizer.Tokenizer, inputPath, outputPath string, workers, chunkSize int) error {
	lines, err := readLines(inputPath)
	if err != nil {
		return err
	}

	rows := make([]Row, len(lines))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(lines); start += chunkSize {
		end := min(start+chunkSize, len(lines))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for ii := start; ii < end; ii++ {
				rows[ii] = tokenizeRow(tok, int64(ii), lines[ii])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	err = files.ReplaceAtomic(outputPath, ".writing", func(f *os.File) error {
		writer := parquet.NewGenericWriter[Row](f)
		if _, err := writer.Write(rows); err != nil {
			return errors.Wrapf(err, "writing rows to %q", outputPath)
		}
		return errors.Wrapf(writer.Close(), "closing parquet writer for %q", outputPath)
	})
	if err != nil {
		return err
	}
	klog.V(1).Infof("batch: wrote %d rows to %q", len(rows), outputPath)
	return nil
}

func tokenizeRow(tok *wptokenizer.Tokenizer, line int64, text string) Row {
	pieces := tok.EncodePieces(text)
	tokens := wordpiece.ToCharOffsets(text, pieces)
	row := Row{
		Line:   line,
		Text:   text,
		IDs:    make([]int64, len(tokens)),
		Starts: make([]int64, len(tokens)),
		Ends:   make([]int64, len(tokens)),
	}
	ids := make([]int, len(tokens))
	for ii, token := range tokens {
		ids[ii] = token.ID
		row.IDs[ii] = int64(token.ID)
		row.Starts[ii] = int64(token.Start)
		row.Ends[ii] = int64(token.End)
	}
	mask := tok.AttentionMask(ids)
	row.Mask = make([]int64, len(mask))
	for ii, m := range mask {
		row.Mask[ii] = int64(m)
	}
	return row
}

func readLines(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open input %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read input %q", filePath)
	}
	return lines, nil
}
