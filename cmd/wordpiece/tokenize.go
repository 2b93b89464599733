package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/go-wordpiece/tokenizers/wordpiece"
	"github.com/gomlx/go-wordpiece/tokenizers/wptokenizer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Width(7).
		Align(lipgloss.Right)
	pieceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))
	continuationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("110"))
	specialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
	unknownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
	spanStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func newTokenizeCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Print the tokens of the given text, or of each line of stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, release, err := loadTokenizer(cmd.Context(), activeCfg)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				return printTokens(out, tok, strings.Join(args, " "), jsonOutput)
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			for scanner.Scan() {
				if err := printTokens(out, tok, scanner.Text(), jsonOutput); err != nil {
					return err
				}
			}
			return errors.Wrap(scanner.Err(), "reading stdin")
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON object per token")
	return cmd
}

// tokenOutput is the JSON form of a token. Start and End are in characters.
type tokenOutput struct {
	ID             int    `json:"id"`
	Token          string `json:"token"`
	Start          int    `json:"start"`
	End            int    `json:"end"`
	IsContinuation bool   `json:"is_continuation,omitempty"`
	IsSpecial      bool   `json:"is_special,omitempty"`
}

func printTokens(w io.Writer, tok *wptokenizer.Tokenizer, text string, jsonOutput bool) error {
	pieces := tok.EncodePieces(text)
	tokens := wordpiece.ToCharOffsets(text, pieces)
	enc := json.NewEncoder(w)
	for ii, p := range pieces {
		out := tokenOutput{
			ID:             p.ID,
			Token:          pieceText(tok, text, p),
			Start:          tokens[ii].Start,
			End:            tokens[ii].End,
			IsContinuation: p.IsContinuation,
			IsSpecial:      tok.IsSpecial(p.ID),
		}
		if jsonOutput {
			if err := enc.Encode(out); err != nil {
				return errors.Wrap(err, "writing tokens")
			}
			continue
		}

		style := pieceStyle
		switch {
		case p.ID == tok.Vocabulary().UnknownID():
			style = unknownStyle
		case out.IsSpecial:
			style = specialStyle
		case p.IsContinuation:
			style = continuationStyle
		}
		_, err := fmt.Fprintf(w, "%s  %s  %s\n",
			idStyle.Render(fmt.Sprint(p.ID)),
			style.Render(out.Token),
			spanStyle.Render(fmt.Sprintf("[%d, %d)", out.Start, out.End)))
		if err != nil {
			return errors.Wrap(err, "writing tokens")
		}
	}
	return nil
}

// pieceText returns the vocabulary form of a piece: its text with the continuation prefix for
// continuation pieces, or the token itself for unknown and added special tokens.
func pieceText(tok *wptokenizer.Tokenizer, text string, p wordpiece.Piece) string {
	v := tok.Vocabulary()
	if p.ID == v.UnknownID() || p.Start == p.End {
		if token, found := tok.IDToToken(p.ID); found {
			return token
		}
		return v.UnknownToken()
	}
	if p.IsContinuation {
		return v.Config().ContinuationPrefix + text[p.Start:p.End]
	}
	return text[p.Start:p.End]
}
