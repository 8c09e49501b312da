package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"keywordgate/pkg/matcher"
)

type matchOptions struct {
	keywords      []string
	caseSensitive bool
	invert        bool
	buffered      bool
}

func newMatchCmd() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Print stdin lines that contain any keyword",
		Long: `match reads lines from stdin and prints those containing any of the keywords.
With no keywords every line is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			return runMatch(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.keywords, "keyword", "k", nil, "keyword to match (repeatable)")
	cmd.Flags().BoolVar(&opts.caseSensitive, "case-sensitive", false, "match case exactly")
	cmd.Flags().BoolVarP(&opts.invert, "invert", "v", false, "print lines that do not match")
	cmd.Flags().BoolVar(&opts.buffered, "buffered", false, "scan through the engine's scan buffer")
	return cmd
}

func runMatch(in io.Reader, out io.Writer, opts *matchOptions) error {
	e := matcher.New(opts.caseSensitive)
	if err := e.UpdateKeywords(opts.keywords); err != nil {
		return err
	}

	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		line, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Long line: collect the rest before scanning.
			full := append([]byte(nil), line...)
			for errors.Is(err, bufio.ErrBufferFull) {
				line, err = r.ReadSlice('\n')
				full = append(full, line...)
			}
			line = full
		}
		if len(line) > 0 {
			hit, scanErr := scanLine(e, trimEOL(line), opts.buffered)
			if scanErr != nil {
				return scanErr
			}
			if hit != opts.invert {
				if _, werr := w.Write(line); werr != nil {
					return werr
				}
				if line[len(line)-1] != '\n' {
					_ = w.WriteByte('\n')
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func scanLine(e *matcher.FilterEngine, line []byte, buffered bool) (bool, error) {
	if !buffered {
		return e.CheckMatchBytes(line), nil
	}
	if err := e.EnsureBufferCapacity(len(line)); err != nil {
		return false, err
	}
	n := copy(e.Buffer(), line)
	return e.CheckMatchBuffered(n)
}

func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}
