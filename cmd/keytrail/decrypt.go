package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"keytrail/internal/eventlog"
	"keytrail/internal/session"
)

type recordView struct {
	Line       int    `json:"line"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Key        string `json:"key"`
	Transition string `json:"transition"`
	Watermark  string `json:"watermark"`
	Color      string `json:"color"`
	FPS        int    `json:"fps"`
}

func newDecryptCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "decrypt <log>",
		Short: "Print the plain lines of a session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			lc, err := a.cipher()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			var bad int

			err = session.Scan(f, lc, func(n int, line string) error {
				if asJSON && strings.HasPrefix(line, "+") {
					rec, perr := eventlog.Parse(line)
					if perr == nil {
						return enc.Encode(recordView{
							Line:       n,
							ElapsedMs:  rec.ElapsedMillis,
							Key:        rec.KeyID,
							Transition: rec.Transition.String(),
							Watermark:  rec.Watermark.NumberString(),
							Color:      "#" + rec.Watermark.Color.Hex(),
							FPS:        rec.FPS,
						})
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "line %d: %v\n", n, perr)
				}
				_, werr := fmt.Fprintln(out, line)
				return werr
			}, func(le *session.LineError) {
				bad++
				fmt.Fprintln(cmd.ErrOrStderr(), le.Error())
			})
			if err != nil {
				return err
			}
			if bad > 0 {
				return fmt.Errorf("%d line(s) could not be decoded", bad)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print event records as JSON objects")
	return cmd
}
