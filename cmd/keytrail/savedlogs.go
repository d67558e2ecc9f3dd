package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"keytrail/internal/config"
	"keytrail/internal/savedlog"
	"keytrail/internal/store"
)

func newLastCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the most recently saved log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.LatestSavedLog()
			if err != nil {
				return err
			}
			if rec == nil {
				return savedlog.ErrNoSavedLog
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, savedLogView(rec))
			}
			fmt.Fprintf(out, "session:  %s\n", rec.SessionID)
			fmt.Fprintf(out, "path:     %s\n", rec.Info.SourcePath)
			fmt.Fprintf(out, "folders:  %s/%s/%s\n", rec.Info.RootFolder, rec.Info.BossFolder, rec.Info.DifficultyFolder)
			fmt.Fprintf(out, "saved at: %s\n", rec.SavedAt.Format("2006-01-02 15:04:05"))
			if err := store.VerifySavedLog(rec); err != nil {
				fmt.Fprintf(out, "status:   %v\n", err)
			} else {
				fmt.Fprintln(out, "status:   intact")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.ListSavedLogs(limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SAVED\tSESSION\tFOLDERS\tPATH")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s/%s/%s\t%s\n",
					r.SavedAt.Format("2006-01-02 15:04"), r.SessionID,
					r.Info.RootFolder, r.Info.BossFolder, r.Info.DifficultyFolder, r.Info.SourcePath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of logs (0 for all)")
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "export [session-id]",
		Short: "Copy a saved log (default: the latest) into the export tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var rec *store.SavedLog
			if len(args) == 1 {
				rec, err = st.GetSavedLog(args[0])
			} else {
				rec, err = st.LatestSavedLog()
			}
			if err != nil {
				return err
			}
			if rec == nil {
				return savedlog.ErrNoSavedLog
			}

			if root == "" {
				root = config.ExpandPath(a.cfg.Export.Root)
			}
			dest, err := savedlog.Export(root, rec.Info)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "export root (default: export.root from config)")
	return cmd
}

func newVerifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that saved logs still match their recorded checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			bad, err := st.VerifyAllSavedLogs()
			if err != nil {
				return err
			}
			for _, id := range bad {
				fmt.Fprintf(cmd.OutOrStdout(), "modified or missing: %s\n", id)
			}
			if len(bad) > 0 {
				return errors.New("verification failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all saved logs intact")
			return nil
		},
	}
}

type savedLogJSON struct {
	SessionID string        `json:"session_id"`
	Info      savedlog.Info `json:"info"`
	Checksum  string        `json:"checksum,omitempty"`
	SavedAt   string        `json:"saved_at"`
}

func savedLogView(rec *store.SavedLog) savedLogJSON {
	return savedLogJSON{
		SessionID: rec.SessionID,
		Info:      rec.Info,
		Checksum:  rec.Checksum,
		SavedAt:   rec.SavedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
