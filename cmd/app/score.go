package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"RiskWatch/internal/domain/models"
	"RiskWatch/internal/services/risk"
	"RiskWatch/internal/services/summary"
	"RiskWatch/internal/usecase"
	applogger "RiskWatch/pkg/logger"
)

func scoreCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score snapshot JSON offline and print the assessments",
		Long:  "Reads one snapshot object or an array of them from --file (or stdin with -) and prints the resulting asset states.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open snapshot file: %w", err)
				}
				defer f.Close()
				in = f
			}
			return scoreSnapshots(cmd.Context(), in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "snapshot JSON file, - for stdin")
	return cmd
}

func scoreSnapshots(ctx context.Context, r io.Reader, w io.Writer) error {
	snaps, err := decodeSnapshots(r)
	if err != nil {
		return err
	}
	l := applogger.NewNop()
	cycle := usecase.NewRefreshCycle(usecase.CycleDeps{
		Scorer:     risk.NewScorer(),
		Summarizer: summary.NewChain(l),
		Board:      usecase.NewAnalysisBoard(),
		Logger:     l,
	}, 0, 0)

	out := make([]models.AssetState, 0, len(snaps))
	for _, s := range snaps {
		s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
		out = append(out, cycle.Assess(ctx, s))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func decodeSnapshots(r io.Reader) ([]models.Snapshot, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("no snapshot input")
	}
	var snaps []models.Snapshot
	if b[0] == '[' {
		err = json.Unmarshal(b, &snaps)
	} else {
		var s models.Snapshot
		err = json.Unmarshal(b, &s)
		snaps = append(snaps, s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	for i, s := range snaps {
		if strings.TrimSpace(s.Symbol) == "" {
			return nil, fmt.Errorf("snapshot %d: symbol is required", i)
		}
	}
	return snaps, nil
}
