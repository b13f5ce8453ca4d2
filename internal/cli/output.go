package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/task"
)

// progressInterval is how often a running task's progress is logged.
var progressInterval = 2 * time.Second

// printJSON writes v to the command's output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not encode result: %w", err)
	}
	return nil
}

// runTask runs fn as a background task bound to the command's context and
// waits for it. When the context is cancelled (an interrupt), the task is
// asked to stop and runTask still waits for it to return so that its
// rollback completes before the process exits.
func runTask[T any](cmd *cobra.Command, name string, fn func(context.Context, task.Reporter) (T, error)) (T, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	t := task.Start(ctx, name, fn)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			res, _, err := t.Result()
			return res, err
		case <-ctx.Done():
			logging.Log.Warnf("Interrupted, waiting for %s to roll back", name)
			t.Cancel()
			<-t.Done()
			res, _, err := t.Result()
			return res, err
		case <-ticker.C:
			if p := t.Progress(); p.Total > 0 {
				logging.Log.Infof("%s: %s %d/%d", name, p.Stage, p.Done, p.Total)
			}
		}
	}
}
