package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataview/internal/viewer"
)

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV or Excel file and print the first page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printSession(cmd.OutOrStdout(), s)
		},
	}
}

// upload drives the file through a viewer.Runner, the same state machine
// the interactive viewer uses, and returns the settled session.
func (a *app) upload(ctx context.Context, path string) (viewer.Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return viewer.Session{}, err
	}
	if info.IsDir() {
		return viewer.Session{}, fmt.Errorf("%s is a directory", path)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := viewer.NewRunner(a.client, viewer.NewSession(a.cfg.PageSize),
		viewer.WithRunnerLogger(a.logger))
	updates := runner.Subscribe()
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	runner.Dispatch(viewer.SelectFile{File: viewer.FileRef{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}})
	runner.Dispatch(viewer.Upload{})

	// Updates may be dropped for a slow reader, so each one only prompts a
	// look at the latest snapshot.
	for range updates {
		s := runner.Snapshot()
		if !uploadSettled(s) {
			continue
		}
		cancel()
		<-runErr
		if s.UploadErr != "" {
			return s, errors.New(s.UploadErr)
		}
		return s, nil
	}
	return runner.Snapshot(), <-runErr
}

// uploadSettled reports whether an upload has finished, one way or the other.
func uploadSettled(s viewer.Session) bool {
	return !s.Busy && (s.UploadErr != "" || s.HasDataset())
}
