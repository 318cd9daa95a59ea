package app

import (
	"context"
	"fmt"
	"time"
)

// Archive forces rotation of the live log into the archive of the day it covers,
// or lists existing archives.
func (a *App) Archive(_ context.Context, opts ArchiveOptions) error {
	store, err := a.newSnapshotStore(nil)
	if err != nil {
		return err
	}

	if opts.List {
		days, err := store.ListArchives()
		if err != nil {
			return err
		}
		if len(days) == 0 {
			fmt.Fprintln(a.out, "no archives found")
			return nil
		}
		for _, day := range days {
			fmt.Fprintf(a.out, "%s\t%s\n", day.Format("2006-01-02"), store.ArchivePath(day))
		}
		return nil
	}

	history, err := store.Load()
	if err != nil {
		return err
	}
	day := time.Now().In(store.Location())
	if len(history) > 0 {
		day = history[0].Timestamp.In(store.Location())
	}

	result, rotated, err := store.Rotate(day)
	if err != nil {
		return err
	}
	if !rotated {
		fmt.Fprintln(a.out, "live log is empty; nothing to archive")
		return nil
	}
	a.Logger.Info().Str("archive", result.Path).Int("snapshots", result.Snapshots).Bool("merged", result.Merged).Msg("archive written")
	fmt.Fprintf(a.out, "archived %d snapshot(s) to %s\n", result.Snapshots, result.Path)
	return nil
}
