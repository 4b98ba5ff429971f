package main

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dukerupert/grocerytracker/internal/backup"
	"github.com/dukerupert/grocerytracker/internal/tracker"
)

func (a *app) passphrase(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if a.cfg.BackupPassphrase != "" {
		return a.cfg.BackupPassphrase, nil
	}
	return "", usagef("a passphrase is required: use -passphrase or GROCERY_BACKUP_PASSPHRASE")
}

func (a *app) backup(args []string) error {
	fs := a.flags("backup")
	pass := fs.String("passphrase", "", "encryption passphrase")
	keep := fs.Int("keep", 0, "afterwards keep only the newest N backups (0 keeps all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	passphrase, err := a.passphrase(*pass)
	if err != nil {
		return err
	}

	return a.withTracker(func(t *tracker.Tracker) error {
		ctx := context.Background()
		mgr := a.backupManager(t.DB())
		info, err := mgr.Run(ctx, passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Backup written to %s (%d bytes)\n", info.Path, info.Size)
		if info.Uploaded {
			fmt.Fprintf(a.stdout, "Uploaded to s3://%s/%s\n", a.cfg.S3.Bucket, info.Name)
		}
		if *keep > 0 {
			removed, err := mgr.Prune(ctx, *keep)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintf(a.stdout, "Removed %s\n", name)
			}
		}
		return nil
	})
}

func (a *app) backups(args []string) error {
	fs := a.flags("backups")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	list, err := a.backupManager(nil).List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No backups.")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCREATED\tSIZE")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04:05Z"), b.Size)
	}
	return tw.Flush()
}

// restore replaces the database with a backup. The server must be stopped.
func (a *app) restore(args []string) error {
	fs := a.flags("restore")
	pass := fs.String("passphrase", "", "encryption passphrase")
	fetch := fs.Bool("fetch", false, "download the named backup from S3 first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("restore takes exactly one backup file or name")
	}
	passphrase, err := a.passphrase(*pass)
	if err != nil {
		return err
	}

	ctx := context.Background()
	src := fs.Arg(0)
	if *fetch {
		if !a.cfg.S3.Enabled() {
			return usagef("-fetch needs GROCERY_S3_BUCKET, GROCERY_S3_ACCESS_KEY and GROCERY_S3_SECRET_KEY")
		}
		src, err = a.backupManager(nil).Fetch(ctx, filepath.Base(src))
		if err != nil {
			return err
		}
	}

	if err := backup.Restore(ctx, src, a.cfg.DBPath, passphrase); err != nil {
		return fmt.Errorf("restore %s: %w", src, err)
	}
	fmt.Fprintf(a.stdout, "Restored %s from %s\n", a.cfg.DBPath, src)
	return nil
}
