package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anidbcli/anidbcli/internal/alog"
	"github.com/anidbcli/anidbcli/internal/anidb/cache"
	"github.com/anidbcli/anidbcli/internal/anidb/planner"
	"github.com/anidbcli/anidbcli/internal/anidb/session"
	"github.com/anidbcli/anidbcli/internal/config"
	"github.com/anidbcli/anidbcli/internal/output"
	"github.com/anidbcli/anidbcli/internal/pipeline"
)

const apiAddress = "api.anidb.net:9000"

func newAPICmd() *cobra.Command {
	var (
		username              string
		password              string
		apikey                string
		add                   bool
		unwatched             bool
		rename                bool
		targetFormat          string
		hardlink              bool
		softlink              bool
		keepStructure         bool
		dateFormat            string
		deleteEmpty           bool
		persistent            bool
		abort                 bool
		state                 int
		showED2K              bool
		suppressNetworkAccess bool
	)

	cmd := &cobra.Command{
		Use:   "api FILES...",
		Short: "Identify files against AniDB and optionally mylist/rename them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minLevel := slog.LevelInfo
			if flagQuiet {
				minLevel = alog.LevelNotice
			}
			out := output.NewLogCollaborator(alog.New(os.Stderr, false, minLevel))

			paths, err := config.Resolve()
			if err != nil {
				return err
			}
			if err := paths.EnsureBaseDir(); err != nil {
				return err
			}

			if password == "" && username != "" {
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			store, err := cache.Open(paths.CachePath)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			sess, closeSession, err := connect(paths, username, password, apikey, persistent)
			if err != nil {
				return err
			}
			defer closeSession()

			plan := planner.New(store, sess)

			var ops []pipeline.Operation
			ops = append(ops, &pipeline.HashOp{Output: out, ShowED2K: showED2K})
			if add {
				ops = append(ops, &pipeline.MylistAddOp{Doer: sess, Output: out, State: state, Unwatched: unwatched})
			}
			if rename {
				ops = append(ops, &pipeline.GetFileInfoOp{Planner: plan, Output: out, AllowNetwork: !suppressNetworkAccess})
				ops = append(ops, &pipeline.RenameOp{
					Output:        out,
					TargetFormat:  targetFormat,
					DateFormat:    dateFormat,
					KeepStructure: keepStructure,
					DeleteEmpty:   deleteEmpty,
					SoftLink:      softlink,
					HardLink:      hardlink,
					Abort:         abort,
				})
			}
			runtime := pipeline.New(ops...)

			files, err := filesToProcess(args)
			if err != nil {
				return err
			}

			ctx := context.Background()
			failures := 0
			for _, f := range files {
				rec := pipeline.NewRecord(f)
				if !runtime.Run(ctx, rec) {
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed", failures, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "AniDB username.")
	cmd.Flags().StringVarP(&password, "password", "p", "", "AniDB password.")
	cmd.Flags().StringVarP(&apikey, "apikey", "k", "", "AniDB API key, enables encrypted session.")
	cmd.Flags().BoolVarP(&add, "add", "a", false, "Add files to mylist.")
	cmd.Flags().BoolVarP(&unwatched, "unwatched", "U", false, "Mark mylist entries as unwatched.")
	cmd.Flags().BoolVar(&rename, "rename", false, "Identify and rename files.")
	cmd.Flags().StringVar(&targetFormat, "format", "%a_english%/%ep_no% - %a_english% - %ep_english%", "Rename target format string.")
	cmd.Flags().BoolVarP(&hardlink, "link", "H", false, "Hardlink instead of moving.")
	cmd.Flags().BoolVarP(&softlink, "softlink", "l", false, "Symlink instead of moving.")
	cmd.Flags().BoolVarP(&keepStructure, "keep-structure", "s", false, "Preserve the source directory structure under the target.")
	cmd.Flags().StringVarP(&dateFormat, "date-format", "d", "%Y-%m-%d", "strftime-style format for the %aired% token.")
	cmd.Flags().BoolVarP(&deleteEmpty, "delete-empty", "x", false, "Delete source directories left empty after rename.")
	cmd.Flags().BoolVarP(&persistent, "persistent", "t", false, "Reuse a saved session if one is fresh enough.")
	cmd.Flags().BoolVar(&abort, "abort", false, "Abort renaming a file if a required tag is empty.")
	cmd.Flags().IntVar(&state, "state", 0, "Mylist file state (0=unknown, 1=on hdd, 2=on cd, 3=deleted, 4=remote storage).")
	cmd.Flags().BoolVar(&showED2K, "show-ed2k", false, "Print the ed2k:// link for each hashed file.")
	cmd.Flags().BoolVar(&suppressNetworkAccess, "suppress-network-activity", false, "Serve only from cache; never contact the server.")
	return cmd
}

// promptPassword reads a password from the controlling terminal
// without echoing it.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// connect establishes a session, reusing a persisted one within its
// freshness window when --persistent was given, otherwise logging in
// fresh and persisting the result. Grounded on cli.py:get_connector.
func connect(paths config.Paths, username, password, apikey string, persistentFlag bool) (*session.Session, func(), error) {
	creds := session.Credentials{Username: username, Password: password, APIKey: apikey}

	transport, err := session.DialUDP(apiAddress, session.ReceiveTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", apiAddress, err)
	}
	sess := session.New(creds, transport)

	resumed := false
	if persistentFlag {
		if p, ok, err := session.LoadPersisted(paths.SessionPath); err == nil && ok && p.Fresh(time.Now()) {
			sess.Resume(p)
			resumed = true
		}
	}

	ctx := context.Background()
	if !resumed {
		if err := sess.Login(ctx); err != nil {
			_ = sess.Close(ctx)
			return nil, nil, fmt.Errorf("login: %w", err)
		}
	}

	if persistentFlag {
		_ = session.SavePersisted(paths.SessionPath, session.Persisted{
			SessionToken: sess.SessionKey(),
			BoundAddr:    apiAddress,
			Salt:         sess.Salt(),
			Timestamp:    time.Now(),
		})
	}

	closeFn := func() {
		ctx := context.Background()
		_ = sess.Close(ctx)
		if !persistentFlag {
			_ = session.DeletePersisted(paths.SessionPath)
		}
	}
	return sess, closeFn, nil
}
