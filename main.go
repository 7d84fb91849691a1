package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"github.com/atemonitor/atemap/auth"
	"github.com/atemonitor/atemap/handler"
	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/router"
	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/store/jsondb"
	"github.com/atemonitor/atemap/store/sqldb"
	"github.com/atemonitor/atemap/upload"
	"github.com/atemonitor/atemap/util"
)

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	gitRef     = "N/A"
	buildTime  = time.Now().UTC().Format("01-02-2006 15:04:05")
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "atemap",
		Short:        "Run upload server with user management",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := util.LoadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Version = appVersion
	util.AddFlags(cmd)
	cmd.AddCommand(newAddUserCmd())
	return cmd
}

func newAddUserCmd() *cobra.Command {
	var (
		admin       bool
		permissions []string
	)
	cmd := &cobra.Command{
		Use:   "adduser <username> <password>",
		Short: "Create a user in the configured database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := util.LoadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			perms := model.Permissions{}
			for _, p := range permissions {
				perms[p] = true
			}
			id, err := store.NewUserStore(db).Create(cmd.Context(), args[0], args[1], perms, admin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s with id %d\n", args[0], id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrator rights.")
	cmd.Flags().StringSliceVar(&permissions, "perm", nil, "Capability to grant, repeatable (e.g. upload_runs).")
	return cmd
}

func serve(ctx context.Context, cfg util.Config) error {
	lvl, err := util.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	// print app information
	fmt.Println("atemap")
	fmt.Println("App Version\t:", appVersion)
	fmt.Println("Git Commit\t:", gitCommit)
	fmt.Println("Git Ref\t\t:", gitRef)
	fmt.Println("Build Time\t:", buildTime)
	fmt.Println("Bind address\t:", cfg.BindAddress)
	fmt.Println("Database\t:", cfg.DB.Type)
	fmt.Println("Uploads\t\t:", cfg.Upload.Backend)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users := store.NewUserStore(db)
	if _, err := users.Bootstrap(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return fmt.Errorf("cannot bootstrap admin account: %w", err)
	}

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}

	sessions := auth.NewSessionStore()
	app := router.New(auth.NewCookieStore(sessions), lvl, cfg.Upload.MaxSize)
	handler.Routes(app, users, sessions, sink)

	return app.Start(cfg.BindAddress)
}

func openStore(cfg util.Config) (store.IStore, error) {
	var (
		db  store.IStore
		err error
	)
	switch cfg.DB.Type {
	case "", "jsondb":
		db, err = jsondb.New(cfg.DB.Path)
	case sqldb.SQLite, sqldb.Postgres, sqldb.MySQL:
		db, err = sqldb.New(cfg.DB.Type, cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.DB.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot init database: %w", err)
	}
	return db, nil
}

func openSink(ctx context.Context, cfg util.Config) (upload.Sink, error) {
	switch cfg.Upload.Backend {
	case "", "dir":
		if err := os.MkdirAll(cfg.ProjectDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create project directory: %w", err)
		}
		return upload.NewDirSink(cfg.ProjectDir), nil
	case "s3":
		return upload.NewS3Sink(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.Upload.Backend)
	}
}
