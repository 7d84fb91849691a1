package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/upload"
	"github.com/atemonitor/atemap/util"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	db, err := openStore(util.Config{DB: util.DBConfig{Type: "jsondb", Path: filepath.Join(dir, "db")}})
	require.NoError(t, err)
	db.Close()

	db, err = openStore(util.Config{DB: util.DBConfig{Type: "sqlite", DSN: filepath.Join(dir, "users.db")}})
	require.NoError(t, err)
	db.Close()

	_, err = openStore(util.Config{DB: util.DBConfig{Type: "oracle"}})
	assert.Error(t, err)
}

func TestOpenSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	sink, err := openSink(context.Background(), util.Config{ProjectDir: dir, Upload: util.UploadConfig{Backend: "dir"}})
	require.NoError(t, err)
	assert.Equal(t, dir, sink.(*upload.DirSink).Dir)

	_, err = openSink(context.Background(), util.Config{Upload: util.UploadConfig{Backend: "ftp"}})
	assert.Error(t, err)
}

func TestAddUserCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	dbPath := filepath.Join(dir, "db")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"adduser", "bob", "secret", "--perm", "upload_runs", "--db-path", dbPath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Created user bob")

	db, err := openStore(util.Config{DB: util.DBConfig{Type: "jsondb", Path: dbPath}})
	require.NoError(t, err)
	defer db.Close()

	users := store.NewUserStore(db)
	bob, err := users.Authenticate(context.Background(), "bob", "secret")
	require.NoError(t, err)
	// first user of an empty table
	assert.True(t, bob.Admin)

	cmd = newRootCmd()
	cmd.SetArgs([]string{"adduser", "bob", "again", "--db-path", dbPath})
	assert.ErrorIs(t, cmd.Execute(), store.ErrUsernameTaken)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
