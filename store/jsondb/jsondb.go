// Package jsondb stores user records as JSON files with scribble.
package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/sdomino/scribble"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
)

const (
	usersCollection  = "users"
	serverCollection = "server"
	sequenceResource = "sequence"
)

type sequence struct {
	LastUserID int64 `json:"last_user_id"`
}

type JsonDB struct {
	conn   *scribble.Driver
	dbPath string
	// guards the id sequence and username uniqueness
	mu sync.Mutex
}

// New returns a new pointer JsonDB
func New(dbPath string) (*JsonDB, error) {
	conn, err := scribble.New(dbPath, nil)
	if err != nil {
		return nil, err
	}
	ans := JsonDB{
		conn:   conn,
		dbPath: dbPath,
	}
	return &ans, nil
}

func (o *JsonDB) Init() error {
	var userPath string = path.Join(o.dbPath, usersCollection)
	var serverPath string = path.Join(o.dbPath, serverCollection)

	// create directories if they do not exist
	for _, dir := range []string{userPath, serverPath} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("cannot create %s: %w", dir, err)
			}
		}
	}

	// id sequence
	seqPath := path.Join(serverPath, sequenceResource+".json")
	if _, err := os.Stat(seqPath); os.IsNotExist(err) {
		if err := o.conn.Write(serverCollection, sequenceResource, sequence{}); err != nil {
			return err
		}
	}
	return nil
}

// GetUsers func to get all users from the database, ordered by id
func (o *JsonDB) GetUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	results, err := o.conn.ReadAll(usersCollection)
	if errors.Is(err, fs.ErrNotExist) {
		return users, nil
	}
	if err != nil {
		return users, err
	}
	for _, i := range results {
		user := model.User{}
		if err := json.Unmarshal([]byte(i), &user); err != nil {
			return users, fmt.Errorf("cannot decode user json structure: %w", err)
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// GetUserByID func to get single user from the database
func (o *JsonDB) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	user := model.User{}
	if err := o.conn.Read(usersCollection, resourceName(id), &user); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return user, store.ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// GetUserByName scans the users collection for username
func (o *JsonDB) GetUserByName(ctx context.Context, username string) (model.User, error) {
	users, err := o.GetUsers(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, store.ErrUserNotFound
}

// CreateUser assigns the next id and writes the user
func (o *JsonDB) CreateUser(ctx context.Context, user *model.User) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkUnique(ctx, *user); err != nil {
		return err
	}

	seq := sequence{}
	if err := o.conn.Read(serverCollection, sequenceResource, &seq); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot read id sequence: %w", err)
	}
	seq.LastUserID++
	if err := o.conn.Write(serverCollection, sequenceResource, seq); err != nil {
		return fmt.Errorf("cannot write id sequence: %w", err)
	}

	user.ID = seq.LastUserID
	return o.conn.Write(usersCollection, resourceName(user.ID), user)
}

// SaveUser func to save user in the database
func (o *JsonDB) SaveUser(ctx context.Context, user model.User) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.GetUserByID(ctx, user.ID); err != nil {
		return err
	}
	if err := o.checkUnique(ctx, user); err != nil {
		return err
	}
	return o.conn.Write(usersCollection, resourceName(user.ID), user)
}

// DeleteUser func to remove user from the database
func (o *JsonDB) DeleteUser(ctx context.Context, id int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// scribble's Delete error for a missing file is not an fs error
	if _, err := o.GetUserByID(ctx, id); err != nil {
		return err
	}
	return o.conn.Delete(usersCollection, resourceName(id))
}

func (o *JsonDB) Close() error {
	return nil
}

func (o *JsonDB) GetPath() string {
	return o.dbPath
}

func (o *JsonDB) checkUnique(ctx context.Context, user model.User) error {
	existing, err := o.GetUserByName(ctx, user.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != user.ID {
		return store.ErrUsernameTaken
	}
	return nil
}

func resourceName(id int64) string {
	return strconv.FormatInt(id, 10)
}
