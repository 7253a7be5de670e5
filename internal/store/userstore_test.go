package store

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/face-keeper/internal/errs"
	"github.com/and161185/face-keeper/internal/model"
	"github.com/and161185/face-keeper/internal/repository/jsonfile"
)

const testDim = 8

type fakeDoc struct {
	mu      sync.Mutex
	users   []model.User
	loadErr error
	saveErr error
	saves   [][]model.User
}

func (f *fakeDoc) Load(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]model.User(nil), f.users...), nil
}

func (f *fakeDoc) Save(_ context.Context, users []model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, append([]model.User(nil), users...))
	if f.saveErr != nil {
		return f.saveErr
	}
	f.users = append([]model.User(nil), users...)
	return nil
}

func vec(r *rand.Rand) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func user(r *rand.Rand, name string) model.User {
	return model.User{Username: name, Password: "pw-" + name, FaceVector: vec(r)}
}

func TestUserStore_LoadMissingCreatesEmptyDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "users.json")
	s := New(jsonfile.New(path), testDim, zaptest.NewLogger(t))

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, 0, s.Len())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(raw))
}

func TestUserStore_LoadCorruptStartsEmpty(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	doc := &fakeDoc{loadErr: errors.New("unexpected end of JSON input")}
	s := New(doc, testDim, zap.New(core))

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, 0, s.Len())
	require.Equal(t, 1, logs.FilterMessage("user document unreadable, starting empty").Len())
	require.Empty(t, doc.saves, "an unreadable document must not be overwritten on load")
}

func TestUserStore_LoadMissingSaveFails(t *testing.T) {
	t.Parallel()

	doc := &fakeDoc{loadErr: errs.ErrNotFound, saveErr: errors.New("read-only file system")}
	core, logs := observer.New(zap.WarnLevel)
	s := New(doc, testDim, zap.New(core))

	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, 0, s.Len())
	require.Equal(t, 1, logs.FilterMessage("user document missing and not writable, starting empty").Len())

	r := rand.New(rand.NewSource(7))
	err := s.Create(context.Background(), user(r, "alice"))
	require.ErrorIs(t, err, errs.ErrPersistence)
	require.Equal(t, 0, s.Len())
}

func TestUserStore_LookupReturnsCopy(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(8))
	s := New(&fakeDoc{}, testDim, zap.NewNop())
	u := user(r, "alice")
	want := append([]float32(nil), u.FaceVector...)
	require.NoError(t, s.Create(context.Background(), u))

	got, ok := s.Lookup("alice")
	require.True(t, ok)
	got.FaceVector[0] = 42

	ptr, err := s.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	ptr.FaceVector[1] = 42

	again, _ := s.Lookup("alice")
	require.Equal(t, want, again.FaceVector)
}

func TestUserStore_LoadSkipsInvalidRecords(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(1))
	doc := &fakeDoc{users: []model.User{
		user(r, "alice"),
		{Username: "short", FaceVector: []float32{1}},
		user(r, "alice"),
		user(r, "bob"),
	}}
	s := New(doc, testDim, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	require.Equal(t, []string{"alice", "bob"}, s.Usernames())
}

func TestUserStore_CreateLookupDuplicate(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(2))
	doc := &fakeDoc{}
	s := New(doc, testDim, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	alice := user(r, "alice")
	require.NoError(t, s.Create(ctx, alice))

	got, ok := s.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, alice, got)

	_, ok = s.Lookup("Alice")
	require.False(t, ok, "usernames are case-sensitive")

	_, err := s.GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, errs.ErrUserNotFound)

	err = s.Create(ctx, user(r, "alice"))
	require.ErrorIs(t, err, errs.ErrDuplicateUser)

	got, _ = s.Lookup("alice")
	require.Equal(t, alice.FaceVector, got.FaceVector, "duplicate must not overwrite")
}

func TestUserStore_CreateValidates(t *testing.T) {
	t.Parallel()

	s := New(&fakeDoc{}, testDim, zap.NewNop())
	ctx := context.Background()

	err := s.Create(ctx, model.User{Username: "x", FaceVector: []float32{1, 2}})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	err = s.Create(ctx, model.User{Username: "", FaceVector: make([]float32, testDim)})
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	err = s.Create(ctx, model.User{Username: "nil-vector"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Equal(t, 0, s.Len())
}

func TestUserStore_FullSnapshotWrites(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(3))
	doc := &fakeDoc{}
	s := New(doc, testDim, zap.NewNop())
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Create(ctx, user(r, name)))
	}
	require.Len(t, doc.saves, 3)
	for i, snap := range doc.saves {
		require.Len(t, snap, i+1, "every write carries all users")
	}
	require.Equal(t, "c", doc.saves[2][2].Username)
	require.Equal(t, "a", doc.saves[2][0].Username)
}

func TestUserStore_PersistFailureKeepsMemoryConsistent(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(4))
	doc := &fakeDoc{}
	s := New(doc, testDim, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, user(r, "alice")))

	doc.saveErr = errors.New("no space left on device")
	err := s.Create(ctx, user(r, "bob"))
	require.ErrorIs(t, err, errs.ErrPersistence)
	_, ok := s.Lookup("bob")
	require.False(t, ok, "failed write must not leave bob in memory")
	require.Equal(t, 1, s.Len())

	doc.saveErr = nil
	require.NoError(t, s.Create(ctx, user(r, "bob")))
	require.Equal(t, []string{"alice", "bob"}, s.Usernames())
}

func TestUserStore_ReloadReproducesUsers(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(5))
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	s := New(jsonfile.New(path), testDim, zap.NewNop())
	require.NoError(t, s.Load(ctx))

	created := map[string]model.User{}
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		u := user(r, name)
		require.NoError(t, s.Create(ctx, u))
		created[name] = u
	}

	reloaded := New(jsonfile.New(path), testDim, zap.NewNop())
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, s.Usernames(), reloaded.Usernames())
	for name, u := range created {
		got, ok := reloaded.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, u.FaceVector, got.FaceVector, "float32 vectors survive JSON exactly")
		require.Equal(t, u.Password, got.Password)
	}
}

func TestUserStore_ConcurrentCreateSameUsername(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(6))
	s := New(&fakeDoc{}, testDim, zap.NewNop())
	ctx := context.Background()

	const n = 16
	users := make([]model.User, n)
	for i := range users {
		users[i] = user(r, "alice")
	}

	var wg sync.WaitGroup
	results := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(u model.User) {
			defer wg.Done()
			<-start
			results <- s.Create(ctx, u)
		}(users[i])
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrDuplicateUser):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, dup)
	require.Equal(t, 1, s.Len())
}

func TestUserStore_CreateCopiesVector(t *testing.T) {
	t.Parallel()

	s := New(&fakeDoc{}, testDim, zap.NewNop())
	v := make([]float32, testDim)
	v[0] = 1
	require.NoError(t, s.Create(context.Background(), model.User{Username: "u", FaceVector: v}))

	v[0] = 42
	got, _ := s.Lookup("u")
	require.Equal(t, float32(1), got.FaceVector[0])
}
