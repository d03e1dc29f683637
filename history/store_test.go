package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/types"
	"github.com/BaSui01/guardflow/validation"
	"github.com/BaSui01/guardflow/validator"
)

// StoreSuite runs the same contract against every backend.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) TearDownTest() {
	_ = s.store.Close()
}

func sampleCall(status Status, created time.Time) *Call {
	c := NewCall(1)
	c.CreatedAt = created
	_ = c.Append(&Iteration{
		Request:       &llm.Request{Prompt: "Name a pizza."},
		BackendCalled: true,
		RawOutput:     "Tomato Cheese Pizza",
		ParsedOutput:  "Tomato Cheese Pizza",
		Failures: []validation.Failure{{
			Path: "$", Kind: validation.FailureValidation, Validator: validator.IDTwoWords,
			Action: validator.ActionReask, Reason: "must be exactly two words, got 3",
			Value: "Tomato Cheese Pizza", FixValue: "Tomato Cheese",
		}},
		ReaskRequest: &llm.Request{Prompt: "fix it"},
		ReaskPaths:   []string{"$"},
	})
	_ = c.Append(&Iteration{BackendCalled: true, RawOutput: "Tomato Pizza", ValidatedOutput: "Tomato Pizza"})
	_ = c.Close(status, "Tomato Pizza", nil)
	return c
}

func (s *StoreSuite) TestSaveAndGet() {
	ctx := context.Background()
	c := sampleCall(StatusPassed, time.Now())
	s.Require().NoError(s.store.Save(ctx, c))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)
	s.Equal(StatusPassed, got.Status)
	s.Equal(1, got.ReasksUsed)
	s.Equal("Tomato Pizza", got.Output)
	s.Require().Len(got.Iterations, 2)
	s.Equal("Name a pizza.", got.Iterations[0].Request.Prompt)
	s.Equal("must be exactly two words, got 3", got.Iterations[0].Failures[0].Reason)
	s.Equal([]string{"$"}, got.Iterations[0].ReaskPaths)
	s.True(c.CreatedAt.Equal(got.CreatedAt))
}

func (s *StoreSuite) TestSaveReplaces() {
	ctx := context.Background()
	c := NewCall(0)
	s.Require().NoError(s.store.Save(ctx, c))

	_ = c.Close(StatusFailed, nil, types.NewError(types.ErrTransport, "down"))
	s.Require().NoError(s.store.Save(ctx, c))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(StatusFailed, got.Status)
	s.Equal(types.ErrTransport, got.ErrorCode)

	all, err := s.store.List(ctx, ListOptions{})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *StoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), "2b1a6d1e-0000-4000-8000-000000000000")
	s.True(IsNotFound(err), "got %v", err)
}

func (s *StoreSuite) TestStoredCopyIsIndependent() {
	ctx := context.Background()
	c := sampleCall(StatusPassed, time.Now())
	s.Require().NoError(s.store.Save(ctx, c))

	c.Status = StatusFailed
	c.Iterations[0].RawOutput = "changed"

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(StatusPassed, got.Status)
	s.Equal("Tomato Cheese Pizza", got.Iterations[0].RawOutput)
}

func (s *StoreSuite) TestListOrderFilterAndPaging() {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, st := range []Status{StatusPassed, StatusFailed, StatusPassed, StatusPartial} {
		c := sampleCall(st, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Save(ctx, c))
		ids = append(ids, c.ID)
	}

	all, err := s.store.List(ctx, ListOptions{})
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal(ids[3], all[0].ID, "newest first")
	s.Equal(ids[0], all[3].ID)

	passed, err := s.store.List(ctx, ListOptions{Status: StatusPassed})
	s.Require().NoError(err)
	s.Require().Len(passed, 2)
	s.Equal(ids[2], passed[0].ID)

	page, err := s.store.List(ctx, ListOptions{Offset: 1, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[2], page[0].ID)
	s.Equal(ids[1], page[1].ID)

	empty, err := s.store.List(ctx, ListOptions{Offset: 10})
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *StoreSuite) TestDelete() {
	ctx := context.Background()
	c := sampleCall(StatusPassed, time.Now())
	s.Require().NoError(s.store.Save(ctx, c))
	s.Require().NoError(s.store.Delete(ctx, c.ID))

	_, err := s.store.Get(ctx, c.ID)
	s.True(IsNotFound(err))
	s.NoError(s.store.Delete(ctx, c.ID), "deleting twice is not an error")

	all, err := s.store.List(ctx, ListOptions{})
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *StoreSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		s, err := NewRedisStore(RedisStoreConfig{Addr: mr.Addr(), KeyPrefix: "test:"})
		require.NoError(t, err)
		return s
	}})
}

func TestSQLStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		s, err := NewSQLStore(SQLStoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "history.db"),
		}, zap.NewNop())
		require.NoError(t, err)
		return s
	}})
}

func TestClosedStores(t *testing.T) {
	ctx := context.Background()

	mem := NewMemoryStore()
	require.NoError(t, mem.Close())
	assert.Equal(t, types.ErrStoreClosed, types.GetErrorCode(mem.Save(ctx, NewCall(0))))
	assert.Equal(t, types.ErrStoreClosed, types.GetErrorCode(mem.Ping(ctx)))

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fs.Close())
	_, err = fs.Get(ctx, NewCall(0).ID)
	assert.Equal(t, types.ErrStoreClosed, types.GetErrorCode(err))
}

func TestRedisStore_TTLExpiryPrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisStoreConfig{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	c := sampleCall(StatusPassed, time.Now())
	require.NoError(t, s.Save(ctx, c))
	mr.FastForward(2 * time.Minute)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileStore_RejectsInvalidIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	c := NewCall(0)
	c.ID = "../escape"
	assert.Error(t, s.Save(context.Background(), c))
	_, err = s.Get(context.Background(), "../escape")
	assert.True(t, IsNotFound(err))
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(StoreConfig{Type: StoreTypeFile, BaseDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = NewStore(StoreConfig{Type: "bogus"}, nil)
	assert.Error(t, err)

	_, err = OpenDialector("oracle", "")
	assert.Error(t, err)
	for _, d := range []string{"postgres", "mysql", "sqlite"} {
		dial, err := OpenDialector(d, "dsn")
		require.NoError(t, err)
		assert.NotNil(t, dial)
	}
}
