package reflection_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/junioryono/nestor/internal/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test types
type Database struct {
	ConnectionString string
}

type Logger interface {
	Log(msg string)
}

type UserService struct {
	DB     *Database
	Logger Logger       `inject:"" optional:"true"`
	Cache  *Database    `inject:"cache"`
	Peer   *UserService `inject:"" forward:"true"`
	Skip   *Database    `inject:"-"`
	Plain  string
}

type hiddenField struct {
	db *Database `inject:""`
}

// Test constructors
func NewDatabase() *Database {
	return &Database{ConnectionString: "test-db"}
}

func NewUserService(db *Database) *UserService {
	return &UserService{DB: db}
}

func NewUserServiceWithContext(ctx context.Context, db *Database, logger Logger) (*UserService, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &UserService{DB: db, Logger: logger}, nil
}

func TestAnalyzer_Analyze(t *testing.T) {
	t.Run("simple constructor", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()
		info, err := analyzer.Analyze(NewUserService)
		require.NoError(t, err)

		assert.False(t, info.TakesContext)
		assert.False(t, info.HasErrorReturn)
		assert.Equal(t, reflect.TypeOf(&UserService{}), info.Result)
		require.Len(t, info.Parameters, 1)
		assert.Equal(t, reflect.TypeOf(&Database{}), info.Parameters[0].Type)
		assert.Equal(t, 0, info.Parameters[0].Index)
	})

	t.Run("leading context and error return", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()
		info, err := analyzer.Analyze(NewUserServiceWithContext)
		require.NoError(t, err)

		assert.True(t, info.TakesContext)
		assert.True(t, info.HasErrorReturn)
		require.Len(t, info.Parameters, 2)
		assert.Equal(t, reflect.TypeOf(&Database{}), info.Parameters[0].Type)
		assert.Equal(t, reflect.TypeOf((*Logger)(nil)).Elem(), info.Parameters[1].Type)
		assert.Equal(t, 1, info.Parameters[1].Index)
	})

	t.Run("injectable fields", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()
		info, err := analyzer.Analyze(NewUserService)
		require.NoError(t, err)

		require.Len(t, info.Fields, 3)

		assert.Equal(t, "Logger", info.Fields[0].Name)
		assert.True(t, info.Fields[0].Optional)
		assert.Empty(t, info.Fields[0].Token)

		assert.Equal(t, "Cache", info.Fields[1].Name)
		assert.Equal(t, "cache", info.Fields[1].Token)

		assert.Equal(t, "Peer", info.Fields[2].Name)
		assert.True(t, info.Fields[2].Forward)
	})

	t.Run("invalid constructors", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()

		tests := []struct {
			name        string
			constructor any
		}{
			{"nil", nil},
			{"typed nil", (func() *Database)(nil)},
			{"not a function", &Database{}},
			{"no returns", func() {}},
			{"only error", func() error { return nil }},
			{"second not error", func() (*Database, string) { return nil, "" }},
			{"too many returns", func() (*Database, *Database, error) { return nil, nil, nil }},
			{"variadic", func(dbs ...*Database) *Database { return nil }},
			{"unexported inject field", func() *hiddenField { return nil }},
		}

		for _, tt := range tests {
			_, err := analyzer.Analyze(tt.constructor)
			assert.Error(t, err, tt.name)
		}
	})

	t.Run("caches by function", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()
		first, err := analyzer.Analyze(NewDatabase)
		require.NoError(t, err)
		second, err := analyzer.Analyze(NewDatabase)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, analyzer.CacheSize())

		analyzer.Clear()
		assert.Equal(t, 0, analyzer.CacheSize())
	})

	t.Run("concurrent analysis", func(t *testing.T) {
		t.Parallel()

		analyzer := reflection.New()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := analyzer.Analyze(NewUserServiceWithContext)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	})
}

func TestIsStructPointer(t *testing.T) {
	assert.True(t, reflection.IsStructPointer(reflect.TypeOf(&Database{})))
	assert.False(t, reflection.IsStructPointer(reflect.TypeOf(Database{})))
	assert.False(t, reflection.IsStructPointer(reflect.TypeOf((*Logger)(nil)).Elem()))
	assert.False(t, reflection.IsStructPointer(nil))
}
