//go:build integration

package postgres

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ezclaim/internal/storage"
	"ezclaim/pkg/platform/sentinel"
	"ezclaim/pkg/testutil/containers"
)

type note struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n note) EntityID() string { return n.ID }

type captureHook struct {
	mu      sync.Mutex
	saves   []storage.Mutation
	deletes []storage.Mutation
}

func (h *captureHook) AfterSave(_ context.Context, m storage.Mutation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves = append(h.saves, m)
}

func (h *captureHook) AfterDelete(_ context.Context, m storage.Mutation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deletes = append(h.deletes, m)
}

type PostgresCollectionSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	hook  *captureHook
	notes *Collection[note]
}

func TestPostgresCollectionSuite(t *testing.T) {
	suite.Run(t, new(PostgresCollectionSuite))
}

func (s *PostgresCollectionSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
}

func (s *PostgresCollectionSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "documents"))
	s.hook = &captureHook{}
	s.notes = New[note](s.pg.DB, "notes", "Note",
		storage.WithHook(s.hook),
		storage.WithTimeout(5*time.Second),
	)
}

func (s *PostgresCollectionSuite) TestSaveFindDelete() {
	ctx := context.Background()
	n := note{ID: "n1", Body: "hello", Status: "open", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	s.Require().NoError(s.notes.Save(ctx, n))
	got, err := s.notes.FindByID(ctx, "n1")
	s.Require().NoError(err)
	s.Equal(n, got)
	s.Require().Len(s.hook.saves, 1)
	s.Equal("Note", s.hook.saves[0].Document[storage.TypeField])

	s.Require().NoError(s.notes.Delete(ctx, "n1"))
	s.Require().Len(s.hook.deletes, 1)
	s.Equal("Note", s.hook.deletes[0].EntityType)

	_, err = s.notes.FindByID(ctx, "n1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.notes.Delete(ctx, "n1"), sentinel.ErrNotFound)
}

func (s *PostgresCollectionSuite) TestDeleteWithoutStoredType() {
	ctx := context.Background()
	_, err := s.pg.DB.ExecContext(ctx,
		`INSERT INTO documents (collection, id, entity_type, doc) VALUES ('notes', 'legacy', 'Note', '{"id":"legacy"}')`)
	s.Require().NoError(err)

	s.Require().NoError(s.notes.Delete(ctx, "legacy"))
	s.Require().Len(s.hook.deletes, 1)
	s.Empty(s.hook.deletes[0].EntityType)
}

func (s *PostgresCollectionSuite) TestQueryAndFindAllByID() {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []string{"open", "closed", "open"} {
		s.Require().NoError(s.notes.Save(ctx, note{
			ID:        []string{"a", "b", "c"}[i],
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	res, err := s.notes.Query(ctx, storage.Query{
		Where: map[string]string{"status": "open"},
		Sort:  []storage.Sort{{Field: "createdAt", Desc: true}},
		Size:  1,
	})
	s.Require().NoError(err)
	s.Equal(2, res.Total)
	s.Require().Len(res.Items, 1)
	s.Equal("c", res.Items[0].ID)

	res, err = s.notes.Query(ctx, storage.Query{Page: 10, Size: 5})
	s.Require().NoError(err)
	s.Equal(3, res.Total)
	s.Empty(res.Items)

	s.Require().NoError(s.notes.Save(ctx, note{ID: "d", Status: "late", CreatedAt: base.Add(2 * time.Hour)}))
	s.Require().NoError(s.notes.Save(ctx, note{ID: "e", Status: "late", CreatedAt: base.Add(2*time.Hour + 500*time.Millisecond)}))
	res, err = s.notes.Query(ctx, storage.Query{
		Where: map[string]string{"status": "late"},
		Sort:  []storage.Sort{{Field: "createdAt", Desc: true, Time: true}},
	})
	s.Require().NoError(err)
	s.Require().Len(res.Items, 2)
	s.Equal("e", res.Items[0].ID, "sub-second timestamps order as instants")

	res, err = s.notes.Query(ctx, storage.Query{Page: math.MaxInt / 2, Size: 5})
	s.Error(err)

	found, err := s.notes.FindAllByID(ctx, []string{"c", "zzz", "a"})
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal("c", found[0].ID)
	s.Equal("a", found[1].ID)
}
