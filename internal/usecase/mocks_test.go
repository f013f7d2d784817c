package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/peterjabraham/debatable-sub001/internal/domain"
	"github.com/peterjabraham/debatable-sub001/internal/domain/model"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/adapter"
	"github.com/peterjabraham/debatable-sub001/internal/domain/ports/repository"
)

// ---- Fakes ----

type fakeAI struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeAI) Generate(ctx context.Context, system string, messages []adapter.Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

var _ adapter.AIServiceAdapter = (*fakeAI)(nil)

type memJobRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Job
	saveErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{byID: map[string]*model.Job{}}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	// Like the SQL upsert, a terminal row is never overwritten.
	if stored, ok := m.byID[job.ID]; ok && stored.Status.Terminal() {
		return nil
	}
	cp := *job
	m.byID[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.Job
	for _, j := range m.byID {
		if j.Status != model.JobStatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	if err := oldest.MarkProcessing(time.Now()); err != nil {
		return nil, err
	}
	cp := *oldest
	return &cp, nil
}

func (m *memJobRepo) MarkTerminal(ctx context.Context, tx repository.Tx, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != model.JobStatusProcessing {
		return domain.ErrJobTerminal
	}
	cp := *job
	m.byID[job.ID] = &cp
	return nil
}

func (m *memJobRepo) Cancel(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	if err := j.MarkCancelled(time.Now()); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.byID {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

var _ repository.JobRepository = (*memJobRepo)(nil)

type memConvRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.ConversationContext
	saves   int
	saveErr error
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{byID: map[string]*model.ConversationContext{}}
}

func (m *memConvRepo) Save(ctx context.Context, tx repository.Tx, cc *model.ConversationContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byID[cc.ConversationID] = cc.Clone()
	return nil
}

func (m *memConvRepo) FindByID(ctx context.Context, tx repository.Tx, conversationID string) (*model.ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc, ok := m.byID[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cc.Clone(), nil
}

func (m *memConvRepo) ListIDsByUser(ctx context.Context, tx repository.Tx, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, cc := range m.byID {
		if cc.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memConvRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ConversationContext
	for _, cc := range m.byID {
		if cc.UserID == userID {
			out = append(out, cc.Clone())
		}
	}
	return out, nil
}

var _ repository.ConversationRepository = (*memConvRepo)(nil)
