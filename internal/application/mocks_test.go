package application_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

// --- Mock implementations shared by the application tests ---

type mockGitClient struct {
	mu            sync.Mutex
	resolveBranch func(repo string) (string, error)
	listCommits   func(repo, branch string, cursor *model.Cursor) (model.CommitDelta, error)
	resolveCalls  map[string]int
	listCalls     map[string]int
}

func newMockGitClient() *mockGitClient {
	return &mockGitClient{
		resolveCalls: make(map[string]int),
		listCalls:    make(map[string]int),
	}
}

func (m *mockGitClient) ResolveDefaultBranch(_ context.Context, repo string) (string, error) {
	m.mu.Lock()
	m.resolveCalls[repo]++
	m.mu.Unlock()

	if m.resolveBranch != nil {
		return m.resolveBranch(repo)
	}
	return "main", nil
}

func (m *mockGitClient) ListCommitsSince(_ context.Context, repo, branch string, cursor *model.Cursor) (model.CommitDelta, error) {
	m.mu.Lock()
	m.listCalls[repo]++
	m.mu.Unlock()

	if m.listCommits != nil {
		return m.listCommits(repo, branch, cursor)
	}
	return model.CommitDelta{}, nil
}

func (m *mockGitClient) listCallCount(repo string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls[repo]
}

type mockCursorStore struct {
	mu         sync.Mutex
	repos      map[string]model.Repository
	cursors    map[string]model.Cursor
	logged     map[string]bool
	getRepoErr error
}

func newMockCursorStore() *mockCursorStore {
	return &mockCursorStore{
		repos:   make(map[string]model.Repository),
		cursors: make(map[string]model.Cursor),
		logged:  make(map[string]bool),
	}
}

func (m *mockCursorStore) GetRepo(_ context.Context, repo string) (*model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getRepoErr != nil {
		return nil, m.getRepoErr
	}

	rec, ok := m.repos[repo]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockCursorStore) UpsertRepo(_ context.Context, r model.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[r.FullName] = r
	return nil
}

func (m *mockCursorStore) GetCursor(_ context.Context, repo string) (*model.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursor, ok := m.cursors[repo]
	if !ok {
		return nil, nil
	}
	return &cursor, nil
}

func (m *mockCursorStore) CompareAndSet(_ context.Context, repo, expectedSHA string, next model.Cursor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.cursors[repo].SHA
	if current != expectedSHA {
		return false, nil
	}
	m.cursors[repo] = next
	return true, nil
}

func (m *mockCursorStore) SetState(_ context.Context, repo string, state model.RepoState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.repos[repo]
	rec.FullName = repo
	rec.State = state
	m.repos[repo] = rec
	return nil
}

func (m *mockCursorStore) RecordCheck(_ context.Context, repo string, failures int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.repos[repo]
	rec.FullName = repo
	rec.ConsecutiveFailures = failures
	m.repos[repo] = rec
	return nil
}

func (m *mockCursorStore) LogCommit(_ context.Context, repo string, c model.CommitRef) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := repo + "@" + c.SHA
	if m.logged[key] {
		return false, nil
	}
	m.logged[key] = true
	return true, nil
}

func (m *mockCursorStore) cursorSHA(repo string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[repo].SHA
}

func (m *mockCursorStore) repoState(repo string) model.RepoState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repos[repo].State
}

type mockSubStore struct {
	mu    sync.Mutex
	edges map[string]map[int64]bool
}

func newMockSubStore() *mockSubStore {
	return &mockSubStore{edges: make(map[string]map[int64]bool)}
}

func (m *mockSubStore) Subscribe(_ context.Context, chatID int64, repo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.edges[repo] == nil {
		m.edges[repo] = make(map[int64]bool)
	}
	if m.edges[repo][chatID] {
		return false, nil
	}
	m.edges[repo][chatID] = true
	return true, nil
}

func (m *mockSubStore) Unsubscribe(_ context.Context, chatID int64, repo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges[repo], chatID)
	return nil
}

func (m *mockSubStore) SubscribersOf(_ context.Context, repo string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var chatIDs []int64
	for chatID := range m.edges[repo] {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })
	return chatIDs, nil
}

func (m *mockSubStore) RepositoriesOf(_ context.Context, chatID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var repos []string
	for repo, subs := range m.edges {
		if subs[chatID] {
			repos = append(repos, repo)
		}
	}
	sort.Strings(repos)
	return repos, nil
}

func (m *mockSubStore) AllActiveRepositories(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var repos []string
	for repo, subs := range m.edges {
		if len(subs) > 0 {
			repos = append(repos, repo)
		}
	}
	sort.Strings(repos)
	return repos, nil
}

type delivery struct {
	ChatID int64
	N      model.Notification
}

type mockNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    map[int64]error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{failFor: make(map[int64]error)}
}

func (m *mockNotifier) Notify(_ context.Context, chatID int64, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[chatID]; ok {
		return err
	}
	m.deliveries = append(m.deliveries, delivery{ChatID: chatID, N: n})
	return nil
}

func (m *mockNotifier) sent() []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery(nil), m.deliveries...)
}

func (m *mockNotifier) sentTo(chatID int64) []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []delivery
	for _, d := range m.deliveries {
		if d.ChatID == chatID {
			out = append(out, d)
		}
	}
	return out
}

func commitAt(sha string, at time.Time) model.CommitRef {
	return model.CommitRef{
		SHA:         sha,
		Message:     "commit " + sha,
		AuthorName:  "dev",
		CommittedAt: at,
	}
}
