package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/store"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/stretchr/testify/require"
)

const (
	testChatID = "123456789012345678"
	testWallet = "0xabcdef0123456789abcdef0123456789abcdef01"
)

type fakeTracker struct {
	mu        sync.Mutex
	issues    map[string]*models.IssueState
	failing   map[string]error
	comments  map[string][]models.Comment
	prs       map[string]*models.PullRequest
	labels    map[string][]string
	posted    map[string][]string
	assignees map[string][]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues:    make(map[string]*models.IssueState),
		failing:   make(map[string]error),
		comments:  make(map[string][]models.Comment),
		prs:       make(map[string]*models.PullRequest),
		labels:    make(map[string][]string),
		posted:    make(map[string][]string),
		assignees: make(map[string][]string),
	}
}

func (f *fakeTracker) setIssue(ref string, open bool, labels ...string) {
	parsed, err := models.ParseIssueRef(ref)
	if err != nil {
		panic(err)
	}
	f.issues[ref] = &models.IssueState{Ref: parsed, Open: open, Labels: labels}
}

func (f *fakeTracker) GetIssue(ctx context.Context, ref models.IssueRef) (*models.IssueState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[ref.String()]; ok {
		return nil, err
	}
	issue, ok := f.issues[ref.String()]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", ref, models.ErrNotFound)
	}
	copied := *issue
	return &copied, nil
}

func (f *fakeTracker) ListPRComments(ctx context.Context, ref models.IssueRef) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comments[ref.String()], nil
}

func (f *fakeTracker) GetPullRequest(ctx context.Context, ref models.IssueRef) (*models.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.prs[ref.String()]
	if !ok {
		return nil, fmt.Errorf("pull request %s: %w", ref, models.ErrNotFound)
	}
	return pr, nil
}

func (f *fakeTracker) AddLabels(ctx context.Context, ref models.IssueRef, labels ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[ref.String()] = append(f.labels[ref.String()], labels...)
	return nil
}

func (f *fakeTracker) AddComment(ctx context.Context, ref models.IssueRef, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted[ref.String()] = append(f.posted[ref.String()], body)
	return nil
}

func (f *fakeTracker) AddAssignees(ctx context.Context, ref models.IssueRef, logins ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignees[ref.String()] = append(f.assignees[ref.String()], logins...)
	return nil
}

type fakeChat struct {
	mu       sync.Mutex
	granted  []string
	revoked  []string
	dms      map[string][]string
	channels map[string][]string
	grantErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{dms: make(map[string][]string), channels: make(map[string][]string)}
}

func (f *fakeChat) GrantRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.granted = append(f.granted, userID+":"+roleID)
	return nil
}

func (f *fakeChat) RevokeRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, userID+":"+roleID)
	return nil
}

func (f *fakeChat) SendDM(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeChat) SendChannelMessage(ctx context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channelID] = append(f.channels[channelID], content)
	return nil
}

// flakyStore fails writes for selected keys.
type flakyStore struct {
	*store.MemoryStore
	failWrites map[string]error
}

func (f *flakyStore) Write(ctx context.Context, key string, data []byte) error {
	if err, ok := f.failWrites[key]; ok {
		return err
	}
	return f.MemoryStore.Write(ctx, key, data)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Discord.ApprenticeRoleID = "role-apprentice"
	cfg.Discord.SentinelRoleID = "role-sentinel"
	cfg.Discord.ApprenticeChannelID = "chan-apprentices"
	cfg.Discord.KnightsChannelID = "chan-knights"
	return cfg
}

type fixture struct {
	mem     *store.MemoryStore
	repo    *repositories.ContributorRepository
	tracker *fakeTracker
	chat    *fakeChat
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	return &fixture{
		mem:     mem,
		repo:    repositories.NewContributorRepository(mem, repositories.DefaultFilePattern),
		tracker: newFakeTracker(),
		chat:    newFakeChat(),
		cfg:     testConfig(),
	}
}

func (fx *fixture) notifier() *Notifier {
	return NewNotifier(fx.tracker, fx.chat, fx.cfg)
}

// seed stores a contributor directly, bypassing services.
func (fx *fixture) seed(t *testing.T, c *models.Contributor) {
	t.Helper()
	data, err := repositories.Encode(c)
	require.NoError(t, err)
	fx.mem.Seed(fx.repo.KeyFor(c.GitHub.Login), data)
}

func (fx *fixture) load(t *testing.T, login string) *models.Contributor {
	t.Helper()
	c, err := fx.repo.Load(context.Background(), login)
	require.NoError(t, err)
	return c
}

func apprentice(login string) *models.Contributor {
	return models.NewContributor(login, testChatID, true, testWallet, models.PRRecord{})
}

func sentinel(login string) *models.Contributor {
	c := apprentice(login)
	c.Status.CurrentRole = models.RoleSentinel
	return c
}

func withAssignment(c *models.Contributor, issue string, assignedAt, deadline time.Time) *models.Contributor {
	if err := c.AddAssignment(models.Assignment{
		IssueURL:   issue,
		AssignedAt: models.NewTimestamp(assignedAt),
		Deadline:   models.NewTimestamp(deadline),
	}); err != nil {
		panic(err)
	}
	return c
}
