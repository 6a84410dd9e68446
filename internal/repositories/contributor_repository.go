package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/store"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

// DefaultFilePattern names one record file per contributor.
const DefaultFilePattern = "contributor__{username}.toml"

const usernamePlaceholder = "{username}"

// ContributorRepository reads and writes contributor records in a Store.
// Reads refresh the store first so that every read-modify-write starts from
// the latest remote state.
type ContributorRepository struct {
	store  store.Store
	prefix string
	suffix string
	mu     sync.Mutex
	log    *logrus.Entry
}

func NewContributorRepository(s store.Store, filePattern string) *ContributorRepository {
	if !strings.Contains(filePattern, usernamePlaceholder) {
		filePattern = DefaultFilePattern
	}
	prefix, suffix, _ := strings.Cut(filePattern, usernamePlaceholder)
	return &ContributorRepository{
		store:  s,
		prefix: prefix,
		suffix: suffix,
		log:    logger.Component("registry"),
	}
}

// KeyFor returns the document key of login.
func (r *ContributorRepository) KeyFor(login string) string {
	return r.prefix + validation.SanitizeLogin(login) + r.suffix
}

func (r *ContributorRepository) isRecordKey(key string) bool {
	return len(key) > len(r.prefix)+len(r.suffix) &&
		strings.HasPrefix(key, r.prefix) && strings.HasSuffix(key, r.suffix)
}

// Decode parses and validates one record. Failures wrap models.ErrCorrupt.
func Decode(data []byte) (*models.Contributor, error) {
	c, problems := Inspect(data)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrCorrupt, strings.Join(problems, "; "))
	}
	return c, nil
}

// Inspect parses one record and lists every schema problem found.
func Inspect(data []byte) (*models.Contributor, []string) {
	var c models.Contributor
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, []string{"invalid TOML: " + err.Error()}
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return &c, models.ValidationProblems(err)
	}
	return &c, nil
}

// Encode serializes a record.
func Encode(c *models.Contributor) ([]byte, error) {
	c.RecomputeAssigned()
	return toml.Marshal(c)
}

// Refresh pulls the latest remote state.
func (r *ContributorRepository) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Refresh(ctx)
}

// LoadAll returns every readable record. Corrupt records are logged and skipped.
func (r *ContributorRepository) LoadAll(ctx context.Context) ([]*models.Contributor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Refresh(ctx); err != nil {
		return nil, err
	}
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	contributors := make([]*models.Contributor, 0, len(keys))
	for _, key := range keys {
		if !r.isRecordKey(key) {
			continue
		}
		data, err := r.store.Read(ctx, key)
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Skipping unreadable record")
			continue
		}
		c, err := Decode(data)
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Skipping corrupt record")
			continue
		}
		contributors = append(contributors, c)
	}
	return contributors, nil
}

// Load returns the record for login, or models.ErrNotFound.
func (r *ContributorRepository) Load(ctx context.Context, login string) (*models.Contributor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Refresh(ctx); err != nil {
		return nil, err
	}
	return r.read(ctx, login)
}

func (r *ContributorRepository) read(ctx context.Context, login string) (*models.Contributor, error) {
	key := r.KeyFor(login)
	data, err := r.store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("contributor %s: %w", login, models.ErrNotFound)
		}
		return nil, err
	}
	c, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("contributor %s: %w", login, err)
	}
	return c, nil
}

// Exists reports whether a record exists for login.
func (r *ContributorRepository) Exists(ctx context.Context, login string) (bool, error) {
	_, err := r.Load(ctx, login)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if errors.Is(err, models.ErrCorrupt) {
		return true, nil
	}
	return err == nil, err
}

// Create stores a new record in its own commit. An existing record for the
// same login is models.ErrAlreadyExists.
func (r *ContributorRepository) Create(ctx context.Context, c *models.Contributor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Refresh(ctx); err != nil {
		return err
	}
	_, err := r.store.Read(ctx, r.KeyFor(c.GitHub.Login))
	if err == nil {
		return fmt.Errorf("contributor %s: %w", c.GitHub.Login, models.ErrAlreadyExists)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if err := r.stage(ctx, c); err != nil {
		return err
	}
	_, err = r.store.Commit(ctx, "Add contributor: "+c.GitHub.Login)
	return err
}

// Save stages c and commits it alone.
func (r *ContributorRepository) Save(ctx context.Context, c *models.Contributor, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.stage(ctx, c); err != nil {
		return err
	}
	_, err := r.store.Commit(ctx, message)
	return err
}

// Stage writes c without committing. Batch callers finish with Commit.
func (r *ContributorRepository) Stage(ctx context.Context, c *models.Contributor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage(ctx, c)
}

func (r *ContributorRepository) stage(ctx context.Context, c *models.Contributor) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.GitHub.Login, err)
	}
	return r.store.Write(ctx, r.KeyFor(c.GitHub.Login), data)
}

// Commit publishes everything staged. It reports false when nothing was staged.
func (r *ContributorRepository) Commit(ctx context.Context, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Commit(ctx, message)
}
