package repo

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrVersionConflict is returned when a conditional update matched no row
	// because another writer bumped the version first.
	ErrVersionConflict = errors.New("optimistic lock conflict")
	// ErrClaimLost is returned when finalizing an outbox row this worker no longer holds.
	ErrClaimLost = errors.New("outbox claim lost")
	// ErrCacheMiss is returned by cache reads when nothing usable is cached.
	ErrCacheMiss = errors.New("cache miss")
)

const defaultCacheTTL = 5 * time.Minute

// RepositoryInterface restricts Repo methods so services can be tested with wrappers.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateSite(ctx context.Context, tx *gorm.DB, s *model.Site) error
	GetSite(ctx context.Context, tx *gorm.DB, id uint64) (*model.Site, error)
	LockSite(ctx context.Context, tx *gorm.DB, id uint64) (*model.Site, error)
	UpdateSite(ctx context.Context, tx *gorm.DB, s *model.Site) error
	ListSitesByKind(ctx context.Context, tx *gorm.DB, kind model.SiteKind) ([]model.Site, error)
	LastSiteCode(ctx context.Context, tx *gorm.DB, kind model.SiteKind) (string, error)

	CreateCounterpart(ctx context.Context, tx *gorm.DB, c *model.Counterpart) error
	GetCounterpart(ctx context.Context, tx *gorm.DB, id uint64) (*model.Counterpart, error)
	LockCounterpart(ctx context.Context, tx *gorm.DB, id uint64) (*model.Counterpart, error)
	UpdateCounterpart(ctx context.Context, tx *gorm.DB, c *model.Counterpart) error
	ListCounterparts(ctx context.Context, tx *gorm.DB) ([]model.Counterpart, error)
	LastCounterpartCode(ctx context.Context, tx *gorm.DB) (string, error)

	UpsertSiteCounterpartDistance(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64, km decimal.Decimal) (*model.SiteCounterpartDistance, error)
	UpsertSiteDistance(ctx context.Context, tx *gorm.DB, siteID, peerSiteID uint64, km decimal.Decimal) (*model.SiteDistance, error)
	GetSiteCounterpartDistance(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64) (*model.SiteCounterpartDistance, error)
	ListSiteCounterpartDistances(ctx context.Context, tx *gorm.DB, siteID uint64) ([]model.SiteCounterpartDistance, error)
	ListSiteDistances(ctx context.Context, tx *gorm.DB, siteID uint64) ([]model.SiteDistance, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	OutboxEventExists(ctx context.Context, tx *gorm.DB, aggregateType string, aggregateID, version uint64) (bool, error)
	FetchDispatchable(ctx context.Context, limit, maxRetry int, now time.Time) ([]model.OutboxEvent, error)
	ClaimOutboxEvent(ctx context.Context, id uint64, worker string, maxRetry int, now, until time.Time) (bool, error)
	MarkOutboxPublished(ctx context.Context, tx *gorm.DB, id uint64, worker string) error
	MarkOutboxFailed(ctx context.Context, tx *gorm.DB, id uint64, worker, reason string) error
	ReleaseOutboxClaim(ctx context.Context, tx *gorm.DB, id uint64, worker string) error
	CountDeadOutboxEvents(ctx context.Context, maxRetry int) (int64, error)

	CacheDistance(ctx context.Context, siteID, counterpartID uint64, km decimal.Decimal) error
	GetCachedDistance(ctx context.Context, siteID, counterpartID uint64) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db       *gorm.DB
	rdb      *redis.Client
	log      *zap.SugaredLogger
	cacheTTL time.Duration
}

// NewRepository constructs repo. rdb may be nil, which disables the distance cache.
func NewRepository(db *gorm.DB, rdb *redis.Client, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, log: logger, cacheTTL: defaultCacheTTL}
}

// WithCacheTTL sets how long cached distances live.
func (r *Repository) WithCacheTTL(ttl time.Duration) *Repository {
	if ttl > 0 {
		r.cacheTTL = ttl
	}
	return r
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Site{},
		&model.Counterpart{},
		&model.SiteCounterpartDistance{},
		&model.SiteDistance{},
		&model.OutboxEvent{},
	)
}
