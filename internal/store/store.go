package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	config "example.com/forum/internal/init"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var logg = logger.New()

//go:embed migrations/postgres/*.sql
var migrationsFS embed.FS

var (
	// ErrNotFound is returned when an identifier does not resolve to a row.
	ErrNotFound = errors.New("record not found")
	// ErrProtected is returned when a user is still referenced by posts, comments, votes or follows.
	ErrProtected = errors.New("record is referenced and can not be deleted")
)

// Postgres error codes raised by the schema constraints.
const (
	codeForeignKey = "23503"
	codeUnique     = "23505"
	codeCheck      = "23514"
)

// --- Interfaces ---

type StoreInterface interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error)
	DeletePost(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id int64) (*models.Comment, error)
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error

	CreateVote(ctx context.Context, v *models.Vote) error
	VoteExists(ctx context.Context, kind models.VoteKind, userID int64, target models.Target) (bool, error)
	CountVotes(ctx context.Context, kind models.VoteKind, target models.Target) (int64, error)
	DeleteVote(ctx context.Context, id int64) error

	CreateFollow(ctx context.Context, f *models.Follow) error
	GetFollow(ctx context.Context, followerID, followedID int64) (*models.Follow, error)
	FollowExists(ctx context.Context, followerID, followedID int64) (bool, error)
	DeleteFollow(ctx context.Context, id int64) error
	CountFollowers(ctx context.Context, userID int64) (int64, error)
	CountFollowing(ctx context.Context, userID int64) (int64, error)
	ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error)

	Close()
}

// --- Store Implementation ---

type Store struct {
	db *gorm.DB
}

// New connects to Postgres and, when enabled, applies pending migrations first.
func New(cfg *config.Config) (*Store, error) {
	if cfg.DatabaseMigrations {
		if err := Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	logg.Info("store", "Connected to Postgres (dsn anonymized)")
	return &Store{db: db}, nil
}

// --- Migration runner ---

// Migrate applies the embedded Postgres migrations to the database at dsn.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// migrateURL rewrites a libpq style URL to the scheme registered by the pgx/v5 migrate driver.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// Close releases the connection pool.
func (s *Store) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logg.Error("store", "Failed to close Postgres pool", err)
		return
	}
	logg.Info("store", "Postgres pool closed")
}

// translate maps driver errors onto the package and model error values.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUnique, codeCheck:
		if ve := constraintError(pgErr.ConstraintName); ve != nil {
			return ve
		}
	case codeForeignKey:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
	}
	return err
}

// constraintError turns a named schema constraint into the validation failure the rule layer would have raised.
func constraintError(name string) *models.ValidationError {
	switch name {
	case "users_username_key":
		return models.DuplicateUsername()
	case "vote_single_target":
		return models.NewValidationError("vote", models.NonFieldErrors, "Post and comment are exclusive!")
	case "unique_follower_followed":
		return models.DuplicateFollow()
	case "follow_not_self":
		return models.NewValidationError("follow", models.NonFieldErrors, "Can not follow yourself")
	}
	return nil
}

var (
	_ StoreInterface = (*Store)(nil)
	_ StoreInterface = (*MockStore)(nil)
)
