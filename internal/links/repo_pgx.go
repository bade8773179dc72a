package links

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zpocket/zpocket/internal/errx"
	"github.com/zpocket/zpocket/internal/idgen"
)

const defaultListLimit = 20

// queryer is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// category loading can run inside or outside a transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	pool *pgxpool.Pool
	ids  idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality).
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		pool: pool,
		ids:  config.IDGenerator,
	}
}

func mapRepoError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errx.E(op, errx.NotFound, err)
	}
	return errx.E(op, errx.Unavailable, err)
}

const linkColumns = `id, user_id, url, title, description, image_url, content_type,
	estimated_reading_time, word_count, is_archived, archived_at, created_at, updated_at`

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(
		&l.ID, &l.UserID, &l.URL, &l.Title, &l.Description, &l.ImageURL,
		&l.ContentType, &l.EstimatedReadingTime, &l.WordCount,
		&l.IsArchived, &l.ArchivedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// CreateLink inserts the link and resolves its categories in one
// transaction; a failure at any step rolls the whole write back.
func (r *repo) CreateLink(ctx context.Context, link Link, categories []string) (Link, error) {
	const op = "links.repo.CreateLink"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	err = tx.QueryRow(ctx, `
		INSERT INTO links (id, user_id, url, title, description, image_url,
			content_type, estimated_reading_time, word_count, is_archived)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		RETURNING created_at, updated_at`,
		link.ID, link.UserID, link.URL, link.Title, link.Description,
		link.ImageURL, link.ContentType, link.EstimatedReadingTime, link.WordCount,
	).Scan(&link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	link.Categories, err = r.resolveCategories(ctx, tx, link.UserID, link.ID, categories)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	link.IsArchived = false
	return link, nil
}

// UpdateLink mutates an owned link and fully replaces its category
// associations (delete-all, re-insert) in one transaction.
func (r *repo) UpdateLink(ctx context.Context, link Link, categories []string) (Link, error) {
	const op = "links.repo.UpdateLink"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	err = tx.QueryRow(ctx, `
		UPDATE links
		SET url = $3, title = $4, description = $5, image_url = $6,
			content_type = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING estimated_reading_time, word_count, is_archived, archived_at,
			created_at, updated_at`,
		link.ID, link.UserID, link.URL, link.Title, link.Description,
		link.ImageURL, link.ContentType,
	).Scan(
		&link.EstimatedReadingTime, &link.WordCount, &link.IsArchived,
		&link.ArchivedAt, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM link_categories WHERE link_id = $1`, link.ID); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	link.Categories, err = r.resolveCategories(ctx, tx, link.UserID, link.ID, categories)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	return link, nil
}

// resolveCategories processes names strictly sequentially: trim, skip
// empties, reuse the user's existing category on an exact (case-sensitive)
// name match, create it otherwise, then associate it with the link. Repeats
// of the same name in one call find the row the earlier iteration created.
func (r *repo) resolveCategories(ctx context.Context, tx queryer, userID string, linkID uuid.UUID, names []string) ([]string, error) {
	const op = "links.repo.resolveCategories"

	resolved := make([]string, 0, len(names))
	seen := make(map[uuid.UUID]bool, len(names))

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		var categoryID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM categories WHERE user_id = $1 AND name = $2 LIMIT 1`,
			userID, name,
		).Scan(&categoryID)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			categoryID, err = r.ids.Generate()
			if err != nil {
				return nil, errx.E(op, errx.Unavailable, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO categories (id, user_id, name) VALUES ($1, $2, $3)`,
				categoryID, userID, name,
			); err != nil {
				return nil, errx.E(op, errx.Unavailable, err)
			}
		case err != nil:
			return nil, errx.E(op, errx.Unavailable, err)
		}

		if seen[categoryID] {
			continue
		}
		seen[categoryID] = true

		assocID, err := r.ids.Generate()
		if err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO link_categories (id, link_id, category_id) VALUES ($1, $2, $3)`,
			assocID, linkID, categoryID,
		); err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}

		resolved = append(resolved, name)
	}

	return resolved, nil
}

func (r *repo) GetLink(ctx context.Context, userID string, id uuid.UUID) (Link, error) {
	const op = "links.repo.GetLink"

	link, err := scanLink(r.pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	byLink, err := r.loadCategories(ctx, r.pool, userID, []uuid.UUID{id})
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	link.Categories = byLink[id]

	return link, nil
}

func (r *repo) ListLinks(ctx context.Context, userID string, filter ListFilter) ([]Link, error) {
	const op = "links.repo.ListLinks"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+linkColumns+`
		FROM links l
		WHERE l.user_id = $1
		  AND l.is_archived = $2
		  AND ($3 = '' OR l.title LIKE '%' || $3 || '%' OR l.description LIKE '%' || $3 || '%')
		  AND ($4 = '' OR EXISTS (
				SELECT 1
				FROM link_categories lc
				JOIN categories c ON c.id = lc.category_id AND c.user_id = l.user_id
				WHERE lc.link_id = l.id AND c.name = $4))
		ORDER BY l.created_at DESC
		LIMIT $5`,
		userID, filter.Archived, filter.Search, filter.Category, limit,
	)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	defer rows.Close()

	var result []Link
	var ids []uuid.UUID
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}
		result = append(result, link)
		ids = append(ids, link.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	if len(ids) > 0 {
		byLink, err := r.loadCategories(ctx, r.pool, userID, ids)
		if err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}
		for i := range result {
			result[i].Categories = byLink[result[i].ID]
		}
	}

	return result, nil
}

// loadCategories returns category names per link id, joined through the
// category's owner so a foreign user's category never leaks into a listing.
func (r *repo) loadCategories(ctx context.Context, q queryer, userID string, linkIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	rows, err := q.Query(ctx, `
		SELECT lc.link_id, c.name
		FROM link_categories lc
		JOIN categories c ON c.id = lc.category_id
		WHERE lc.link_id = ANY($1) AND c.user_id = $2
		ORDER BY c.name`,
		linkIDs, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byLink := make(map[uuid.UUID][]string)
	for rows.Next() {
		var linkID uuid.UUID
		var name string
		if err := rows.Scan(&linkID, &name); err != nil {
			return nil, err
		}
		byLink[linkID] = append(byLink[linkID], name)
	}
	return byLink, rows.Err()
}

func (r *repo) ArchiveLink(ctx context.Context, userID string, id uuid.UUID) error {
	const op = "links.repo.ArchiveLink"

	tag, err := r.pool.Exec(ctx, `
		UPDATE links
		SET is_archived = TRUE, archived_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) DeleteLink(ctx context.Context, userID string, id uuid.UUID) error {
	const op = "links.repo.DeleteLink"

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM links WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	const op = "links.repo.ListCategories"

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, color, icon, created_at, updated_at
		FROM categories
		WHERE user_id = $1
		ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	defer rows.Close()

	var result []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Icon, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	return result, nil
}
