package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// KnowledgeRepository stores published knowledge base articles.
type KnowledgeRepository interface {
	Create(ctx context.Context, article *domain.KnowledgeArticle) error
	Update(ctx context.Context, article *domain.KnowledgeArticle) error
	Delete(ctx context.Context, orgID, id string) error
	GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeArticle, error)
	ListByOrg(ctx context.Context, orgID string) ([]domain.KnowledgeArticle, error)
}

type knowledgeRepository struct {
	pool *pgxpool.Pool
}

// NewKnowledgeRepository builds repository.
func NewKnowledgeRepository(pool *pgxpool.Pool) KnowledgeRepository {
	return &knowledgeRepository{pool: pool}
}

const articleColumns = `id, organization_id, title, content, category, tags, author, source, source_suggestion_id, created_at, updated_at`

const insertArticle = `
        INSERT INTO knowledge_articles (organization_id, title, content, category, tags, author, source, source_suggestion_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createArticle(ctx context.Context, q queryRower, article *domain.KnowledgeArticle) error {
	return q.QueryRow(ctx, insertArticle,
		article.OrganizationID,
		article.Title,
		article.Content,
		article.Category,
		nonNil(article.Tags),
		article.Author,
		article.Source,
		article.SourceSuggestionID,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
}

func (r *knowledgeRepository) Create(ctx context.Context, article *domain.KnowledgeArticle) error {
	return createArticle(ctx, r.pool, article)
}

func (r *knowledgeRepository) Update(ctx context.Context, article *domain.KnowledgeArticle) error {
	const query = `
        UPDATE knowledge_articles SET title=$1, content=$2, category=$3, tags=$4, updated_at=NOW()
        WHERE id=$5 AND organization_id=$6
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		article.Title,
		article.Content,
		article.Category,
		nonNil(article.Tags),
		article.ID,
		article.OrganizationID,
	).Scan(&article.UpdatedAt)
}

func (r *knowledgeRepository) Delete(ctx context.Context, orgID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM knowledge_articles WHERE id=$1 AND organization_id=$2`, id, orgID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *knowledgeRepository) GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeArticle, error) {
	query := `SELECT ` + articleColumns + ` FROM knowledge_articles WHERE id=$1 AND organization_id=$2`
	rows, err := r.pool.Query(ctx, query, id, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &articles[0], nil
}

func (r *knowledgeRepository) ListByOrg(ctx context.Context, orgID string) ([]domain.KnowledgeArticle, error) {
	query := `SELECT ` + articleColumns + ` FROM knowledge_articles WHERE organization_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows pgx.Rows) ([]domain.KnowledgeArticle, error) {
	var result []domain.KnowledgeArticle
	for rows.Next() {
		var a domain.KnowledgeArticle
		if err := rows.Scan(
			&a.ID,
			&a.OrganizationID,
			&a.Title,
			&a.Content,
			&a.Category,
			&a.Tags,
			&a.Author,
			&a.Source,
			&a.SourceSuggestionID,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
