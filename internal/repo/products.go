package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/sales-api/internal/catalog"
)

const productColumns = `id, title, price::text, description, category, image_url, image_storage_id, created_at, updated_at`

// ProductRepo implements catalog.Store on PostgreSQL.
type ProductRepo struct {
	DB      DB
	Timeout time.Duration
}

var _ catalog.Store = (*ProductRepo)(nil)

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p         catalog.Product
		id        uuid.UUID
		price     string
		category  string
		imageURL  *string
		storageID *string
	)
	if err := row.Scan(&id, &p.Title, &price, &p.Description, &category, &imageURL, &storageID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	amount, err := parseMoney(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("product price: %w", err)
	}
	p.ID = id.String()
	p.Price = amount
	p.Category = catalog.Category(category)
	if imageURL != nil {
		p.Image = &catalog.Image{URL: *imageURL}
		if storageID != nil {
			p.Image.StorageID = *storageID
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func imageArgs(img *catalog.Image) (any, any) {
	if img == nil {
		return nil, nil
	}
	var storageID any
	if img.StorageID != "" {
		storageID = img.StorageID
	}
	return img.URL, storageID
}

func (r *ProductRepo) FindByID(ctx context.Context, id string) (catalog.Product, error) {
	pid, err := parseUUID("product", id)
	if err != nil {
		return catalog.Product{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, pid))
	if err != nil {
		return catalog.Product{}, storeErr("find product "+pid.String(), err)
	}
	return p, nil
}

// FindByIDs skips malformed and unknown ids.
func (r *ProductRepo) FindByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	keys := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if parsed, err := uuid.Parse(id); err == nil {
			keys = append(keys, parsed)
		}
	}
	out := make(map[string]catalog.Product, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, keys)
	if err != nil {
		return nil, storeErr("find products", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeErr("scan product", err)
		}
		out[p.ID] = p
	}
	return out, storeErr("find products", rows.Err())
}

func (r *ProductRepo) Exists(ctx context.Context, id string) (bool, error) {
	pid, err := parseUUID("product", id)
	if err != nil {
		return false, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, pid).Scan(&exists); err != nil {
		return false, storeErr("product exists", err)
	}
	return exists, nil
}

func (r *ProductRepo) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error) {
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	where, args := "", []any{}
	if filter.Category != "" {
		where = ` WHERE category = $1`
		args = append(args, string(filter.Category))
	}
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count products", err)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY created_at DESC, id`)
	sb.WriteString(pageClause(&args, filter.Offset, filter.Limit))
	rows, err := r.DB.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, 0, storeErr("list products", err)
	}
	defer rows.Close()
	items := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, storeErr("scan product", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list products", err)
	}
	return items, total, nil
}

func (r *ProductRepo) Insert(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	pid, err := parseUUID("product", p.ID)
	if err != nil {
		return catalog.Product{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	url, storageID := imageArgs(p.Image)
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (id, title, price, description, category, image_url, image_storage_id, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		pid, p.Title, p.Price.String(), p.Description, string(p.Category), url, storageID, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	created, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, storeErr("insert product", err)
	}
	return created, nil
}

func (r *ProductRepo) Update(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	pid, err := parseUUID("product", p.ID)
	if err != nil {
		return catalog.Product{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	url, storageID := imageArgs(p.Image)
	row := r.DB.QueryRow(ctx, `
		UPDATE products
		SET title = $2, price = $3::numeric, description = $4, category = $5,
		    image_url = $6, image_storage_id = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+productColumns,
		pid, p.Title, p.Price.String(), p.Description, string(p.Category), url, storageID, p.UpdatedAt.UTC())
	updated, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, storeErr("update product "+pid.String(), err)
	}
	return updated, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) (catalog.Product, error) {
	pid, err := parseUUID("product", id)
	if err != nil {
		return catalog.Product{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	p, err := scanProduct(r.DB.QueryRow(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, pid))
	if err != nil {
		return catalog.Product{}, storeErr("delete product "+pid.String(), err)
	}
	return p, nil
}

// pageClause appends LIMIT/OFFSET placeholders; a zero limit means unbounded.
func pageClause(args *[]any, offset, limit int) string {
	var sb strings.Builder
	if limit > 0 {
		*args = append(*args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(*args))
	}
	return sb.String()
}
