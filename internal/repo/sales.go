package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sales-api/internal/pricing"
	"github.com/noah-isme/sales-api/internal/sale"
)

const (
	saleColumns          = `id, sale_number, subtotal::text, tax::text, discount::text, total::text, status, payment_method, created_at, updated_at`
	saleNumberConstraint = "sales_sale_number_key"
)

// SaleRepo implements sale.Store on PostgreSQL. Lines live in sale_items and
// are replaced wholesale on update.
type SaleRepo struct {
	DB      DB
	Timeout time.Duration
}

var _ sale.Store = (*SaleRepo)(nil)

func scanSale(row pgx.Row) (sale.Sale, error) {
	var (
		s                     sale.Sale
		id                    uuid.UUID
		subtotal, tax, total  string
		discount              *string
		status, paymentMethod string
	)
	if err := row.Scan(&id, &s.SaleNumber, &subtotal, &tax, &discount, &total, &status, &paymentMethod, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return sale.Sale{}, err
	}
	var err error
	if s.Subtotal, err = parseMoney(subtotal); err != nil {
		return sale.Sale{}, fmt.Errorf("sale subtotal: %w", err)
	}
	if s.Tax, err = parseMoney(tax); err != nil {
		return sale.Sale{}, fmt.Errorf("sale tax: %w", err)
	}
	if s.Total, err = parseMoney(total); err != nil {
		return sale.Sale{}, fmt.Errorf("sale total: %w", err)
	}
	if discount != nil {
		d, err := parseMoney(*discount)
		if err != nil {
			return sale.Sale{}, fmt.Errorf("sale discount: %w", err)
		}
		s.Discount = &d
	}
	s.ID = id.String()
	s.Status = sale.Status(status)
	s.PaymentMethod = sale.PaymentMethod(paymentMethod)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func discountArg(d *pricing.Money) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func (r *SaleRepo) Insert(ctx context.Context, s sale.Sale) (sale.Sale, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	sid, err := parseUUID("sale", s.ID)
	if err != nil {
		return sale.Sale{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	var created sale.Sale
	err = pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO sales (id, sale_number, subtotal, tax, discount, total, status, payment_method, created_at, updated_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10)
			RETURNING `+saleColumns,
			sid, s.SaleNumber, s.Subtotal.String(), s.Tax.String(), discountArg(s.Discount), s.Total.String(),
			string(s.Status), string(s.PaymentMethod), s.CreatedAt.UTC(), s.UpdatedAt.UTC())
		var err error
		if created, err = scanSale(row); err != nil {
			return err
		}
		if err := insertLines(ctx, tx, sid, s.Lines); err != nil {
			return err
		}
		created.Lines = append([]pricing.Line(nil), s.Lines...)
		return nil
	})
	if err != nil {
		return sale.Sale{}, saleWriteErr("insert sale", s.SaleNumber, err)
	}
	return created, nil
}

func (r *SaleRepo) FindByID(ctx context.Context, id string) (sale.Sale, error) {
	sid, err := parseUUID("sale", id)
	if err != nil {
		return sale.Sale{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	return findSale(ctx, r.DB, sid)
}

func findSale(ctx context.Context, q Querier, sid uuid.UUID) (sale.Sale, error) {
	s, err := scanSale(q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, sid))
	if err != nil {
		return sale.Sale{}, storeErr("find sale "+sid.String(), err)
	}
	lines, err := loadLines(ctx, q, []uuid.UUID{sid})
	if err != nil {
		return sale.Sale{}, err
	}
	s.Lines = lines[s.ID]
	return s, nil
}

func (r *SaleRepo) Update(ctx context.Context, id string, s sale.Sale) (sale.Sale, error) {
	sid, err := parseUUID("sale", id)
	if err != nil {
		return sale.Sale{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	var updated sale.Sale
	err = pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE sales
			SET sale_number = $2, subtotal = $3::numeric, tax = $4::numeric, discount = $5::numeric,
			    total = $6::numeric, status = $7, payment_method = $8, updated_at = $9
			WHERE id = $1
			RETURNING `+saleColumns,
			sid, s.SaleNumber, s.Subtotal.String(), s.Tax.String(), discountArg(s.Discount), s.Total.String(),
			string(s.Status), string(s.PaymentMethod), s.UpdatedAt.UTC())
		var err error
		if updated, err = scanSale(row); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sid); err != nil {
			return err
		}
		if err := insertLines(ctx, tx, sid, s.Lines); err != nil {
			return err
		}
		updated.Lines = append([]pricing.Line(nil), s.Lines...)
		return nil
	})
	if err != nil {
		return sale.Sale{}, saleWriteErr("update sale "+sid.String(), s.SaleNumber, err)
	}
	return updated, nil
}

func (r *SaleRepo) Delete(ctx context.Context, id string) (sale.Sale, error) {
	sid, err := parseUUID("sale", id)
	if err != nil {
		return sale.Sale{}, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	var deleted sale.Sale
	err = pgx.BeginFunc(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		if deleted, err = findSale(ctx, tx, sid); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, sid)
		return err
	})
	if err != nil {
		return sale.Sale{}, storeErr("delete sale "+sid.String(), err)
	}
	return deleted, nil
}

func (r *SaleRepo) List(ctx context.Context, filter sale.Filter, opts sale.ListOptions) ([]sale.Sale, int, error) {
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()

	where, args := saleWhere(filter)
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count sales", err)
	}

	query := `SELECT ` + saleColumns + ` FROM sales` + where + ` ORDER BY ` + orderClause(opts.Sort) + pageClause(&args, opts.Offset, opts.Limit)
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, storeErr("list sales", err)
	}
	items := make([]sale.Sale, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, 0, storeErr("scan sale", err)
		}
		items = append(items, s)
		ids = append(ids, uuid.MustParse(s.ID))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, storeErr("list sales", err)
	}

	lines, err := loadLines(ctx, r.DB, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Lines = lines[items[i].ID]
	}
	return items, total, nil
}

func (r *SaleRepo) AggregateCompleted(ctx context.Context, created sale.Range) (sale.Aggregate, error) {
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	var (
		count int
		sum   string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT count(*), COALESCE(sum(total), 0)::text
		FROM sales
		WHERE status = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)`,
		string(sale.StatusCompleted), timeArg(created.From), timeArg(created.To)).Scan(&count, &sum)
	if err != nil {
		return sale.Aggregate{}, storeErr("aggregate sales", err)
	}
	total, err := parseMoney(sum)
	if err != nil {
		return sale.Aggregate{}, fmt.Errorf("aggregate sum: %w", err)
	}
	agg := sale.Aggregate{Count: count, Sum: total, Avg: decimal.Zero}
	if count > 0 {
		agg.Avg = total.Div(decimal.NewFromInt(int64(count)))
	}
	return agg, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, sid uuid.UUID, lines []pricing.Line) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, line := range lines {
		pid, err := parseUUID("product", line.ProductID)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO sale_items (sale_id, position, product_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
			sid, i, pid, line.Quantity, line.UnitPrice.String(), line.Subtotal.String())
	}
	return tx.SendBatch(ctx, batch).Close()
}

func loadLines(ctx context.Context, q Querier, ids []uuid.UUID) (map[string][]pricing.Line, error) {
	out := make(map[string][]pricing.Line, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT sale_id, product_id, quantity, unit_price::text, subtotal::text
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position`, ids)
	if err != nil {
		return nil, storeErr("load sale items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			saleID, productID   uuid.UUID
			quantity            int
			unitPrice, subtotal string
		)
		if err := rows.Scan(&saleID, &productID, &quantity, &unitPrice, &subtotal); err != nil {
			return nil, storeErr("scan sale item", err)
		}
		price, err := parseMoney(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("sale item price: %w", err)
		}
		sub, err := parseMoney(subtotal)
		if err != nil {
			return nil, fmt.Errorf("sale item subtotal: %w", err)
		}
		key := saleID.String()
		out[key] = append(out[key], pricing.Line{
			ProductID: productID.String(),
			Quantity:  quantity,
			UnitPrice: price,
			Subtotal:  sub,
		})
	}
	return out, storeErr("load sale items", rows.Err())
}

func saleWhere(f sale.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", string(f.PaymentMethod))
	}
	if !f.Created.From.IsZero() {
		add("created_at >= $%d", f.Created.From.UTC())
	}
	if !f.Created.To.IsZero() {
		add("created_at < $%d", f.Created.To.UTC())
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(order sale.Sort) string {
	switch order {
	case sale.SortCreatedAsc:
		return "created_at ASC, id"
	case sale.SortTotalDesc:
		return "total DESC, created_at DESC"
	case sale.SortTotalAsc:
		return "total ASC, created_at DESC"
	default:
		return "created_at DESC, id"
	}
}

func saleWriteErr(what, number string, err error) error {
	if isUniqueViolation(err, saleNumberConstraint) {
		return fmt.Errorf("sale number %s: %w", number, sale.ErrDuplicateSaleNumber)
	}
	return storeErr(what, err)
}
