package base

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX общий интерфейс пула и транзакции
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Mapper описывает как сущность лежит в таблице.
// Scan читает колонки в порядке: id, Columns()..., created_at, updated_at.
type Mapper[T any] interface {
	Table() string
	Columns() []string
	Values(entity *T) []any
	Scan(row pgx.Row) (*T, error)
}

// Repository базовый CRUD репозиторий для одной таблицы
type Repository[T any] struct {
	db     DBTX
	mapper Mapper[T]
	name   string
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository[T any](db DBTX, mapper Mapper[T], name string) *Repository[T] {
	return &Repository[T]{db: db, mapper: mapper, name: name}
}

// DB возвращает текущее соединение (пул или транзакцию)
func (r *Repository[T]) DB() DBTX {
	return r.db
}

// WithDB возвращает копию репозитория поверх другого соединения
func (r *Repository[T]) WithDB(db DBTX) *Repository[T] {
	return &Repository[T]{db: db, mapper: r.mapper, name: r.name}
}

func (r *Repository[T]) selectList() string {
	return "id, " + strings.Join(r.mapper.Columns(), ", ") + ", created_at, updated_at"
}

// GetAll получает все записи в порядке создания
func (r *Repository[T]) GetAll(ctx context.Context) ([]*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, r.selectList(), r.mapper.Table())

	return r.queryMany(ctx, "get all "+r.name, query)
}

// GetByID получает запись по ID, nil если записи нет
func (r *Repository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.selectList(), r.mapper.Table())

	entity, err := r.mapper.Scan(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s by id: %w", r.name, err)
	}

	return entity, nil
}

// FindBy получает записи с column = value в порядке создания
func (r *Repository[T]) FindBy(ctx context.Context, column string, value any) ([]*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY id`, r.selectList(), r.mapper.Table(), column)

	return r.queryMany(ctx, fmt.Sprintf("get %s by %s", r.name, column), query, value)
}

// Create вставляет запись и возвращает её с присвоенным ID
func (r *Repository[T]) Create(ctx context.Context, entity *T) (*T, error) {
	columns := r.mapper.Columns()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		r.mapper.Table(),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		r.selectList(),
	)

	created, err := r.mapper.Scan(r.db.QueryRow(ctx, query, r.mapper.Values(entity)...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.name, err)
	}

	return created, nil
}

// Update перезаписывает колонки записи, nil если записи нет
func (r *Repository[T]) Update(ctx context.Context, id int64, entity *T) (*T, error) {
	columns := r.mapper.Columns()
	sets := make([]string, len(columns))
	for i, column := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", column, i+1)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		r.mapper.Table(),
		strings.Join(sets, ", "),
		len(columns)+1,
		r.selectList(),
	)

	args := append(r.mapper.Values(entity), id)
	updated, err := r.mapper.Scan(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update %s: %w", r.name, err)
	}

	return updated, nil
}

// Delete удаляет запись, возвращает количество удалённых строк
func (r *Repository[T]) Delete(ctx context.Context, id int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.mapper.Table())

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", r.name, err)
	}

	return tag.RowsAffected(), nil
}

func (r *Repository[T]) queryMany(ctx context.Context, op, query string, args ...any) ([]*T, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entities []*T
	for rows.Next() {
		entity, err := r.mapper.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.name, err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entities, nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
