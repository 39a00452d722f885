package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/bookman/internal/model"
)

// bookColumns は書籍テーブルのSELECT対象カラム。
const bookColumns = `id, title, author, COALESCE(isbn, ''), genre, description,
	COALESCE(cover_image_url, ''), cover_data, COALESCE(cover_mime, ''),
	publish_year, average_rating, created_at, updated_at`

// PostgresBookRepo はPostgreSQLを使用した書籍リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// scanBook は1行を書籍モデルに読み取る。
func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	book := &model.Book{}
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN, &book.Genre, &book.Description,
		&book.CoverImageURL, &book.CoverData, &book.CoverMime,
		&book.PublishYear, &book.AverageRating, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// queryBooks は複数行の書籍クエリを実行して読み取る。
func (r *PostgresBookRepo) queryBooks(ctx context.Context, query string, args ...any) ([]*model.Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("書籍一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var books []*model.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("書籍行の読み取りに失敗しました: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("書籍一覧の走査に失敗しました: %w", err)
	}
	return books, nil
}

// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
func (r *PostgresBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	book, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	return book, nil
}

// FindByIDs は指定したID群の書籍をまとめて取得する。結果の順序は保証しない。
func (r *PostgresBookRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1)`,
		pq.Array(ids),
	)
}

// List は書籍一覧をcreated_at降順でページネーション付きで取得する。
func (r *PostgresBookRepo) List(ctx context.Context, offset, limit int) ([]*model.Book, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("書籍総数の取得に失敗しました: %w", err)
	}

	books, err := r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id ASC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Search はタイトル・著者・ジャンルの部分一致（大文字小文字無視）で書籍を検索する。
func (r *PostgresBookRepo) Search(ctx context.Context, query string, offset, limit int) ([]*model.Book, int, error) {
	pattern := "%" + query + "%"

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books
		 WHERE title ILIKE $1 OR author ILIKE $1 OR genre ILIKE $1`,
		pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("書籍検索件数の取得に失敗しました: %w", err)
	}

	books, err := r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE title ILIKE $1 OR author ILIKE $1 OR genre ILIKE $1
		 ORDER BY created_at DESC, id ASC OFFSET $2 LIMIT $3`,
		pattern, offset, limit,
	)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// ListByGenres は指定ジャンル群のいずれかに属する書籍を取得する。
func (r *PostgresBookRepo) ListByGenres(ctx context.Context, genres []string) ([]*model.Book, error) {
	if len(genres) == 0 {
		return nil, nil
	}
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE genre = ANY($1)`,
		pq.Array(genres),
	)
}

// ListByAuthors は指定著者群のいずれかの書籍を取得する。
func (r *PostgresBookRepo) ListByAuthors(ctx context.Context, authors []string) ([]*model.Book, error) {
	if len(authors) == 0 {
		return nil, nil
	}
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books WHERE author = ANY($1)`,
		pq.Array(authors),
	)
}

// ListAll は全書籍を取得する。
func (r *PostgresBookRepo) ListAll(ctx context.Context) ([]*model.Book, error) {
	return r.queryBooks(ctx, `SELECT `+bookColumns+` FROM books`)
}

// Create は書籍を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, genre, description,
		   cover_image_url, cover_data, cover_mime, publish_year, average_rating,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, $12, $13)`,
		book.ID, book.Title, book.Author, book.ISBN, book.Genre, book.Description,
		book.CoverImageURL, book.CoverData, book.CoverMime, book.PublishYear,
		book.AverageRating, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("書籍の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は書籍情報を更新する。平均評価は変更しない。
func (r *PostgresBookRepo) Update(ctx context.Context, book *model.Book) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = NULLIF($4, ''), genre = $5, description = $6,
		     cover_image_url = NULLIF($7, ''), publish_year = $8, updated_at = NOW()
		 WHERE id = $1`,
		book.ID, book.Title, book.Author, book.ISBN, book.Genre, book.Description,
		book.CoverImageURL, book.PublishYear,
	)
	if err != nil {
		return fmt.Errorf("書籍の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("書籍が見つかりません: %s", book.ID)
	}
	return nil
}

// Delete は指定IDの書籍を削除する。関連する読書リスト項目はCASCADE削除される。
func (r *PostgresBookRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("書籍の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("書籍が見つかりません: %s", id)
	}
	return nil
}

// UpdateAverageRating は書籍の平均評価を書き戻す。
func (r *PostgresBookRepo) UpdateAverageRating(ctx context.Context, bookID string, average float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE books SET average_rating = $2, updated_at = NOW() WHERE id = $1`,
		bookID, average,
	)
	if err != nil {
		return fmt.Errorf("平均評価の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("書籍が見つかりません: %s", bookID)
	}
	return nil
}

// UpdateCover は書籍のカバー画像データを更新する。
func (r *PostgresBookRepo) UpdateCover(ctx context.Context, bookID string, coverData []byte, coverMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE books SET cover_data = $2, cover_mime = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`,
		bookID, coverData, coverMime,
	)
	if err != nil {
		return fmt.Errorf("カバー画像の更新に失敗しました: %w", err)
	}
	return nil
}

// ListMissingCover はカバーURLが設定済みでカバー画像が未取得の書籍を取得する。
func (r *PostgresBookRepo) ListMissingCover(ctx context.Context, limit int) ([]*model.Book, error) {
	return r.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books
		 WHERE cover_image_url IS NOT NULL AND cover_data IS NULL
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
}

// ExistsByISBN は指定ISBNの書籍が存在するかを返す。
func (r *PostgresBookRepo) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`,
		isbn,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ISBN存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ExistsByTitleAndAuthor は同一タイトル・著者の書籍が存在するかを返す。
func (r *PostgresBookRepo) ExistsByTitleAndAuthor(ctx context.Context, title, author string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE title = $1 AND author = $2)`,
		title, author,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("タイトル・著者の存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
