package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bookman/internal/model"
)

// PostgresLibraryRepo はPostgreSQLを使用した読書リストリポジトリ。
type PostgresLibraryRepo struct {
	db *sql.DB
}

// NewPostgresLibraryRepo はPostgresLibraryRepoを生成する。
func NewPostgresLibraryRepo(db *sql.DB) *PostgresLibraryRepo {
	return &PostgresLibraryRepo{db: db}
}

// FindByUserAndBook はユーザーIDと書籍IDで読書リスト項目を検索する。見つからない場合はnilを返す。
func (r *PostgresLibraryRepo) FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
	entry := &model.LibraryEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, book_id, rating, is_favorite, read_at, created_at, updated_at
		 FROM library_entries WHERE user_id = $1 AND book_id = $2`,
		userID, bookID,
	).Scan(&entry.ID, &entry.UserID, &entry.BookID, &entry.Rating, &entry.IsFavorite,
		&entry.ReadAt, &entry.CreatedAt, &entry.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("読書リスト項目の検索に失敗しました: %w", err)
	}

	return entry, nil
}

// ListByUserID はユーザーの読書リスト項目を取得する。
func (r *PostgresLibraryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.LibraryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, book_id, rating, is_favorite, read_at, created_at, updated_at
		 FROM library_entries WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("読書リストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanLibraryEntries(rows)
}

// ListByBookID は書籍に紐づく全読書リスト項目を取得する。
// 評価集計用に常に最新のデータベース状態を返す。
func (r *PostgresLibraryRepo) ListByBookID(ctx context.Context, bookID string) ([]*model.LibraryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, book_id, rating, is_favorite, read_at, created_at, updated_at
		 FROM library_entries WHERE book_id = $1`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("書籍の読書リスト項目の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanLibraryEntries(rows)
}

// scanLibraryEntries は読書リスト項目の行集合を読み取る。
func scanLibraryEntries(rows *sql.Rows) ([]*model.LibraryEntry, error) {
	var entries []*model.LibraryEntry
	for rows.Next() {
		entry := &model.LibraryEntry{}
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.BookID, &entry.Rating,
			&entry.IsFavorite, &entry.ReadAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("読書リスト項目行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("読書リスト項目の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// ListByUserIDWithBook はユーザーの読書リストを書籍情報付きで取得する。
func (r *PostgresLibraryRepo) ListByUserIDWithBook(ctx context.Context, userID string) ([]LibraryEntryWithBook, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			le.id, le.user_id, le.book_id, le.rating, le.is_favorite,
			le.read_at, le.created_at, le.updated_at,
			b.title, b.author, b.genre, b.average_rating, COALESCE(b.cover_image_url, '')
		 FROM library_entries le
		 JOIN books b ON le.book_id = b.id
		 WHERE le.user_id = $1
		 ORDER BY le.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("読書リスト（書籍情報付き）の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []LibraryEntryWithBook
	for rows.Next() {
		var info LibraryEntryWithBook
		if err := rows.Scan(
			&info.ID, &info.UserID, &info.BookID, &info.Rating, &info.IsFavorite,
			&info.ReadAt, &info.CreatedAt, &info.UpdatedAt,
			&info.BookTitle, &info.BookAuthor, &info.BookGenre, &info.BookAverageRating,
			&info.BookCoverImageURL,
		); err != nil {
			return nil, fmt.Errorf("読書リスト行（書籍情報付き）の読み取りに失敗しました: %w", err)
		}
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("読書リスト（書籍情報付き）の走査に失敗しました: %w", err)
	}
	return results, nil
}

// ListReviewsByBookID は書籍の評価済み項目をユーザー名付きで取得する。
func (r *PostgresLibraryRepo) ListReviewsByBookID(ctx context.Context, bookID string) ([]Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT le.id, u.name, le.rating, le.read_at
		 FROM library_entries le
		 JOIN users u ON le.user_id = u.id
		 WHERE le.book_id = $1 AND le.rating IS NOT NULL
		 ORDER BY le.read_at DESC`,
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var rev Review
		if err := rows.Scan(&rev.EntryID, &rev.UserName, &rev.Rating, &rev.RatedAt); err != nil {
			return nil, fmt.Errorf("レビュー行の読み取りに失敗しました: %w", err)
		}
		reviews = append(reviews, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レビュー一覧の走査に失敗しました: %w", err)
	}
	return reviews, nil
}

// CountFavoritesByBookID は書籍をお気に入り登録しているユーザー数を返す。
func (r *PostgresLibraryRepo) CountFavoritesByBookID(ctx context.Context, bookID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM library_entries WHERE book_id = $1 AND is_favorite = true`,
		bookID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("お気に入り数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は読書リスト項目を作成する。
func (r *PostgresLibraryRepo) Create(ctx context.Context, entry *model.LibraryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO library_entries (id, user_id, book_id, rating, is_favorite, read_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.BookID, entry.Rating, entry.IsFavorite,
		entry.ReadAt, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("読書リスト項目の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateRating は項目の評価を更新する。nilで評価を取り消す。
func (r *PostgresLibraryRepo) UpdateRating(ctx context.Context, id string, rating *int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE library_entries SET rating = $2, updated_at = NOW() WHERE id = $1`,
		id, rating,
	)
	if err != nil {
		return fmt.Errorf("評価の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("読書リスト項目が見つかりません: %s", id)
	}
	return nil
}

// UpdateFavorite は項目のお気に入りフラグを更新する。
func (r *PostgresLibraryRepo) UpdateFavorite(ctx context.Context, id string, isFavorite bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE library_entries SET is_favorite = $2, updated_at = NOW() WHERE id = $1`,
		id, isFavorite,
	)
	if err != nil {
		return fmt.Errorf("お気に入りフラグの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("読書リスト項目が見つかりません: %s", id)
	}
	return nil
}

// Delete は指定IDの読書リスト項目を削除する。
func (r *PostgresLibraryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM library_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("読書リスト項目の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("読書リスト項目が見つかりません: %s", id)
	}
	return nil
}

// DeleteByUserID はユーザーの全読書リスト項目を削除し、影響を受けた書籍IDを返す。
func (r *PostgresLibraryRepo) DeleteByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM library_entries WHERE user_id = $1 RETURNING book_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの全読書リスト項目の削除に失敗しました: %w", err)
	}
	defer rows.Close()

	var bookIDs []string
	for rows.Next() {
		var bookID string
		if err := rows.Scan(&bookID); err != nil {
			return nil, fmt.Errorf("削除結果行の読み取りに失敗しました: %w", err)
		}
		bookIDs = append(bookIDs, bookID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("削除結果の走査に失敗しました: %w", err)
	}
	return bookIDs, nil
}

// compile-time interface check
var _ LibraryRepository = (*PostgresLibraryRepo)(nil)
