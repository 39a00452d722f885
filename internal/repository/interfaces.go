// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/bookman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// BookRepository は書籍データの永続化インターフェース。
type BookRepository interface {
	// FindByID は指定IDの書籍を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Book, error)

	// FindByIDs は指定したID群の書籍をまとめて取得する。
	// 結果の順序は保証しない（N+1クエリ回避用の一括取得）。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Book, error)

	// List は書籍一覧をcreated_at降順でページネーション付きで取得する。
	// 総件数も同時に返す。
	List(ctx context.Context, offset, limit int) ([]*model.Book, int, error)

	// Search はタイトル・著者・ジャンルの部分一致（大文字小文字無視）で書籍を検索する。
	Search(ctx context.Context, query string, offset, limit int) ([]*model.Book, int, error)

	// ListByGenres は指定ジャンル群のいずれかに属する書籍を取得する。
	ListByGenres(ctx context.Context, genres []string) ([]*model.Book, error)

	// ListByAuthors は指定著者群のいずれかの書籍を取得する。
	ListByAuthors(ctx context.Context, authors []string) ([]*model.Book, error)

	// ListAll は全書籍を取得する。嗜好データのないユーザーへの
	// 全カタログフォールバックで使用する。
	ListAll(ctx context.Context) ([]*model.Book, error)

	// Create は書籍を作成する。
	Create(ctx context.Context, book *model.Book) error

	// Update は書籍情報を更新する。平均評価は変更しない。
	Update(ctx context.Context, book *model.Book) error

	// Delete は指定IDの書籍を削除する。関連する読書リスト項目はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// UpdateAverageRating は書籍の平均評価を書き戻す。評価集計サービス専用。
	UpdateAverageRating(ctx context.Context, bookID string, average float64) error

	// UpdateCover は書籍のカバー画像データを更新する。
	UpdateCover(ctx context.Context, bookID string, coverData []byte, coverMime string) error

	// ListMissingCover はカバーURLが設定済みでカバー画像が未取得の書籍を取得する。
	// バックグラウンドのカバー取得ワーカーで使用する。
	ListMissingCover(ctx context.Context, limit int) ([]*model.Book, error)

	// ExistsByISBN は指定ISBNの書籍が存在するかを返す。
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)

	// ExistsByTitleAndAuthor は同一タイトル・著者の書籍が存在するかを返す。
	ExistsByTitleAndAuthor(ctx context.Context, title, author string) (bool, error)
}

// LibraryRepository は読書リスト項目の永続化インターフェース。
type LibraryRepository interface {
	// FindByUserAndBook はユーザーIDと書籍IDで読書リスト項目を検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error)

	// ListByUserID はユーザーの読書リスト項目を取得する。
	ListByUserID(ctx context.Context, userID string) ([]*model.LibraryEntry, error)

	// ListByUserIDWithBook はユーザーの読書リストを書籍情報付きで取得する。
	ListByUserIDWithBook(ctx context.Context, userID string) ([]LibraryEntryWithBook, error)

	// ListByBookID は書籍に紐づく全読書リスト項目を取得する。
	// 評価集計は必ずこのメソッドで取得した最新の項目集合に対して行う。
	ListByBookID(ctx context.Context, bookID string) ([]*model.LibraryEntry, error)

	// ListReviewsByBookID は書籍の評価済み項目をユーザー名付きで取得する。
	ListReviewsByBookID(ctx context.Context, bookID string) ([]Review, error)

	// CountFavoritesByBookID は書籍をお気に入り登録しているユーザー数を返す。
	CountFavoritesByBookID(ctx context.Context, bookID string) (int, error)

	// Create は読書リスト項目を作成する。
	Create(ctx context.Context, entry *model.LibraryEntry) error

	// UpdateRating は項目の評価を更新する。nilで評価を取り消す。
	UpdateRating(ctx context.Context, id string, rating *int) error

	// UpdateFavorite は項目のお気に入りフラグを更新する。
	UpdateFavorite(ctx context.Context, id string, isFavorite bool) error

	// Delete は指定IDの読書リスト項目を削除する。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全読書リスト項目を削除し、
	// 削除された項目が参照していた書籍IDの一覧を返す。
	// 退会処理後の平均評価の再集計に使用する。
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)
}

// LibraryEntryWithBook は読書リスト項目と書籍情報を結合した構造体。
// 読書リスト一覧表示と嗜好抽出で使用する。
type LibraryEntryWithBook struct {
	model.LibraryEntry
	BookTitle         string
	BookAuthor        string
	BookGenre         string
	BookAverageRating float64
	BookCoverImageURL string
}

// Review は書籍に対する1ユーザーの評価を表す。
type Review struct {
	EntryID  string
	UserName string
	Rating   int
	RatedAt  time.Time
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
