// Package seed はデモデータの投入ロジックを提供する。
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// demoPassword は全デモユーザー共通のパスワード。
const demoPassword = "password123"

// Aggregator は平均評価の再計算インターフェース。
type Aggregator interface {
	RecomputeAverageRating(ctx context.Context, bookID string) (float64, error)
}

// demoUser はデモユーザーの定義。
type demoUser struct {
	name   string
	email  string
	genres []string
}

// demoUsers はノルウェー人デモユーザーの定義。
// ジャンル嗜好はレコメンデーションの動作確認用にユーザーごとに分けている。
var demoUsers = []demoUser{
	{"Per Hansen", "per.hansen@example.com", []string{"Fiction", "Mystery", "Thriller"}},
	{"Ola Nordmann", "ola.nordmann@example.com", []string{"Fantasy", "Science Fiction", "Fiction"}},
	{"Kari Larsen", "kari.larsen@example.com", []string{"Romance", "Historical Fiction", "Fiction"}},
	{"Emma Johansen", "emma.johansen@example.com", []string{"Horror", "Thriller", "Mystery"}},
}

// demoBook はデモカタログの書籍定義。
type demoBook struct {
	title       string
	author      string
	isbn        string
	genre       string
	publishYear int
}

// demoBooks はデモカタログの書籍定義。全デモユーザーの嗜好ジャンルを網羅する。
var demoBooks = []demoBook{
	{"Sult", "Knut Hamsun", "9788205377646", "Fiction", 1890},
	{"Kristin Lavransdatter", "Sigrid Undset", "9788203362148", "Historical Fiction", 1920},
	{"Sofies verden", "Jostein Gaarder", "9788203203312", "Fiction", 1991},
	{"Snømannen", "Jo Nesbø", "9788203193569", "Thriller", 2007},
	{"Flaggermusmannen", "Jo Nesbø", "9788203185458", "Mystery", 1997},
	{"Rødstrupe", "Jo Nesbø", "9788203189517", "Thriller", 2000},
	{"Dinas bok", "Herbjørg Wassmo", "9788205260597", "Historical Fiction", 1989},
	{"The Hobbit", "J.R.R. Tolkien", "9780547928227", "Fantasy", 1937},
	{"The Name of the Wind", "Patrick Rothfuss", "9780756404741", "Fantasy", 2007},
	{"Dune", "Frank Herbert", "9780441013593", "Science Fiction", 1965},
	{"The Left Hand of Darkness", "Ursula K. Le Guin", "9780441478125", "Science Fiction", 1969},
	{"Pride and Prejudice", "Jane Austen", "9780141439518", "Romance", 1813},
	{"Outlander", "Diana Gabaldon", "9780440212560", "Romance", 1991},
	{"The Shining", "Stephen King", "9780307743657", "Horror", 1977},
	{"It", "Stephen King", "9781501142970", "Horror", 1986},
	{"And Then There Were None", "Agatha Christie", "9780062073488", "Mystery", 1939},
	{"Gone Girl", "Gillian Flynn", "9780307588371", "Thriller", 2012},
	{"The Remains of the Day", "Kazuo Ishiguro", "9780679731726", "Fiction", 1989},
}

// Seeder はデモデータ投入の実装。
// 乱数シードを明示的に受け取るため、同じシードであれば常に同じデータを生成する。
type Seeder struct {
	userRepo    repository.UserRepository
	bookRepo    repository.BookRepository
	libraryRepo repository.LibraryRepository
	aggregator  Aggregator
	rng         *rand.Rand
}

// NewSeeder はSeederの新しいインスタンスを生成する。
func NewSeeder(
	userRepo repository.UserRepository,
	bookRepo repository.BookRepository,
	libraryRepo repository.LibraryRepository,
	aggregator Aggregator,
	randomSeed int64,
) *Seeder {
	return &Seeder{
		userRepo:    userRepo,
		bookRepo:    bookRepo,
		libraryRepo: libraryRepo,
		aggregator:  aggregator,
		rng:         rand.New(rand.NewSource(randomSeed)),
	}
}

// Run はデモデータを投入する。
// デモユーザーが1人でも存在する場合は投入済みとみなしてスキップする。
func (s *Seeder) Run(ctx context.Context) error {
	for _, u := range demoUsers {
		existing, err := s.userRepo.FindByEmail(ctx, u.email)
		if err != nil {
			return fmt.Errorf("デモユーザーの存在確認に失敗しました: %w", err)
		}
		if existing != nil {
			slog.Info("デモユーザーが既に存在するためシードをスキップします", "email", u.email)
			return nil
		}
	}

	books, err := s.seedBooks(ctx)
	if err != nil {
		return err
	}

	affected := map[string]bool{}
	for _, u := range demoUsers {
		bookIDs, err := s.seedUserLibrary(ctx, u, books)
		if err != nil {
			return err
		}
		for _, id := range bookIDs {
			affected[id] = true
		}
	}

	// 評価を投入した書籍の平均評価を再計算する
	for bookID := range affected {
		if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
			return fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
		}
	}

	slog.Info("デモデータの投入が完了しました",
		"users", len(demoUsers),
		"books", len(books),
		"rated_books", len(affected),
	)
	return nil
}

// seedBooks はデモカタログを投入する。カタログに書籍が既にある場合はそれを使用する。
func (s *Seeder) seedBooks(ctx context.Context) ([]*model.Book, error) {
	existing, err := s.bookRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("書籍一覧の取得に失敗しました: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("カタログに書籍が存在するため書籍シードをスキップします", "count", len(existing))
		return existing, nil
	}

	now := time.Now()
	books := make([]*model.Book, 0, len(demoBooks))
	for _, d := range demoBooks {
		year := d.publishYear
		b := &model.Book{
			ID:          uuid.New().String(),
			Title:       d.title,
			Author:      d.author,
			ISBN:        d.isbn,
			Genre:       d.genre,
			PublishYear: &year,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.bookRepo.Create(ctx, b); err != nil {
			return nil, fmt.Errorf("デモ書籍の登録に失敗しました: %w", err)
		}
		books = append(books, b)
	}

	slog.Info("デモカタログを投入しました", "count", len(books))
	return books, nil
}

// seedUserLibrary は1ユーザー分のアカウントと読書リストを投入し、
// 評価を付けた書籍のID一覧を返す。
func (s *Seeder) seedUserLibrary(ctx context.Context, u demoUser, books []*model.Book) ([]string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        u.email,
		Name:         u.name,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("デモユーザーの登録に失敗しました: %w", err)
	}
	slog.Info("デモユーザーを登録しました", "email", u.email)

	selected := s.pickBooks(u.genres, books)

	// お気に入りは2〜4冊
	numFavorites := 2 + s.rng.Intn(3)
	favorites := map[int]bool{}
	for len(favorites) < numFavorites && len(favorites) < len(selected) {
		favorites[s.rng.Intn(len(selected))] = true
	}

	var ratedBookIDs []string
	for i, b := range selected {
		isFavorite := favorites[i]

		// 8割の書籍に評価を付ける。お気に入りは4〜5、それ以外は2〜5。
		var rating *int
		if s.rng.Float64() < 0.8 {
			var v int
			if isFavorite {
				v = 4 + s.rng.Intn(2)
			} else {
				v = 2 + s.rng.Intn(4)
			}
			rating = &v
		}

		entry := &model.LibraryEntry{
			ID:         uuid.New().String(),
			UserID:     user.ID,
			BookID:     b.ID,
			Rating:     rating,
			IsFavorite: isFavorite,
			ReadAt:     time.Now().AddDate(0, 0, -s.rng.Intn(365)),
		}
		if err := s.libraryRepo.Create(ctx, entry); err != nil {
			return nil, fmt.Errorf("読書リスト項目の登録に失敗しました: %w", err)
		}
		if rating != nil {
			ratedBookIDs = append(ratedBookIDs, b.ID)
		}
	}

	slog.Info("デモユーザーの読書リストを投入しました",
		"email", u.email,
		"entries", len(selected),
		"favorites", len(favorites),
		"rated", len(ratedBookIDs),
	)
	return ratedBookIDs, nil
}

// pickBooks は嗜好ジャンルから6〜8冊、その他ジャンルから2〜4冊を選ぶ。
func (s *Seeder) pickBooks(genres []string, books []*model.Book) []*model.Book {
	genreSet := map[string]bool{}
	for _, g := range genres {
		genreSet[g] = true
	}

	var preferred, others []*model.Book
	for _, b := range books {
		if genreSet[b.Genre] {
			preferred = append(preferred, b)
		} else {
			others = append(others, b)
		}
	}

	s.shuffle(preferred)
	s.shuffle(others)

	numPreferred := 6 + s.rng.Intn(3)
	if numPreferred > len(preferred) {
		numPreferred = len(preferred)
	}
	numOthers := 2 + s.rng.Intn(3)
	if numOthers > len(others) {
		numOthers = len(others)
	}

	selected := make([]*model.Book, 0, numPreferred+numOthers)
	selected = append(selected, preferred[:numPreferred]...)
	selected = append(selected, others[:numOthers]...)
	return selected
}

// shuffle は書籍スライスをシーダーの乱数でシャッフルする。
func (s *Seeder) shuffle(books []*model.Book) {
	s.rng.Shuffle(len(books), func(i, j int) {
		books[i], books[j] = books[j], books[i]
	})
}
