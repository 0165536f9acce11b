package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Movie is a row of the movies table together with its genres.
type Movie struct {
	ID     uint64   `db:"id" json:"id"`
	Title  string   `db:"title" json:"title"`
	Genres []string `db:"-" json:"genres"`
}

type movieGenre struct {
	MovieID uint64 `db:"movie_id"`
	Genre   string `db:"genre"`
}

// MovieRepo reads the catalog. It wraps the shared *sql.DB with sqlx so rows
// scan straight into tagged structs.
type MovieRepo struct {
	db *sqlx.DB
}

// NewMovieRepo returns a MovieRepo bound to db.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: sqlx.NewDb(db, "mysql")}
}

// ListWithGenres returns every movie ordered by ID, each with its genres in
// alphabetical order. Movies without genres get an empty slice.
func (r *MovieRepo) ListWithGenres(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := r.db.SelectContext(ctx, &movies, `SELECT id, title FROM movies ORDER BY id`); err != nil {
		return nil, err
	}
	var genres []movieGenre
	if err := r.db.SelectContext(ctx, &genres, `SELECT movie_id, genre FROM movie_genres ORDER BY movie_id, genre`); err != nil {
		return nil, err
	}
	byMovie := make(map[uint64][]string, len(movies))
	for _, g := range genres {
		byMovie[g.MovieID] = append(byMovie[g.MovieID], g.Genre)
	}
	for i := range movies {
		movies[i].Genres = byMovie[movies[i].ID]
		if movies[i].Genres == nil {
			movies[i].Genres = []string{}
		}
	}
	return movies, nil
}
