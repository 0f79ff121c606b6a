// Package catalog keeps the song library: a SQLite table of uploaded files
// and YouTube videos, their lyrics, and the HTTP API that manages them.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func createTables(db *sql.DB) error {
	createSongsTable := `
    CREATE TABLE IF NOT EXISTS songs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT,
        artist TEXT,
        file_path TEXT,
        youtube_id TEXT,
        lyrics TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `

	_, err := db.Exec(createSongsTable)
	return err
}

// AddSong inserts a song and returns its id. ID and CreatedAt are assigned
// by the database.
func (s *Store) AddSong(song Song) (int64, error) {
	result, err := s.db.Exec("INSERT INTO songs (title, artist, file_path, youtube_id, lyrics) VALUES (?, ?, ?, ?, ?)",
		song.Title, song.Artist, nullable(song.FilePath), nullable(song.YouTubeID), nullable(song.Lyrics))
	if err != nil {
		return 0, fmt.Errorf("error adding song: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting song ID: %w", err)
	}
	return id, nil
}

const songColumns = "id, title, artist, file_path, youtube_id, lyrics, created_at"

// Songs lists the library, newest first.
func (s *Store) Songs() ([]Song, error) {
	rows, err := s.db.Query("SELECT " + songColumns + " FROM songs ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("error querying songs: %w", err)
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (s *Store) SongByID(id int64) (Song, bool, error) {
	row := s.db.QueryRow("SELECT "+songColumns+" FROM songs WHERE id = ?", id)

	song, err := scanSong(row)
	if err == sql.ErrNoRows {
		return Song{}, false, nil
	}
	if err != nil {
		return Song{}, false, err
	}
	return song, true, nil
}

// Lyrics returns the raw lyrics payload of a song. ok is false when the
// song does not exist or has no lyrics.
func (s *Store) Lyrics(id int64) (lyrics string, ok bool, err error) {
	var v sql.NullString
	err = s.db.QueryRow("SELECT lyrics FROM songs WHERE id = ?", id).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to retrieve lyrics: %w", err)
	}
	return v.String, v.Valid, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (Song, error) {
	var (
		song                             Song
		title, artist, path, yt, lyrics sql.NullString
		created                          sql.NullTime
	)

	err := row.Scan(&song.ID, &title, &artist, &path, &yt, &lyrics, &created)
	if err == sql.ErrNoRows {
		return Song{}, err
	}
	if err != nil {
		return Song{}, fmt.Errorf("failed to retrieve song: %w", err)
	}

	song.Title = title.String
	song.Artist = artist.String
	song.FilePath = path.String
	song.YouTubeID = yt.String
	song.Lyrics = lyrics.String
	if created.Valid {
		song.CreatedAt = created.Time.UTC()
	}
	return song, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
