package db

import (
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(32) NOT NULL UNIQUE,
		password_hash VARCHAR(100) NOT NULL,
		nickname VARCHAR(64) NOT NULL DEFAULT '',
		avatar_url VARCHAR(255) NOT NULL DEFAULT '',
		is_admin TINYINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS manga (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		author VARCHAR(128) NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		cover_url VARCHAR(512) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'ONGOING',
		views BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_manga_title (title)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS chapters (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		manga_id BIGINT NOT NULL,
		number DOUBLE NOT NULL,
		title VARCHAR(255) NOT NULL DEFAULT '',
		views BIGINT NOT NULL DEFAULT 0,
		warmed_at DATETIME NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uk_chapter_number (manga_id, number),
		CONSTRAINT fk_chapter_manga FOREIGN KEY (manga_id) REFERENCES manga(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS pages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		chapter_id BIGINT NOT NULL,
		page_index INT NOT NULL,
		origin_url VARCHAR(1024) NOT NULL,
		width INT NOT NULL DEFAULT 0,
		height INT NOT NULL DEFAULT 0,
		grid_size INT NOT NULL DEFAULT 0,
		seed INT NOT NULL DEFAULT 0,
		version INT NOT NULL DEFAULT 1,
		UNIQUE KEY uk_page_index (chapter_id, page_index),
		CONSTRAINT fk_page_chapter FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		chapter_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		body VARCHAR(2000) NOT NULL,
		created_at DATETIME NOT NULL,
		KEY idx_comment_chapter (chapter_id, id),
		CONSTRAINT fk_comment_chapter FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE CASCADE,
		CONSTRAINT fk_comment_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		user_id BIGINT NOT NULL,
		manga_id BIGINT NOT NULL,
		chapter_id BIGINT NOT NULL DEFAULT 0,
		page_index INT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, manga_id),
		CONSTRAINT fk_bookmark_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_bookmark_manga FOREIGN KEY (manga_id) REFERENCES manga(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Tables lists the schema tables children first, the order TRUNCATE needs.
var Tables = []string{"bookmarks", "comments", "pages", "chapters", "manga", "users"}

func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
