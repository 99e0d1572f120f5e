package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/image-converter/internal/model"
)

var ErrPreferencesNotFound = errors.New("preferences not found")

// Repository stores client preferences in PostgreSQL.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the saved preferences of a client.
func (r *Repository) Get(ctx context.Context, clientID string) (model.Preferences, error) {
	query := `
		SELECT theme, clock_format, auto_download, quality, format, language, updated_at
		FROM preferences
		WHERE client_id = $1
    `

	p := model.Preferences{ClientID: clientID}
	err := r.db.QueryRowContext(ctx, query, clientID).Scan(
		&p.Theme, &p.ClockFormat, &p.AutoDownload, &p.Quality, &p.Format, &p.Language, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Preferences{}, ErrPreferencesNotFound
		}

		return model.Preferences{}, fmt.Errorf("get: failed to get preferences: %w", err)
	}

	return p, nil
}

// Save inserts or replaces the preferences of a client and returns the
// stored row.
func (r *Repository) Save(ctx context.Context, p model.Preferences) (model.Preferences, error) {
	query := `
		INSERT INTO preferences (client_id, theme, clock_format, auto_download, quality, format, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (client_id) DO UPDATE
		SET theme = EXCLUDED.theme,
		    clock_format = EXCLUDED.clock_format,
		    auto_download = EXCLUDED.auto_download,
		    quality = EXCLUDED.quality,
		    format = EXCLUDED.format,
		    language = EXCLUDED.language,
		    updated_at = now()
		RETURNING updated_at
    `

	err := r.db.QueryRowContext(
		ctx, query, p.ClientID, p.Theme, p.ClockFormat, p.AutoDownload, p.Quality, p.Format, p.Language,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("save: failed to save preferences: %w", err)
	}

	return p, nil
}

// Delete removes the preferences of a client.
func (r *Repository) Delete(ctx context.Context, clientID string) error {
	query := `
		DELETE FROM preferences WHERE client_id = $1
    `

	res, err := r.db.ExecContext(ctx, query, clientID)
	if err != nil {
		return fmt.Errorf("delete: failed to delete preferences: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrPreferencesNotFound
	}

	return nil
}
