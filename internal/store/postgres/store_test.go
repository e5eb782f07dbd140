package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sitedown/sitedown/internal/crawler"
)

func TestPutInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "pages")
	require.NoError(t, err)

	fetchedAt := time.Unix(1700000000, 0).UTC()
	page := crawler.Page{
		URL:           "https://example.com/docs",
		NormalizedURL: "https://example.com/docs",
		Title:         "Docs",
		Content:       "# Docs\n",
		Fingerprint:   "abc123",
		FetchedAt:     fetchedAt,
	}

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			page.URL,
			page.NormalizedURL,
			page.Title,
			page.Content,
			page.Fingerprint,
			page.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), page))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutConflictIsSilent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "pages")
	require.NoError(t, err)

	// ON CONFLICT DO NOTHING reports zero affected rows; Put still succeeds.
	mock.ExpectExec("INSERT INTO pages").
		WithArgs("u", "u", "", "", "", time.Time{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, store.Put(context.Background(), crawler.Page{URL: "u", NormalizedURL: "u"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutRequiresNormalizedURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.Put(context.Background(), crawler.Page{URL: "https://example.com/"}))
}

func TestGetAllScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "pages")
	require.NoError(t, err)

	fetchedAt := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT url, normalized_url, title, content, fingerprint, fetched_at").
		WillReturnRows(pgxmock.NewRows([]string{
			"url", "normalized_url", "title", "content", "fingerprint", "fetched_at",
		}).AddRow(
			"https://example.com/a", "https://example.com/a", "A", "# A\n", "fp-a", fetchedAt,
		).AddRow(
			"https://example.com/b", "https://example.com/b", "B", "# B\n", "fp-b", fetchedAt,
		))

	pages, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "A", pages["https://example.com/a"].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllQueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStoreWithPool(mock, "pages")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT url, normalized_url").
		WillReturnError(errors.New("connection reset"))

	_, err = store.GetAll(context.Background())
	require.Error(t, err)
}

func TestNewStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), Config{})
	require.Error(t, err)

	_, err = NewStoreWithPool(nil, "pages")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewStoreWithPool(mock, "bad-table-name;")
	require.Error(t, err)
}
