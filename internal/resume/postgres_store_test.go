package resume

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT url FROM completed_urls").
		WillReturnRows(pgxmock.NewRows([]string{"url"}).
			AddRow("https://docs.example/a.pdf").
			AddRow("https://docs.example/b.pdf"))

	s := NewPostgresStoreWithDB(mock)
	urls, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://docs.example/a.pdf",
		"https://docs.example/b.pdf",
	}, urls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAdd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO completed_urls").
		WithArgs("https://docs.example/a.pdf").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := NewPostgresStoreWithDB(mock)
	require.NoError(t, s.Add(context.Background(), "https://docs.example/a.pdf"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAddDuplicateIsSilent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// ON CONFLICT DO NOTHING reports zero rows; that is still success.
	mock.ExpectExec("INSERT INTO completed_urls").
		WithArgs("https://docs.example/a.pdf").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	s := NewPostgresStoreWithDB(mock)
	require.NoError(t, s.Add(context.Background(), "https://docs.example/a.pdf"))
	require.NoError(t, mock.ExpectationsWereMet())
}
