package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

func indexRows(points ...model.BenchmarkIndexPoint) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"trade_date", "index_value"})
	for _, pt := range points {
		rows.AddRow(pt.TradeDate, pt.IndexValue)
	}
	return rows
}

func TestBenchmarkRepositoryHasPoints(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		repo := &BenchmarkRepository{db: mockDB}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sp500_index_daily"`)).
			WillReturnRows(indexRows())

		has, err := repo.HasPoints(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if has {
			t.Fatal("expected no points")
		}
	})

	t.Run("populated", func(t *testing.T) {
		mockDB, mock := newMockDB(t)
		repo := &BenchmarkRepository{db: mockDB}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sp500_index_daily"`)).
			WillReturnRows(indexRows(model.BenchmarkIndexPoint{TradeDate: day("2024-01-02"), IndexValue: 100}))

		has, err := repo.HasPoints(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !has {
			t.Fatal("expected points to exist")
		}
	})
}

func TestBenchmarkRepositoryPointsThrough(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &BenchmarkRepository{db: mockDB}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "sp500_index_daily" WHERE trade_date <= $1 ORDER BY trade_date ASC`)).
		WithArgs(day("2024-01-05")).
		WillReturnRows(indexRows(
			model.BenchmarkIndexPoint{TradeDate: day("2024-01-02"), IndexValue: 100},
			model.BenchmarkIndexPoint{TradeDate: day("2024-01-03"), IndexValue: 101},
		))

	points, err := repo.PointsThrough(context.Background(), day("2024-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[0].IndexValue != 100 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestBenchmarkRepositoryInsertNoPoints(t *testing.T) {
	mockDB, _ := newMockDB(t)
	repo := &BenchmarkRepository{db: mockDB}

	if err := repo.InsertPoints(context.Background(), nil); err != nil {
		t.Fatalf("empty insert should be a no-op, got %v", err)
	}
}
