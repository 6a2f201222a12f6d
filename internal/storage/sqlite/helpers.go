package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/ordokr/LMS-sub004/internal/storage"
)

// timeLayout ISO-8601 фиксированной ширины: строки сравниваются лексикографически
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %w", storage.ErrCorruptRecord, s, err)
	}
	return t, nil
}

// dbError помечает ошибку драйвера как сбой хранилища
func dbError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", storage.ErrPersistence, op, err)
}

// corrupt помечает ошибку разбора сохраненного значения
func corrupt(err error) error {
	if errors.Is(err, storage.ErrCorruptRecord) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrCorruptRecord, err)
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
