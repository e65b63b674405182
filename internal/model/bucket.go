package model

import (
	"fmt"
	"time"
)

type BucketMode string

const (
	// BucketModeCalendar сравнивает год, месяц, день и час
	BucketModeCalendar BucketMode = "calendar"
	// BucketModeDayOfMonth сравнивает только день месяца и час, как в старой версии сервиса
	BucketModeDayOfMonth BucketMode = "day_of_month"
)

// Bucket часовая ячейка расписания, по которой сопоставляются слоты и приёмы
type Bucket struct {
	Year  int
	Month time.Month
	Day   int
	Hour  int
}

func (b Bucket) String() string {
	if b.Year == 0 {
		return fmt.Sprintf("d%02d-h%02d", b.Day, b.Hour)
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d", b.Year, int(b.Month), b.Day, b.Hour)
}

// BucketPolicy вычисляет ячейку для момента времени в заданной локации
type BucketPolicy struct {
	loc  *time.Location
	mode BucketMode
}

// NewBucketPolicy создаёт политику, nil локация означает UTC
func NewBucketPolicy(loc *time.Location, mode BucketMode) (BucketPolicy, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch mode {
	case "":
		mode = BucketModeCalendar
	case BucketModeCalendar, BucketModeDayOfMonth:
	default:
		return BucketPolicy{}, fmt.Errorf("unknown bucket mode %q", mode)
	}
	return BucketPolicy{loc: loc, mode: mode}, nil
}

// Location возвращает локацию политики
func (p BucketPolicy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// Of возвращает ячейку для момента времени
func (p BucketPolicy) Of(t time.Time) Bucket {
	local := t.In(p.Location())
	b := Bucket{Day: local.Day(), Hour: local.Hour()}
	if p.mode != BucketModeDayOfMonth {
		b.Year = local.Year()
		b.Month = local.Month()
	}
	return b
}

// Same проверяет что два момента попадают в одну ячейку
func (p BucketPolicy) Same(a, b time.Time) bool {
	return p.Of(a) == p.Of(b)
}
