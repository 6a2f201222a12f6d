package vclock

// Relation описывает причинное отношение между двумя векторами версий.
type Relation int

const (
	// Identical - векторы совпадают по всем репликам.
	Identical Relation = iota
	// Before - левый вектор строго предшествует правому.
	Before
	// After - левый вектор строго следует за правым.
	After
	// Concurrent - векторы расходятся: есть изменения, не видевшие друг друга.
	Concurrent
)

func (r Relation) String() string {
	switch r {
	case Identical:
		return "identical"
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// Inverse возвращает отношение с переставленными аргументами.
func (r Relation) Inverse() Relation {
	switch r {
	case Before:
		return After
	case After:
		return Before
	default:
		return r
	}
}
