// Package vclock implements version vectors used to track causality between
// the replicas that mutate a shared entity.
package vclock

import (
	"maps"
	"slices"
)

// VersionVector отображает идентификатор реплики в счетчик ее изменений.
// Отсутствующая реплика эквивалентна счетчику 0.
//
// Нулевое значение (nil) допустимо для чтения; Increment инициализирует
// map при первом вызове.
type VersionVector map[string]uint64

// New создает пустой вектор версий.
func New() VersionVector {
	return make(VersionVector)
}

// Increment увеличивает счетчик реплики на единицу и возвращает новое значение.
// Реплика должна увеличивать только свою собственную запись.
func (v *VersionVector) Increment(replicaID string) uint64 {
	if *v == nil {
		*v = make(VersionVector)
	}
	(*v)[replicaID]++
	return (*v)[replicaID]
}

// Get возвращает счетчик реплики (0, если реплика не встречалась).
func (v VersionVector) Get(replicaID string) uint64 {
	return v[replicaID]
}

// Size возвращает количество реплик с записью в векторе.
func (v VersionVector) Size() int {
	return len(v)
}

// Clone возвращает независимую копию вектора.
func (v VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(v))
	maps.Copy(out, v)
	return out
}

// Merge возвращает поэлементный максимум двух векторов.
// Результат находится After или Identical относительно обоих входов.
func (v VersionVector) Merge(other VersionVector) VersionVector {
	out := v.Clone()
	for id, c := range other {
		if c > out[id] {
			out[id] = c
		}
	}
	return out
}

// Compare определяет причинное отношение v к other.
// Записи с нулевым счетчиком неотличимы от отсутствующих.
func (v VersionVector) Compare(other VersionVector) Relation {
	var less, greater bool

	for id, c := range v {
		switch o := other[id]; {
		case c < o:
			less = true
		case c > o:
			greater = true
		}
	}
	for id, o := range other {
		if _, seen := v[id]; seen {
			continue
		}
		if o > 0 {
			less = true
		}
	}

	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	default:
		return Identical
	}
}

// Equal сообщает, идентичны ли векторы причинно.
func (v VersionVector) Equal(other VersionVector) bool {
	return v.Compare(other) == Identical
}

// Replicas возвращает отсортированный список реплик вектора.
func (v VersionVector) Replicas() []string {
	return slices.Sorted(maps.Keys(v))
}
