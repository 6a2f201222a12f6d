package syncstate

import (
	"fmt"

	"github.com/ordokr/LMS-sub004/internal/models"
)

// Strategy способ свести конфликтующие векторы к одному согласованному состоянию
type Strategy string

const (
	// StrategyPreferCourse - побеждает платформа курсов
	StrategyPreferCourse Strategy = "prefer_course"
	// StrategyPreferForum - побеждает форум
	StrategyPreferForum Strategy = "prefer_forum"
	// StrategyMerge - все векторы заменяются поэлементным максимумом
	StrategyMerge Strategy = "merge"
)

// ParseStrategy разбирает название стратегии.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyPreferCourse, StrategyPreferForum, StrategyMerge:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown resolution strategy %q", ErrInvalidArgument, s)
	}
}

// apply сводит векторы состояния по стратегии. Контент не трогается:
// какую сторону перенести, решает вызывающий.
func (st Strategy) apply(state *models.EntityVersionState) {
	switch st {
	case StrategyPreferCourse:
		state.Forum = state.Course.Clone()
		state.Local = state.Course.Clone()
	case StrategyPreferForum:
		state.Course = state.Forum.Clone()
		state.Local = state.Forum.Clone()
	case StrategyMerge:
		merged := state.Course.Merge(state.Forum)
		state.Course = merged
		state.Forum = merged.Clone()
		state.Local = merged.Clone()
	}
}
