package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUndoLogRunsInReverse(t *testing.T) {
	ctx, log := WithUndoLog(context.Background())
	var order []int
	OnRollback(ctx, func() { order = append(order, 1) })
	OnRollback(ctx, func() { order = append(order, 2) })

	log.Rollback()
	assert.Equal(t, []int{2, 1}, order)

	log.Rollback()
	assert.Equal(t, []int{2, 1}, order, "rollback must not replay")
}

func TestOnRollbackOutsideUnitOfWork(t *testing.T) {
	called := false
	OnRollback(context.Background(), func() { called = true })
	assert.False(t, called)
	assert.False(t, HasUndoLog(context.Background()))
}

func TestCommit(t *testing.T) {
	ctx, log := WithUndoLog(context.Background())
	undone := false
	var published []int
	OnRollback(ctx, func() { undone = true })
	assert.True(t, OnCommit(ctx, func() { published = append(published, 1) }))
	assert.True(t, OnCommit(ctx, func() { published = append(published, 2) }))

	log.Commit()
	log.Rollback()
	assert.False(t, undone)
	assert.Equal(t, []int{1, 2}, published)
}

func TestRollbackDropsPublications(t *testing.T) {
	ctx, log := WithUndoLog(context.Background())
	published := false
	OnCommit(ctx, func() { published = true })
	log.Rollback()
	log.Commit()
	assert.False(t, published)
}

func TestStaged(t *testing.T) {
	_, ok := Staged(context.Background(), "owner", func() map[string]int { return map[string]int{} })
	assert.False(t, ok)
	assert.False(t, OnCommit(context.Background(), func() {}))

	ctx, log := WithUndoLog(context.Background())
	first, ok := Staged(ctx, "owner", func() map[string]int { return map[string]int{} })
	assert.True(t, ok)
	first["a"] = 1
	again, _ := Staged(ctx, "owner", func() map[string]int { return map[string]int{} })
	assert.Equal(t, 1, again["a"], "same owner shares one value")
	other, _ := Staged(ctx, "other", func() map[string]int { return map[string]int{} })
	assert.Empty(t, other)

	log.Rollback()
	fresh, _ := Staged(ctx, "owner", func() map[string]int { return map[string]int{} })
	assert.Empty(t, fresh, "rollback drops staged values")
}

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
}
