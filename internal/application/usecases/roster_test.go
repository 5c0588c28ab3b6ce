package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

func TestRosterService(t *testing.T) {
	ctx := context.Background()
	svc := RosterService{Store: NewMemoryRoster()}

	require.NoError(t, svc.Upsert(ctx, user.Member{Name: " bob ", Token: "t1"}))
	require.NoError(t, svc.Upsert(ctx, user.Member{Name: "alice", Token: "t2"}))
	require.NoError(t, svc.Upsert(ctx, user.Member{Name: "bob", Token: "t3"}))

	got, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Name)
	assert.Equal(t, "t3", got[1].Token)

	require.NoError(t, svc.Remove(ctx, "alice"))
	assert.ErrorIs(t, svc.Remove(ctx, "alice"), internaltypes.ErrNotFound)

	require.NoError(t, svc.Replace(ctx, []user.Member{{Name: "carol", Token: "t4"}}))
	got, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].Name)
}

func TestRosterServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc := RosterService{Store: NewMemoryRoster()}

	assert.ErrorIs(t, svc.Upsert(ctx, user.Member{Name: "", Token: "t"}), internaltypes.ErrInvalid)
	assert.ErrorIs(t, svc.Upsert(ctx, user.Member{Name: "a", Token: " "}), internaltypes.ErrInvalid)
	assert.ErrorIs(t, svc.Remove(ctx, " "), internaltypes.ErrInvalid)
	assert.ErrorIs(t, svc.Replace(ctx, []user.Member{{Name: "a", Token: "1"}, {Name: "a", Token: "2"}}), internaltypes.ErrInvalid)
}
