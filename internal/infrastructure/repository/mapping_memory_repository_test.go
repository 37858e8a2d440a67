package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvclab/student-sync/internal/config"
	"github.com/nvclab/student-sync/internal/infrastructure/repository"
)

func TestMappingMemoryRememberAndSuggest(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewMappingMemoryRepository(db)

	signature := "用户ID|昵称|城市"
	rules := []config.FieldRule{
		{Source: "用户ID", Dest: "用户ID", Table: config.TableStudent, Coerce: config.CoerceText},
		{Source: "城市", Dest: "城市", Table: config.TableStudent, Coerce: config.CoerceText},
	}

	require.NoError(t, repo.Remember(context.Background(), signature, rules))

	got, err := repo.Suggest(context.Background(), signature)
	require.NoError(t, err)
	require.Equal(t, rules, got)

	got, err = repo.Suggest(context.Background(), "other|shape")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMappingMemoryRememberReplaces(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewMappingMemoryRepository(db)

	signature := "用户ID|昵称"
	first := []config.FieldRule{
		{Source: "用户ID", Dest: "用户ID", Table: config.TableStudent, Coerce: config.CoerceText},
	}
	second := []config.FieldRule{
		{Source: "昵称", Dest: "昵称", Table: config.TableStudent, Coerce: config.CoerceText},
	}

	require.NoError(t, repo.Remember(context.Background(), signature, first))
	require.NoError(t, repo.Remember(context.Background(), signature, second))

	got, err := repo.Suggest(context.Background(), signature)
	require.NoError(t, err)
	require.Equal(t, second, got)
}

func TestMappingMemoryEmptyRulesNoop(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewMappingMemoryRepository(db)

	require.NoError(t, repo.Remember(context.Background(), "sig", nil))

	got, err := repo.Suggest(context.Background(), "sig")
	require.NoError(t, err)
	require.Empty(t, got)
}
