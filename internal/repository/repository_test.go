package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsi/campaign-filter/internal/domain"
)

func newTestRepository(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "campaign-filter-test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})

	t.Run("UnknownRulesAreEmpty", func(t *testing.T) {
		rules, err := repo.GetExclusionRules(ctx, "govsp", "novo")
		require.NoError(t, err)
		assert.True(t, rules.Empty())
		assert.Equal(t, "govsp", rules.Agreement)
		assert.Equal(t, "novo", rules.Campaign)
	})

	t.Run("SaveAndGetRules", func(t *testing.T) {
		in := &domain.ExclusionRules{
			Agreement:   "govsp",
			Campaign:    "benefício",
			Lotacoes:    []string{"ALESP", "SEDUC"},
			Secretarias: []string{"FAZENDA"},
		}
		require.NoError(t, repo.SaveExclusionRules(ctx, in))

		out, err := repo.GetExclusionRules(ctx, "govsp", "benefício")
		require.NoError(t, err)
		assert.Equal(t, in.Lotacoes, out.Lotacoes)
		assert.Empty(t, out.Vinculos)
		assert.Equal(t, in.Secretarias, out.Secretarias)
		assert.False(t, out.UpdatedAt.IsZero())
	})

	t.Run("SaveRulesReplaces", func(t *testing.T) {
		require.NoError(t, repo.SaveExclusionRules(ctx, &domain.ExclusionRules{
			Agreement: "govsp",
			Campaign:  "benefício",
			Vinculos:  []string{"COMISSIONADO"},
		}))

		out, err := repo.GetExclusionRules(ctx, "govsp", "benefício")
		require.NoError(t, err)
		assert.Empty(t, out.Lotacoes)
		assert.Equal(t, []string{"COMISSIONADO"}, out.Vinculos)
	})

	t.Run("ListRules", func(t *testing.T) {
		require.NoError(t, repo.SaveExclusionRules(ctx, &domain.ExclusionRules{
			Agreement: "govsp",
			Campaign:  "cartão",
			Lotacoes:  []string{"ALESP"},
		}))
		require.NoError(t, repo.SaveExclusionRules(ctx, &domain.ExclusionRules{
			Agreement: "govmt",
			Campaign:  "novo",
			Lotacoes:  []string{"SEFAZ"},
		}))

		list, err := repo.ListExclusionRules(ctx, "govsp")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "benefício", list[0].Campaign)
		assert.Equal(t, "cartão", list[1].Campaign)
	})

	t.Run("InvalidRules", func(t *testing.T) {
		assert.ErrorIs(t, repo.SaveExclusionRules(ctx, &domain.ExclusionRules{Agreement: "govsp"}), ErrInvalidInput)
		_, err := repo.GetExclusionRules(ctx, "", "novo")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = repo.ListExclusionRules(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("SaveAndGetRun", func(t *testing.T) {
		run := &domain.CampaignRun{
			ID:         "run-001",
			Agreement:  "govsp",
			Campaign:   "Novo",
			Team:       "outbound",
			InputRows:  120,
			OutputRows: 80,
			ConvaiRows: 16,
			Status:     domain.RunStatusCompleted,
			DurationMs: 42,
			CreatedAt:  time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, repo.SaveRun(ctx, run))

		got, err := repo.GetRun(ctx, "run-001")
		require.NoError(t, err)
		assert.Equal(t, run.Agreement, got.Agreement)
		assert.Equal(t, 80, got.OutputRows)
		assert.Equal(t, 16, got.ConvaiRows)
		assert.Equal(t, int64(42), got.DurationMs)
		assert.Empty(t, got.Error)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("RunNotFound", func(t *testing.T) {
		_, err := repo.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Second)
		for i, agreement := range []string{"govmt", "govsp", "govmt"} {
			require.NoError(t, repo.SaveRun(ctx, &domain.CampaignRun{
				ID:        "list-" + string(rune('a'+i)),
				Agreement: agreement,
				Campaign:  "Cartão",
				Team:      "inbound",
				Status:    domain.RunStatusFailed,
				Error:     "missing column",
				CreatedAt: base.Add(time.Duration(i+1) * time.Minute),
			}))
		}

		runs, err := repo.ListRuns(ctx, "govmt", 0)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "list-c", runs[0].ID)
		assert.Equal(t, "missing column", runs[0].Error)

		runs, err = repo.ListRuns(ctx, "", 2)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("DuplicateRunID", func(t *testing.T) {
		err := repo.SaveRun(ctx, &domain.CampaignRun{ID: "run-001", CreatedAt: time.Now()})
		assert.Error(t, err)
		assert.ErrorIs(t, repo.SaveRun(ctx, &domain.CampaignRun{}), ErrInvalidInput)
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLRepository{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestPostgresDSNDefaults(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "filter"})
	assert.Contains(t, dsn, "host=localhost port=5432 user=filter")
	assert.Contains(t, dsn, "dbname=campaign_filter sslmode=disable")
}

const rulesDoc = `{
  "govsp": {
    "novo": {"lotacoes": ["ALESP"], "vinculos": [], "secretarias": []},
    "benefício_cartão": {"lotacoes": [], "vinculos": ["PENSIONISTA"], "secretarias": ["SEDUC"]}
  },
  "govmt": {
    "cartão": {"lotacoes": ["SEFAZ"]}
  }
}`

func TestFileRuleSource(t *testing.T) {
	src, err := ParseRules([]byte(rulesDoc))
	require.NoError(t, err)
	ctx := context.Background()

	rules, err := src.GetExclusionRules(ctx, "govsp", "benefício_cartão")
	require.NoError(t, err)
	assert.Equal(t, []string{"PENSIONISTA"}, rules.Vinculos)
	assert.Equal(t, []string{"SEDUC"}, rules.Secretarias)

	rules, err = src.GetExclusionRules(ctx, "goval", "novo")
	require.NoError(t, err)
	assert.True(t, rules.Empty())

	all := src.All()
	require.Len(t, all, 3)
	assert.Equal(t, "govmt", all[0].Agreement)
	assert.Equal(t, "benefício_cartão", all[1].Campaign)
	assert.Equal(t, "novo", all[2].Campaign)
}

func TestOpenRuleFile(t *testing.T) {
	dir := t.TempDir()

	src, err := OpenRuleFile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, src.All())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = OpenRuleFile(bad)
	assert.ErrorContains(t, err, "malformed rules file")

	good := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(good, []byte(rulesDoc), 0o600))
	src, err = OpenRuleFile(good)
	require.NoError(t, err)
	assert.Len(t, src.All(), 3)
}

func TestImportRules(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveExclusionRules(ctx, &domain.ExclusionRules{
		Agreement: "govsp",
		Campaign:  "novo",
		Lotacoes:  []string{"SEDUC"},
	}))

	src, err := ParseRules([]byte(rulesDoc))
	require.NoError(t, err)

	n, err := ImportRules(ctx, repo, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	kept, err := repo.GetExclusionRules(ctx, "govsp", "novo")
	require.NoError(t, err)
	assert.Equal(t, []string{"SEDUC"}, kept.Lotacoes, "existing rules are not overwritten")

	imported, err := repo.GetExclusionRules(ctx, "govmt", "cartão")
	require.NoError(t, err)
	assert.Equal(t, []string{"SEFAZ"}, imported.Lotacoes)
}
