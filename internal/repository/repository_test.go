package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linebot-relay-go/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTurnRepository_AppendNullsMissingRule(t *testing.T) {
	ctx := context.Background()
	repo := NewTurnRepository(newTestDB(t))

	missing := uint(999)
	turn := &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "hi", SessionID: "s1", PromptRuleID: &missing}
	require.NoError(t, repo.Append(ctx, turn))
	assert.Nil(t, turn.PromptRuleID)

	latest, err := repo.Latest(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Nil(t, latest.PromptRuleID)
	assert.Equal(t, "s1", latest.SessionID)
}

func TestTurnRepository_AppendRejectsInvalidRole(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	err := repo.Append(context.Background(), &model.Turn{UserID: "U1", Role: model.RoleSystem, Content: "x", SessionID: "s1"})
	assert.Error(t, err)
	err = repo.Append(context.Background(), &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "x"})
	assert.Error(t, err)
}

func TestTurnRepository_AppendKeepsExistingRule(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rules := NewPromptRuleRepository(db)
	turns := NewTurnRepository(db)

	rule := &model.PromptRule{TriggerText: "我想學英文", SystemPrompt: "P"}
	require.NoError(t, rules.Create(ctx, rule))

	turn := &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "我想學英文", SessionID: "s1", PromptRuleID: &rule.ID}
	require.NoError(t, turns.Append(ctx, turn))
	require.NotNil(t, turn.PromptRuleID)
	assert.Equal(t, rule.ID, *turn.PromptRuleID)
}

func TestTurnRepository_LatestEmpty(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	latest, err := repo.Latest(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestTurnRepository_FindByEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewTurnRepository(newTestDB(t))

	eventID := "evt-1"
	turn := &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "hi", SessionID: "s1", EventID: &eventID}
	require.NoError(t, repo.Append(ctx, turn))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleAssistant, Content: "yo", SessionID: "s1"}))

	found, err := repo.FindByEvent(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, turn.ID, found.ID)

	missing, err := repo.FindByEvent(ctx, "evt-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := "evt-1"
	err = repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "again", SessionID: "s1", EventID: &dup})
	assert.Error(t, err)
}

func TestTurnRepository_RecentDescScopedToSession(t *testing.T) {
	ctx := context.Background()
	repo := NewTurnRepository(newTestDB(t))

	for i := 0; i < 6; i++ {
		session := "a"
		if i%2 == 1 {
			session = "b"
		}
		require.NoError(t, repo.Append(ctx, &model.Turn{
			UserID: "U1", Role: model.RoleUser, Content: fmt.Sprintf("m%d", i), SessionID: session,
		}))
	}

	turns, err := repo.RecentDesc(ctx, "U1", "a", 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "m4", turns[0].Content)
	assert.Equal(t, "m0", turns[2].Content)
	for _, turn := range turns {
		assert.Equal(t, "a", turn.SessionID)
	}
}

func TestTurnRepository_DeleteByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTurnRepository(newTestDB(t))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "a", SessionID: "s1"}))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "b", SessionID: "s2"}))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U2", Role: model.RoleUser, Content: "c", SessionID: "s3"}))

	n, err := repo.DeleteByUser(ctx, "U1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	latest, err := repo.Latest(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, latest)
	latest, err = repo.Latest(ctx, "U2")
	require.NoError(t, err)
	assert.NotNil(t, latest)
}

func TestTurnRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewTurnRepository(newTestDB(t))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "hello world", SessionID: "s1"}))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleAssistant, Content: "hi", SessionID: "s1"}))
	require.NoError(t, repo.Append(ctx, &model.Turn{UserID: "U2", Role: model.RoleUser, Content: "world peace", SessionID: "s2"}))

	turns, total, err := repo.Search(ctx, TurnFilter{Query: "world"}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, turns, 2)

	turns, total, err = repo.Search(ctx, TurnFilter{UserID: "U1"}, 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi", turns[0].Content)
}

func TestPromptRuleRepository_FindByTriggerCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewPromptRuleRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.PromptRule{TriggerText: "Learn English", SystemPrompt: "P"}))

	rule, err := repo.FindByTrigger(ctx, "  learn ENGLISH ")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, "Learn English", rule.TriggerText)

	rule, err = repo.FindByTrigger(ctx, "learn")
	require.NoError(t, err)
	assert.Nil(t, rule)

	err = repo.Create(ctx, &model.PromptRule{TriggerText: "LEARN english", SystemPrompt: "Q"})
	assert.Error(t, err)
}

func TestPromptRuleRepository_DeleteNullsReferences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	rules := NewPromptRuleRepository(db)
	turns := NewTurnRepository(db)
	sessions := NewSessionRepository(db)

	rule := &model.PromptRule{TriggerText: "t", SystemPrompt: "P"}
	require.NoError(t, rules.Create(ctx, rule))
	require.NoError(t, sessions.Create(ctx, &model.Session{SessionID: "s1", UserID: "U1", ActivePromptRuleID: &rule.ID}))
	require.NoError(t, turns.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "t", SessionID: "s1", PromptRuleID: &rule.ID}))

	require.NoError(t, rules.Delete(ctx, rule.ID))

	latest, err := turns.Latest(ctx, "U1")
	require.NoError(t, err)
	assert.Nil(t, latest.PromptRuleID)

	s, err := sessions.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, s.ActivePromptRuleID)

	assert.ErrorIs(t, rules.Delete(ctx, rule.ID), gorm.ErrRecordNotFound)
}

func TestSessionRepository_CreateFindDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(newTestDB(t))

	missing := uint(42)
	s := &model.Session{SessionID: "s1", UserID: "U1", ActivePromptRuleID: &missing}
	require.NoError(t, repo.Create(ctx, s))
	assert.Nil(t, s.ActivePromptRuleID)
	require.NoError(t, repo.Touch(ctx, "s1"))

	got, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "U1", got.UserID)

	require.NoError(t, repo.DeleteByUser(ctx, "U1"))
	got, err = repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSkipKeywordRepository_Exists(t *testing.T) {
	ctx := context.Background()
	repo := NewSkipKeywordRepository(newTestDB(t))
	kw := &model.SkipKeyword{Text: "OK"}
	require.NoError(t, repo.Create(ctx, kw))

	for _, text := range []string{"ok", "OK", "Ok"} {
		ok, err := repo.Exists(ctx, text)
		require.NoError(t, err)
		assert.True(t, ok, text)
	}
	ok, err := repo.Exists(ctx, "ok!")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, kw.ID))
	ok, err = repo.Exists(ctx, "ok")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, repo.Delete(ctx, kw.ID), gorm.ErrRecordNotFound)
}

func TestUserProfileRepository_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserProfileRepository(newTestDB(t))

	p, created, err := repo.GetOrCreate(ctx, "U1", model.LanguageZH)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.LanguageZH, p.Language)

	require.NoError(t, repo.UpdateLanguage(ctx, "U1", model.LanguageEN))

	p, created, err = repo.GetOrCreate(ctx, "U1", model.LanguageZH)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, model.LanguageEN, p.Language)
}

func TestAdminUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAdminUserRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.AdminUser{Username: "root", Password: "x"}))

	u, err := repo.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "root", u.Username)

	_, err = repo.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEventRepository_MarkSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repo := NewEventRepository(rdb, time.Minute)
	ctx := context.Background()

	first, err := repo.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = repo.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, first)

	mr.FastForward(2 * time.Minute)
	first, err = repo.MarkSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestEventRepository_Forget(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repo := NewEventRepository(rdb, time.Minute)
	ctx := context.Background()

	first, err := repo.MarkSeen(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, first)
	require.True(t, mr.Exists("relay:event:evt-2"))

	require.NoError(t, repo.Forget(ctx, "evt-2"))
	assert.False(t, mr.Exists("relay:event:evt-2"))

	first, err = repo.MarkSeen(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, first)
}
