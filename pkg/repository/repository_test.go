package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func testResearchEntry(topic string, n int) *model.ResearchEntry {
	results := make([]*model.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, &model.SearchResult{
			Title:     fmt.Sprintf("%s result %d", topic, i+1),
			Link:      fmt.Sprintf("https://example.com/%s/%d", topic, i+1),
			Author:    "Example Journal",
			Published: "2025-03-01",
			Snippet:   fmt.Sprintf("findings %d about %s", i+1, topic),
		})
	}
	return &model.ResearchEntry{
		Timestamp: time.Now(),
		Topic:     topic,
		Results:   results,
		Summary:   "summary of " + topic,
		Notes:     "notes on " + topic,
		Insights:  "insights for " + topic,
	}
}

func putTestSession(t *testing.T, repo repository.Repository) *model.Session {
	t.Helper()
	ctx := context.Background()

	session := model.NewSession("")
	gt.NoError(t, repo.PutSession(ctx, session))
	t.Cleanup(func() {
		_ = repo.DeleteSession(context.Background(), session.ID)
	})
	return session
}

// runRepositoryContract exercises the behavior that every backend must
// share. Backends with shared state (Firestore, MongoDB) are only checked
// for containment on cross-session listings.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.Repository) {
	t.Run("put and get round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := model.NewSession("")
		session.CurrentTopic = "quantum error correction"
		gt.NoError(t, repo.PutSession(ctx, session))
		t.Cleanup(func() { _ = repo.DeleteSession(context.Background(), session.ID) })

		got, err := repo.GetSession(ctx, session.ID)
		gt.NoError(t, err)
		gt.V(t, got).NotNil()
		gt.Equal(t, got.ID, session.ID)
		gt.Equal(t, got.CurrentTopic, "quantum error correction")
		gt.A(t, got.ResearchHistory).Length(0)
		gt.A(t, got.ConversationHistory).Length(0)
		gt.True(t, !got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("get missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetSession(ctx, model.NewSessionID())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrSessionNotFound))
		gt.True(t, goerr.HasTag(err, model.TagNotFound))
	})

	t.Run("put replaces existing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		session := putTestSession(t, repo)
		session.CurrentTopic = "first"
		gt.NoError(t, repo.PutSession(ctx, session))
		session.CurrentTopic = "second"
		gt.NoError(t, repo.PutSession(ctx, session))

		got, err := repo.GetSession(ctx, session.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.CurrentTopic, "second")

		sessions, err := repo.ListSessions(ctx)
		gt.NoError(t, err)
		count := 0
		for _, s := range sessions {
			if s.ID == session.ID {
				count++
			}
		}
		gt.Equal(t, count, 1)
	})

	t.Run("list sessions oldest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		base := time.Now()
		ids := make([]model.SessionID, 3)
		for i := 0; i < 3; i++ {
			session := model.NewSession("")
			session.CreatedAt = base.Add(time.Duration(i-3) * time.Hour)
			session.UpdatedAt = session.CreatedAt
			gt.NoError(t, repo.PutSession(ctx, session))
			t.Cleanup(func() { _ = repo.DeleteSession(context.Background(), session.ID) })
			ids[i] = session.ID
		}

		sessions, err := repo.ListSessions(ctx)
		gt.NoError(t, err)

		positions := make(map[model.SessionID]int)
		for i, s := range sessions {
			positions[s.ID] = i
		}
		for _, id := range ids {
			if _, ok := positions[id]; !ok {
				t.Fatalf("session %s missing from listing", id)
			}
		}
		gt.True(t, positions[ids[0]] < positions[ids[1]])
		gt.True(t, positions[ids[1]] < positions[ids[2]])
	})

	t.Run("append research", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := putTestSession(t, repo)

		first := testResearchEntry("graphene batteries", 2)
		updated, err := repo.AppendResearch(ctx, session.ID, first)
		gt.NoError(t, err)
		gt.A(t, updated.ResearchHistory).Length(1)
		gt.Equal(t, updated.CurrentTopic, "graphene batteries")
		gt.A(t, updated.Sources).Length(2)
		gt.True(t, !updated.UpdatedAt.Before(updated.CreatedAt))

		second := testResearchEntry("solid state electrolytes", 1)
		updated, err = repo.AppendResearch(ctx, session.ID, second)
		gt.NoError(t, err)
		gt.A(t, updated.ResearchHistory).Length(2)
		gt.Equal(t, updated.ResearchHistory[0].Topic, "graphene batteries")
		gt.Equal(t, updated.ResearchHistory[1].Topic, "solid state electrolytes")
		gt.Equal(t, updated.CurrentTopic, "solid state electrolytes")
		gt.A(t, updated.Sources).Length(3)

		got, err := repo.GetSession(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, got.ResearchHistory).Length(2)
		gt.Equal(t, got.ResearchHistory[1].Summary, "summary of solid state electrolytes")
		gt.A(t, got.Sources).Length(3)
	})

	t.Run("append conversation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := putTestSession(t, repo)

		for i := 0; i < 3; i++ {
			entry := &model.ConversationEntry{
				Timestamp: time.Now(),
				User:      fmt.Sprintf("question %d", i+1),
				Assistant: fmt.Sprintf("answer %d", i+1),
			}
			updated, err := repo.AppendConversation(ctx, session.ID, entry)
			gt.NoError(t, err)
			gt.A(t, updated.ConversationHistory).Length(i + 1)
		}

		got, err := repo.GetSession(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, got.ConversationHistory).Length(3)
		gt.Equal(t, got.ConversationHistory[0].User, "question 1")
		gt.Equal(t, got.ConversationHistory[2].Assistant, "answer 3")
	})

	t.Run("append to missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.AppendResearch(ctx, model.NewSessionID(), testResearchEntry("nothing", 1))
		gt.True(t, errors.Is(err, model.ErrSessionNotFound))

		_, err = repo.AppendConversation(ctx, model.NewSessionID(), &model.ConversationEntry{User: "hi", Assistant: "hello"})
		gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	})

	t.Run("search history", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := putTestSession(t, repo)
		other := putTestSession(t, repo)

		base := time.Now()
		for i := 0; i < 3; i++ {
			entry := &model.SearchHistoryEntry{
				SessionID:  session.ID,
				Query:      fmt.Sprintf("query %d", i+1),
				NumResults: 2,
				Timestamp:  base.Add(time.Duration(i) * 50 * time.Millisecond),
			}
			gt.NoError(t, repo.AddSearchHistory(ctx, entry))
		}
		gt.NoError(t, repo.AddSearchHistory(ctx, &model.SearchHistoryEntry{
			SessionID:  other.ID,
			Query:      "unrelated",
			NumResults: 5,
			Timestamp:  base,
		}))

		entries, err := repo.ListSearchHistory(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, entries).Length(3)
		gt.Equal(t, entries[0].Query, "query 1")
		gt.Equal(t, entries[2].Query, "query 3")

		all, err := repo.ListAllSearchHistory(ctx)
		gt.NoError(t, err)
		found := 0
		for _, e := range all {
			if e.SessionID == session.ID || e.SessionID == other.ID {
				found++
			}
		}
		gt.Equal(t, found, 4)
	})

	t.Run("saved research", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := putTestSession(t, repo)

		overview := &model.SavedSection{Content: "overview text", SavedAt: time.Now()}
		gt.NoError(t, repo.PutSavedSection(ctx, session.ID, "perovskite cells", "overview", overview))

		records, err := repo.ListSavedResearch(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Query, "perovskite cells")
		gt.Equal(t, records[0].Sections["overview"].Content, "overview text")

		methods := &model.SavedSection{Content: "methods text", SavedAt: time.Now()}
		gt.NoError(t, repo.PutSavedSection(ctx, session.ID, "perovskite cells", "methods", methods))

		replaced := &model.SavedSection{Content: "overview rewritten", SavedAt: time.Now()}
		gt.NoError(t, repo.PutSavedSection(ctx, session.ID, "perovskite cells", "overview", replaced))

		records, err = repo.ListSavedResearch(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, len(records[0].Sections), 2)
		gt.Equal(t, records[0].Sections["overview"].Content, "overview rewritten")
		gt.Equal(t, records[0].Sections["methods"].Content, "methods text")
		gt.True(t, !records[0].UpdatedAt.Before(records[0].CreatedAt))

		gt.NoError(t, repo.PutSavedSection(ctx, session.ID, "tandem cells", "overview",
			&model.SavedSection{Content: "tandem overview", SavedAt: time.Now()}))
		records, err = repo.ListSavedResearch(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, records).Length(2)

		gt.NoError(t, repo.DeleteSavedResearch(ctx, session.ID, "perovskite cells"))
		records, err = repo.ListSavedResearch(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, records).Length(1)
		gt.Equal(t, records[0].Query, "tandem cells")

		err = repo.DeleteSavedResearch(ctx, session.ID, "perovskite cells")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrSavedResearchNotFound))
		gt.True(t, goerr.HasTag(err, model.TagNotFound))
	})

	t.Run("cascade delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := putTestSession(t, repo)

		_, err := repo.AppendResearch(ctx, session.ID, testResearchEntry("fusion ignition", 1))
		gt.NoError(t, err)
		gt.NoError(t, repo.AddSearchHistory(ctx, &model.SearchHistoryEntry{
			SessionID: session.ID, Query: "fusion ignition", NumResults: 1, Timestamp: time.Now(),
		}))
		gt.NoError(t, repo.PutSavedSection(ctx, session.ID, "fusion ignition", "overview",
			&model.SavedSection{Content: "kept", SavedAt: time.Now()}))

		gt.NoError(t, repo.DeleteSession(ctx, session.ID))

		_, err = repo.GetSession(ctx, session.ID)
		gt.True(t, errors.Is(err, model.ErrSessionNotFound))

		entries, err := repo.ListSearchHistory(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, entries).Length(0)

		records, err := repo.ListSavedResearch(ctx, session.ID)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)

		err = repo.DeleteSession(ctx, session.ID)
		gt.True(t, errors.Is(err, model.ErrSessionNotFound))
	})
}

// runConcurrentAppends checks that serialized per-session writes never lose
// an update under concurrent research and chat traffic.
func runConcurrentAppends(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	session := putTestSession(t, repo)

	const workers = 10
	const rounds = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds*2)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				entry := testResearchEntry(fmt.Sprintf("topic %d-%d", w, i), 1)
				if _, err := repo.AppendResearch(ctx, session.ID, entry); err != nil {
					errs <- err
				}
				turn := &model.ConversationEntry{
					Timestamp: time.Now(),
					User:      fmt.Sprintf("q %d-%d", w, i),
					Assistant: fmt.Sprintf("a %d-%d", w, i),
				}
				if _, err := repo.AppendConversation(ctx, session.ID, turn); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent append failed: %v", err)
	}

	got, err := repo.GetSession(ctx, session.ID)
	gt.NoError(t, err)
	gt.A(t, got.ResearchHistory).Length(workers * rounds)
	gt.A(t, got.ConversationHistory).Length(workers * rounds)
	gt.A(t, got.Sources).Length(workers * rounds)
}
