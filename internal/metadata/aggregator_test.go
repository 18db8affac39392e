package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/MarcoPoloResearchLab/inkwell/internal/likes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDs) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

type mapDirectory map[string]engine.PublicUser

func (d mapDirectory) PublicUserByID(_ context.Context, id string) (engine.PublicUser, error) {
	user, ok := d[id]
	if !ok {
		return engine.PublicUser{}, errors.New("no such user")
	}
	return user, nil
}

type fixture struct {
	clock      *engine.ManualClock
	articles   *articles.Store
	comments   *comments.Store
	likes      *likes.Store
	aggregator *Aggregator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := engine.NewManualClock(baseTime)
	ids := &sequenceIDs{}
	directory := mapDirectory{
		"ada":   {ID: "ada", Username: "ada", Name: "Ada Lovelace"},
		"grace": {ID: "grace", Username: "grace"},
	}

	articleStore, err := articles.NewStore(articles.StoreConfig{Clock: clock.Now, IDProvider: ids})
	require.NoError(t, err)
	commentStore, err := comments.NewStore(comments.StoreConfig{Clock: clock.Now, IDProvider: ids, Users: directory})
	require.NoError(t, err)
	likeStore, err := likes.NewStore(likes.StoreConfig{Clock: clock.Now, IDProvider: ids})
	require.NoError(t, err)

	aggregator, err := NewAggregator(Config{
		Articles: articleStore,
		Comments: commentStore,
		Likes:    likeStore,
		Users:    directory,
	})
	require.NoError(t, err)

	return fixture{
		clock:      clock,
		articles:   articleStore,
		comments:   commentStore,
		likes:      likeStore,
		aggregator: aggregator,
	}
}

func (f fixture) publish(t *testing.T, title, authorID string) articles.Article {
	t.Helper()
	article, err := f.articles.Create(articles.CreateInput{Title: title, Content: "body of " + title, AuthorID: authorID})
	require.NoError(t, err)
	return article
}

func TestNewAggregatorRequiresCollaborators(t *testing.T) {
	_, err := NewAggregator(Config{})
	require.Error(t, err)
	assert.Equal(t, "metadata.new.missing_collaborator", engine.CodeOf(err))
}

func TestScheduledArticleBecomesVisibleWithZeroCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	publishAt := baseTime.Add(time.Hour)

	scheduled, err := f.articles.Create(articles.CreateInput{
		Title:       "Launch notes",
		Content:     "coming soon",
		AuthorID:    "ada",
		PublishTime: &publishAt,
	})
	require.NoError(t, err)
	assert.False(t, scheduled.IsPublished)

	_, err = f.aggregator.GetArticle(ctx, scheduled.ID, "")
	require.ErrorIs(t, err, engine.ErrNotFound)
	page, err := f.aggregator.ListArticles(ctx, articles.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	f.clock.Set(publishAt)

	detail, err := f.aggregator.GetArticle(ctx, scheduled.ID, "grace")
	require.NoError(t, err)
	assert.True(t, detail.IsPublished)
	assert.Zero(t, detail.LikesCount)
	assert.Zero(t, detail.CommentsCount)
	assert.Empty(t, detail.RecentComments)
	assert.False(t, detail.LikedByViewer)
	assert.Equal(t, "Ada Lovelace", detail.Author.Name)

	page, err = f.aggregator.ListArticles(ctx, articles.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, scheduled.ID, page.Articles[0].ID)
}

func TestDetailReflectsInteractions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	article := f.publish(t, "Engines", "ada")

	for index := 0; index < 7; index++ {
		author := "grace"
		if index == 6 {
			author = "ghost"
		}
		_, err := f.comments.Create(article.ID, fmt.Sprintf("comment %d", index), author)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	for _, user := range []string{"ada", "grace"} {
		_, err := f.likes.Toggle(article.ID, user)
		require.NoError(t, err)
	}

	detail, err := f.aggregator.GetArticle(ctx, article.ID, "grace")
	require.NoError(t, err)
	assert.Equal(t, 2, detail.LikesCount)
	assert.Equal(t, 7, detail.CommentsCount)
	assert.True(t, detail.LikedByViewer)

	require.Len(t, detail.RecentComments, defaultRecentComments)
	assert.Equal(t, "comment 6", detail.RecentComments[0].Content)
	assert.Equal(t, "unknown", detail.RecentComments[0].AuthorName)
	assert.Equal(t, "grace", detail.RecentComments[1].AuthorName)

	anonymous := f.aggregator.Detail(ctx, article, "")
	assert.False(t, anonymous.LikedByViewer)
}

func TestDetailUsesPlaceholderForUnknownAuthor(t *testing.T) {
	f := newFixture(t)
	article := f.publish(t, "Orphan", "nobody")

	detail := f.aggregator.Detail(context.Background(), article, "")
	assert.Equal(t, engine.PlaceholderUser("nobody"), detail.Author)
}

func TestListArticlesSummarizesEachPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var created []articles.Article
	for index := 0; index < 12; index++ {
		created = append(created, f.publish(t, fmt.Sprintf("post %d", index), "ada"))
		f.clock.Advance(time.Minute)
	}
	newest := created[len(created)-1]
	_, err := f.likes.Toggle(newest.ID, "grace")
	require.NoError(t, err)
	_, err = f.comments.Create(newest.ID, "first!", "grace")
	require.NoError(t, err)

	page, err := f.aggregator.ListArticles(ctx, articles.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, articles.DefaultPageLimit, page.Limit)
	require.Len(t, page.Articles, articles.DefaultPageLimit)
	assert.Equal(t, newest.ID, page.Articles[0].ID)
	assert.Equal(t, 1, page.Articles[0].LikesCount)
	assert.Equal(t, 1, page.Articles[0].CommentsCount)
	assert.Zero(t, page.Articles[1].LikesCount)

	second, err := f.aggregator.ListArticles(ctx, articles.Filter{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, second.Articles, 2)
	assert.Equal(t, created[0].ID, second.Articles[1].ID)
}

func TestRemovedArticleLeavesNoReadableAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	article := f.publish(t, "Ephemeral", "ada")
	_, err := f.likes.Toggle(article.ID, "grace")
	require.NoError(t, err)

	require.NoError(t, f.articles.Remove(article.ID, "ada"))

	_, err = f.aggregator.GetArticle(ctx, article.ID, "grace")
	require.ErrorIs(t, err, engine.ErrNotFound)
	page, err := f.aggregator.ListArticles(ctx, articles.Filter{})
	require.NoError(t, err)
	assert.Empty(t, page.Articles)
}
