package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/devnovate/api/internal/mq"
	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/internal/testutil"
	"github.com/devnovate/api/types"
)

const testChannel = "articles"

type fixture struct {
	users      *testutil.UserRepo
	articles   *testutil.ArticleRepo
	broker     *testutil.Broker
	objects    *testutil.ObjectStore
	media      *Media
	article    *ArticleService
	moderation *ModerationService
	feed       *FeedService
	recorder   *countingRecorder
}

type countingRecorder struct {
	mu        sync.Mutex
	decisions map[string]int
	likes     map[bool]int
}

func (r *countingRecorder) ModerationDecision(action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[action]++
}

func (r *countingRecorder) LikeToggled(liked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes[liked]++
}

func newFixture() *fixture {
	users := testutil.NewUserRepo()
	articles := testutil.NewArticleRepo(users)
	broker := testutil.NewBroker()
	objects := testutil.NewObjectStore()
	media := NewMedia(objects, "/uploads")
	publisher := mq.NewArticlePublisher(mq.New(broker), testChannel)
	recorder := &countingRecorder{decisions: map[string]int{}, likes: map[bool]int{}}
	return &fixture{
		users:      users,
		articles:   articles,
		broker:     broker,
		objects:    objects,
		media:      media,
		article:    NewArticleService(articles, media, publisher, recorder, nil),
		moderation: NewModerationService(articles, media, publisher, recorder, nil),
		feed:       NewFeedService(articles),
		recorder:   recorder,
	}
}

func (f *fixture) user(t *testing.T, email string) types.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), types.User{Email: email, Name: email, Role: types.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (f *fixture) approved(t *testing.T, authorID, title string) types.Article {
	t.Helper()
	ctx := context.Background()
	article, err := f.article.Create(ctx, authorID, CreateArticleInput{Title: title, Content: "body of " + title, Category: "go"})
	if err != nil {
		t.Fatalf("create article: %v", err)
	}
	article, err = f.moderation.Approve(ctx, "admin", article.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return article
}

func TestCreateArticleStartsPending(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")

	article, err := f.article.Create(context.Background(), author.ID, CreateArticleInput{
		Title:    "  Hello ",
		Content:  "World",
		Category: "news",
		ImageURL: "https://cdn.example.com/x.png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if article.Status != types.StatusPending || article.Title != "Hello" || article.Likes != 0 {
		t.Fatalf("unexpected article %+v", article)
	}
	if article.Author.Name != author.Name {
		t.Fatalf("expected author name %q, got %q", author.Name, article.Author.Name)
	}

	events := f.broker.Events(testChannel)
	if len(events) != 1 || events[0].Type != types.EventArticleSubmitted || events[0].ArticleID != article.ID {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestCreateArticleRequiresFields(t *testing.T) {
	f := newFixture()
	_, err := f.article.Create(context.Background(), "u", CreateArticleInput{Title: "t", Content: "  ", Category: "c"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateArticleUploadsImage(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")
	png := []byte("\x89PNG\r\n\x1a\n" + "rest-of-image")

	article, err := f.article.Create(context.Background(), author.ID, CreateArticleInput{
		Title: "t", Content: "c", Category: "k",
		Image: &Image{Filename: "cover.png", Data: png},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	keys := f.objects.Keys()
	if len(keys) != 1 || article.ImageURL != "/uploads/"+keys[0] {
		t.Fatalf("image url %q does not match stored keys %v", article.ImageURL, keys)
	}
	if f.objects.ContentType(keys[0]) != "image/png" {
		t.Fatalf("unexpected content type %q", f.objects.ContentType(keys[0]))
	}
}

func TestToggleLikeFlipsMembership(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")
	reader := f.user(t, "r@x.io")
	article := f.approved(t, author.ID, "post")
	ctx := context.Background()

	first, err := f.article.ToggleLike(ctx, article.ID, reader.ID)
	if err != nil || first != (types.LikeResult{Likes: 1, Liked: true}) {
		t.Fatalf("first toggle: %+v, %v", first, err)
	}
	second, err := f.article.ToggleLike(ctx, article.ID, reader.ID)
	if err != nil || second != (types.LikeResult{Likes: 0, Liked: false}) {
		t.Fatalf("second toggle: %+v, %v", second, err)
	}
	if f.recorder.likes[true] != 1 || f.recorder.likes[false] != 1 {
		t.Fatalf("unexpected like counters %v", f.recorder.likes)
	}
}

func TestToggleLikeConcurrentKeepsCountEqualToSet(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")
	article := f.approved(t, author.ID, "post")

	const readers = 32
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			// Three toggles leave each user liking the article.
			for j := 0; j < 3; j++ {
				if _, err := f.article.ToggleLike(context.Background(), article.ID, userID); err != nil {
					t.Errorf("toggle: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	got, err := f.articles.Get(context.Background(), article.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Likes != len(got.LikedBy) || got.Likes != readers {
		t.Fatalf("likes %d, likedBy %d, want %d", got.Likes, len(got.LikedBy), readers)
	}
}

func TestInteractionsRequireApprovedArticle(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")
	ctx := context.Background()
	pending, err := f.article.Create(ctx, author.ID, CreateArticleInput{Title: "t", Content: "c", Category: "k"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.article.ToggleLike(ctx, pending.ID, author.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("like on pending: expected not found, got %v", err)
	}
	if _, err := f.article.AddComment(ctx, pending.ID, author.ID, "hi"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("comment on pending: expected not found, got %v", err)
	}
	if _, err := f.article.ToggleLike(ctx, "missing", author.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("like on missing: expected not found, got %v", err)
	}
}

func TestAddCommentAppendsInOrder(t *testing.T) {
	f := newFixture()
	author := f.user(t, "a@x.io")
	article := f.approved(t, author.ID, "post")
	ctx := context.Background()

	if _, err := f.article.AddComment(ctx, article.ID, author.ID, "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank comment, got %v", err)
	}
	for _, text := range []string{"first", "second", "second"} {
		if _, err := f.article.AddComment(ctx, article.ID, author.ID, text); err != nil {
			t.Fatalf("comment %q: %v", text, err)
		}
	}

	got, err := f.articles.Get(ctx, article.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Comments) != 3 || got.Comments[0].Content != "first" || got.Comments[2].Content != "second" {
		t.Fatalf("unexpected comments %+v", got.Comments)
	}
}
